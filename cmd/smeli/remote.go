package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/smeli-lang/smeli-sub000/internal/config"
	"github.com/smeli-lang/smeli-sub000/internal/remote"
)

const remoteUsage = `Usage: smeli remote [-addr host:port] <action> [args]

Actions:
  reset <file|->          replace the served document
  patch <offset> <file|-> replace the document from offset on
  step [n]                activate n more statements (negative to go back)
  step-to <offset>        activate up to the statement at offset
  eval <name>...          print the current values of names
`

// remote drives a document served by smeli serve.
func remoteCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("remote", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", config.DefaultListen, "address of the smeli serve process")
	timeout := fs.Duration("timeout", 10*time.Second, "deadline for each call")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprint(stderr, remoteUsage)
		return 2
	}

	client, err := remote.Dial(*addr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return 1
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	action, rest := fs.Arg(0), fs.Args()[1:]
	var st *remote.State
	switch action {
	case "reset":
		if len(rest) != 1 {
			break
		}
		code, err := readCode(rest[0])
		if err != nil {
			fmt.Fprintf(stderr, "Error: %s\n", err)
			return 1
		}
		st, err = client.Reset(ctx, code)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %s\n", err)
			return 1
		}
	case "patch":
		if len(rest) != 2 {
			break
		}
		offset, err := strconv.Atoi(rest[0])
		if err != nil {
			fmt.Fprintf(stderr, "Error: bad offset %q\n", rest[0])
			return 2
		}
		code, err := readCode(rest[1])
		if err != nil {
			fmt.Fprintf(stderr, "Error: %s\n", err)
			return 1
		}
		st, err = client.Patch(ctx, offset, code)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %s\n", err)
			return 1
		}
	case "step":
		if len(rest) > 1 {
			break
		}
		n := 1
		if len(rest) == 1 {
			if n, err = strconv.Atoi(rest[0]); err != nil {
				fmt.Fprintf(stderr, "Error: bad count %q\n", rest[0])
				return 2
			}
		}
		st, err = client.Step(ctx, n)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %s\n", err)
			return 1
		}
	case "step-to":
		if len(rest) != 1 {
			break
		}
		offset, err := strconv.Atoi(rest[0])
		if err != nil {
			fmt.Fprintf(stderr, "Error: bad offset %q\n", rest[0])
			return 2
		}
		st, err = client.StepTo(ctx, offset)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %s\n", err)
			return 1
		}
	case "eval":
		if len(rest) == 0 {
			break
		}
		return remoteEval(ctx, client, rest, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown action %q\n\n%s", action, remoteUsage)
		return 2
	}
	if st == nil {
		fmt.Fprintf(stderr, "wrong arguments for %s\n\n%s", action, remoteUsage)
		return 2
	}
	return printState(st, stdout)
}

func remoteEval(ctx context.Context, client *remote.Client, names []string, stdout, stderr io.Writer) int {
	status := 0
	for _, name := range names {
		v, err := client.Evaluate(ctx, name)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %s\n", err)
			return 1
		}
		if v.Error != "" {
			fmt.Fprintf(stdout, "%s: error: %s\n", name, v.Error)
			status = 1
			continue
		}
		fmt.Fprintf(stdout, "%s = %s\n", name, v.Inspect)
	}
	return status
}

func printState(st *remote.State, stdout io.Writer) int {
	fmt.Fprintf(stdout, "active %d/%d\n", st.Active, st.Total)
	for _, d := range st.Diagnostics {
		fmt.Fprintln(stdout, d.String())
	}
	if st.Error != "" {
		fmt.Fprintf(stdout, "error: %s\n", st.Error)
		return 1
	}
	if len(st.Diagnostics) > 0 {
		return 1
	}
	return 0
}

// readCode reads a document from path, or from stdin for "-".
func readCode(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}
