package main

import (
	"fmt"
	"io"
	"os"

	"github.com/smeli-lang/smeli-sub000/internal/config"
	"github.com/smeli-lang/smeli-sub000/internal/plugins"
)

const usage = `Usage: smeli <command> [flags] [file]

Commands:
  run     evaluate a document and print its watched values
  fmt     reformat a document
  serve   serve a document for remote control
  remote  reset, patch, step or read a served document
  version print the version

Without a file, run and serve use the smeli.yaml found in the current
directory or its parents.
`

func main() {
	defer func() {
		if r := recover(); r != nil {
			if os.Getenv("DEBUG") == "1" {
				panic(r)
			}
			fmt.Fprintf(os.Stderr, "Internal error: %v\n", r)
			fmt.Fprintln(os.Stderr, "This is a bug. Please report it.")
			os.Exit(1)
		}
	}()
	os.Exit(dispatch(os.Args[1:], os.Stdout, os.Stderr))
}

func dispatch(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	switch args[0] {
	case "run":
		return runCommand(args[1:], stdout, stderr)
	case "fmt":
		return fmtCommand(args[1:], stdout, stderr)
	case "serve":
		return serveCommand(args[1:], stdout, stderr)
	case "remote":
		return remoteCommand(args[1:], stdout, stderr)
	case "version", "-version", "--version":
		fmt.Fprintf(stdout, "smeli %s\n", config.Version)
		return 0
	case "help", "-help", "--help", "-h":
		fmt.Fprint(stdout, usage)
		fmt.Fprintf(stdout, "\nPlugins: %v\n", plugins.Available())
		return 0
	}
	// smeli file.smeli is short for smeli run file.smeli
	if config.IsSourceFile(args[0]) {
		return runCommand(args, stdout, stderr)
	}
	fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
	return 2
}
