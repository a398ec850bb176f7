package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/smeli-lang/smeli-sub000/internal/ast"
	"github.com/smeli-lang/smeli-sub000/internal/diagnostics"
	"github.com/smeli-lang/smeli-sub000/internal/parser"
	"github.com/smeli-lang/smeli-sub000/internal/prettyprinter"
	"github.com/smeli-lang/smeli-sub000/internal/remote"
)

// run evaluates the document and prints the watched names, or every active
// binding when none are configured.
func runCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	flags := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, err := flags.resolve(fs)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return 1
	}

	doc, ok, err := openDocument(cfg, newLogger(cfg, stderr), stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return 1
	}
	defer doc.engine.Close()

	names := cfg.Watch
	if len(names) == 0 {
		names = doc.engine.Names()
	}
	for _, name := range names {
		v, err := doc.engine.Evaluate(name)
		if err != nil {
			fmt.Fprintf(stdout, "%s: error: %s\n", name, err)
			ok = false
			continue
		}
		fmt.Fprintf(stdout, "%s = %s\n", name, v.Inspect())
	}
	if !ok {
		return 1
	}
	return 0
}

// fmt rewrites documents in canonical form. Without files it filters stdin.
func fmtCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("fmt", flag.ContinueOnError)
	fs.SetOutput(stderr)
	write := fs.Bool("w", false, "write the result to the file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if fs.NArg() == 0 {
		src, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(stderr, "Error reading stdin: %s\n", err)
			return 1
		}
		out, diags := formatSource(string(src), "<stdin>")
		if len(diags) > 0 {
			printDiagnostics(stderr, diags, string(src), useColor("", stderr))
			return 1
		}
		fmt.Fprint(stdout, out)
		return 0
	}

	status := 0
	for _, path := range fs.Args() {
		src, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(stderr, "Error reading file: %s\n", err)
			status = 1
			continue
		}
		out, diags := formatSource(string(src), path)
		if len(diags) > 0 {
			printDiagnostics(stderr, diags, string(src), useColor("", stderr))
			status = 1
			continue
		}
		if !*write {
			fmt.Fprint(stdout, out)
			continue
		}
		if out == string(src) {
			continue
		}
		if err := os.WriteFile(path, []byte(out), 0644); err != nil {
			fmt.Fprintf(stderr, "Error writing file: %s\n", err)
			status = 1
		}
	}
	return status
}

// formatSource prints the parsed document back. Sources with diagnostics
// are not formatted since the statements after an error are lost.
func formatSource(src, file string) (string, []*diagnostics.DiagnosticError) {
	stmts, errs := parser.Parse(src, 0, file)
	if len(errs) > 0 {
		return "", errs
	}
	return prettyprinter.Print(&ast.Program{File: file, Statements: stmts}), nil
}

// serve keeps the document loaded and serves it to remote clients until
// interrupted.
func serveCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	flags := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, err := flags.resolve(fs)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return 1
	}

	logger := newLogger(cfg, stderr)
	doc, _, err := openDocument(cfg, logger, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return 1
	}
	defer doc.engine.Close()

	srv, err := remote.NewServer(doc.engine, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	fmt.Fprintf(stdout, "serving %s on %s (session %s)\n", doc.path, cfg.Listen, srv.Session())
	if err := srv.Serve(ctx, cfg.Listen); err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return 1
	}
	return 0
}
