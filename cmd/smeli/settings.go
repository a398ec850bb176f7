package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/smeli-lang/smeli-sub000/internal/config"
	"github.com/smeli-lang/smeli-sub000/internal/diagnostics"
	"github.com/smeli-lang/smeli-sub000/internal/engine"
	"github.com/smeli-lang/smeli-sub000/internal/plugins"
)

// commonFlags are shared by run and serve. Set flags override smeli.yaml.
type commonFlags struct {
	configPath string
	logLevel   string
	color      string
	plugins    string
	watch      string
	steps      int
	listen     string
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	f := &commonFlags{}
	fs.StringVar(&f.configPath, "config", "", "project file (default: smeli.yaml found from the current directory)")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	fs.StringVar(&f.color, "color", "", "auto, always or never")
	fs.StringVar(&f.plugins, "plugins", "", "comma separated plugins to load")
	fs.StringVar(&f.watch, "watch", "", "comma separated names to print")
	fs.IntVar(&f.steps, "steps", config.AllSteps, "statements to activate, -1 for all")
	fs.StringVar(&f.listen, "listen", "", "remote-control address")
	return f
}

// resolve builds the effective configuration from the positional file or
// project file and the flags that were set.
func (f *commonFlags) resolve(fs *flag.FlagSet) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case fs.NArg() > 1:
		return nil, errors.New("expected at most one source file")
	case fs.NArg() == 1:
		cfg, err = config.ForSource(fs.Arg(0))
	default:
		path := f.configPath
		if path == "" {
			path, err = config.FindConfig(".")
			if err != nil {
				return nil, err
			}
			if path == "" {
				return nil, fmt.Errorf("no source file given and no %s found", config.ConfigFileNames[0])
			}
		}
		cfg, err = config.LoadConfig(path)
	}
	if err != nil {
		return nil, err
	}

	var overrideErr error
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "log-level":
			if _, err := config.ParseLevel(f.logLevel); err != nil {
				overrideErr = err
			}
			cfg.LogLevel = strings.ToLower(f.logLevel)
		case "color":
			switch f.color {
			case config.ColorAuto, config.ColorAlways, config.ColorNever:
				cfg.Color = f.color
			default:
				overrideErr = fmt.Errorf("color %q must be one of auto, always, never", f.color)
			}
		case "plugins":
			cfg.Plugins = splitList(f.plugins)
		case "watch":
			cfg.Watch = splitList(f.watch)
		case "steps":
			steps := f.steps
			cfg.Steps = &steps
		case "listen":
			cfg.Listen = f.listen
		}
	})
	if overrideErr != nil {
		return nil, overrideErr
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level, _ := config.ParseLevel(cfg.LogLevel)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// useColor decides whether diagnostics written to w get ANSI colours.
func useColor(mode string, w io.Writer) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// document is a loaded engine plus what is needed to report on it.
type document struct {
	engine *engine.Engine
	source string
	path   string
}

// openDocument loads the configured plugins and the source, prints parse
// diagnostics to stderr and activates the configured number of statements.
// ok is false when the source had diagnostics.
func openDocument(cfg *config.Config, logger *slog.Logger, stderr io.Writer) (doc *document, ok bool, err error) {
	path := cfg.SourcePath()
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("reading source: %w", err)
	}

	e := engine.New(engine.WithLogger(logger), engine.WithFile(path))
	for _, name := range cfg.Plugins {
		p, err := plugins.Lookup(name)
		if err == nil {
			err = e.LoadPlugin(p)
		}
		if err != nil {
			e.Close()
			return nil, false, fmt.Errorf("plugin %s: %w", name, err)
		}
	}

	doc = &document{engine: e, source: string(src), path: path}
	if err := e.Reset(doc.source); err != nil {
		e.Close()
		return nil, false, err
	}
	diags := e.Diagnostics()
	printDiagnostics(stderr, diags, doc.source, useColor(cfg.Color, stderr))

	steps := cfg.StepCount()
	if steps == config.AllSteps {
		steps = e.Len()
	}
	if err := e.Step(steps); err != nil {
		logger.Warn("step failed", "error", err)
	}
	return doc, len(diags) == 0, nil
}

func printDiagnostics(w io.Writer, diags []*diagnostics.DiagnosticError, source string, color bool) {
	for _, d := range diags {
		fmt.Fprint(w, renderDiagnostic(d, source, color))
	}
}
