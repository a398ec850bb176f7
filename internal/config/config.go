// Package config holds the constants shared by smeli packages and the
// smeli.yaml project configuration.
//
// A project file looks like:
//
//	source: slides.smeli
//	plugins: [math, yaml]
//	log_level: debug
//	listen: 127.0.0.1:7420
//	color: auto
//	steps: 3
//	watch: [total]
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents a smeli.yaml file.
type Config struct {
	// Source is the document to run, relative to the config file.
	Source string `yaml:"source"`

	// Plugins are built-in plugin names loaded before the document.
	Plugins []string `yaml:"plugins,omitempty"`

	LogLevel string `yaml:"log_level,omitempty"`

	// Listen is the address of the remote-control server.
	Listen string `yaml:"listen,omitempty"`

	// Color is one of auto, always or never.
	Color string `yaml:"color,omitempty"`

	// Steps is how many statements to activate on start. Omitted means all.
	Steps *int `yaml:"steps,omitempty"`

	// Watch lists bindings printed after each run.
	Watch []string `yaml:"watch,omitempty"`

	// Dir is the directory of the config file.
	Dir string `yaml:"-"`
}

// LoadConfig reads and parses a smeli.yaml file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := ParseConfig(data, path)
	if err != nil {
		return nil, err
	}
	cfg.Dir = filepath.Dir(path)
	return cfg, nil
}

// ParseConfig parses smeli.yaml content from bytes.
// The path argument is used only for error messages.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &cfg, nil
}

// ForSource returns the configuration used to run a document that has no
// project file.
func ForSource(path string) (*Config, error) {
	cfg := &Config{Source: path}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return cfg, nil
}

// FindConfig searches for smeli.yaml starting from dir and walking up to
// parent directories. It returns "" and no error when there is none.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range ConfigFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// IsSourceFile reports whether path has a smeli source extension.
func IsSourceFile(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range SourceFileExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

func (c *Config) validate(path string) error {
	if c.Source == "" {
		return fmt.Errorf("%s: source is required", path)
	}
	if !IsSourceFile(c.Source) {
		return fmt.Errorf("%s: source %q must have one of the extensions %s",
			path, c.Source, strings.Join(SourceFileExtensions, ", "))
	}

	seen := make(map[string]bool)
	for i, name := range c.Plugins {
		if name == "" {
			return fmt.Errorf("%s: plugins[%d]: name is required", path, i)
		}
		if seen[name] {
			return fmt.Errorf("%s: plugins[%d]: %q listed twice", path, i, name)
		}
		seen[name] = true
	}

	switch c.LogLevel {
	case "", LogDebug, LogInfo, LogWarn, LogError:
	default:
		return fmt.Errorf("%s: log_level %q must be one of debug, info, warn, error", path, c.LogLevel)
	}

	switch c.Color {
	case "", ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("%s: color %q must be one of auto, always, never", path, c.Color)
	}

	if c.Steps != nil && *c.Steps < 0 {
		return fmt.Errorf("%s: steps must not be negative", path)
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = LogInfo
	}
	if c.Color == "" {
		c.Color = ColorAuto
	}
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
}

// SourcePath returns the document path, resolved against the config
// directory.
func (c *Config) SourcePath() string {
	if filepath.IsAbs(c.Source) || c.Dir == "" {
		return c.Source
	}
	return filepath.Join(c.Dir, c.Source)
}

// StepCount returns how many statements to activate, or AllSteps.
func (c *Config) StepCount() int {
	if c.Steps == nil {
		return AllSteps
	}
	return *c.Steps
}

// ParseLevel maps a log level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case LogDebug:
		return slog.LevelDebug, nil
	case LogInfo, "":
		return slog.LevelInfo, nil
	case LogWarn:
		return slog.LevelWarn, nil
	case LogError:
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}
