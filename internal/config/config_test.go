package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseConfig_ValidMinimal(t *testing.T) {
	yaml := `
source: slides.smeli
`
	cfg, err := ParseConfig([]byte(yaml), "smeli.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Source != "slides.smeli" {
		t.Errorf("source = %q, want slides.smeli", cfg.Source)
	}
	if cfg.LogLevel != LogInfo {
		t.Errorf("log_level = %q, want info", cfg.LogLevel)
	}
	if cfg.Color != ColorAuto {
		t.Errorf("color = %q, want auto", cfg.Color)
	}
	if cfg.Listen != DefaultListen {
		t.Errorf("listen = %q, want %s", cfg.Listen, DefaultListen)
	}
	if cfg.StepCount() != AllSteps {
		t.Errorf("steps = %d, want all", cfg.StepCount())
	}
}

func TestParseConfig_ValidFull(t *testing.T) {
	yaml := `
source: deck.sm
plugins: [math, yaml]
log_level: debug
listen: 0.0.0.0:9000
color: never
steps: 0
watch:
  - total
`
	cfg, err := ParseConfig([]byte(yaml), "smeli.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Plugins) != 2 || cfg.Plugins[0] != "math" || cfg.Plugins[1] != "yaml" {
		t.Errorf("plugins = %v, want [math yaml]", cfg.Plugins)
	}
	if cfg.LogLevel != LogDebug {
		t.Errorf("log_level = %q, want debug", cfg.LogLevel)
	}
	if cfg.Listen != "0.0.0.0:9000" {
		t.Errorf("listen = %q", cfg.Listen)
	}
	if cfg.Color != ColorNever {
		t.Errorf("color = %q, want never", cfg.Color)
	}
	if cfg.StepCount() != 0 {
		t.Errorf("steps = %d, want 0", cfg.StepCount())
	}
	if len(cfg.Watch) != 1 || cfg.Watch[0] != "total" {
		t.Errorf("watch = %v, want [total]", cfg.Watch)
	}
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"missing_source", "plugins: [math]", "source is required"},
		{"bad_extension", "source: main.go", "must have one of the extensions"},
		{"duplicate_plugin", "source: a.smeli\nplugins: [math, math]", "listed twice"},
		{"empty_plugin", "source: a.smeli\nplugins: [\"\"]", "name is required"},
		{"bad_level", "source: a.smeli\nlog_level: loud", "log_level"},
		{"bad_color", "source: a.smeli\ncolor: purple", "color"},
		{"negative_steps", "source: a.smeli\nsteps: -2", "steps must not be negative"},
		{"not_yaml", "source: [", "parsing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml), "smeli.yaml")
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestFindConfig(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	path, err := FindConfig(nested)
	if err != nil {
		t.Fatal(err)
	}
	if path != "" && strings.HasPrefix(path, root) {
		t.Fatalf("found unexpected config %s", path)
	}

	want := filepath.Join(root, "smeli.yml")
	if err := os.WriteFile(want, []byte("source: main.smeli\n"), 0644); err != nil {
		t.Fatal(err)
	}
	path, err = FindConfig(nested)
	if err != nil {
		t.Fatal(err)
	}
	if path != want {
		t.Fatalf("FindConfig = %q, want %q", path, want)
	}
}

func TestLoadConfigResolvesSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "smeli.yaml")
	if err := os.WriteFile(path, []byte("source: docs/main.smeli\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := cfg.SourcePath(), filepath.Join(dir, "docs", "main.smeli"); got != want {
		t.Errorf("SourcePath = %q, want %q", got, want)
	}

	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Errorf("expected an error for a missing file")
	}
}

func TestForSource(t *testing.T) {
	cfg, err := ForSource("talk.sm")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SourcePath() != "talk.sm" || cfg.LogLevel != LogInfo || cfg.StepCount() != AllSteps {
		t.Errorf("unexpected config %+v", cfg)
	}
	if _, err := ForSource("talk.txt"); err == nil {
		t.Errorf("expected an error for a non-source file")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for name, want := range tests {
		got, err := ParseLevel(name)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", name, got, err, want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Errorf("expected an error for an unknown level")
	}
}
