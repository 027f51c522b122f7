package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if cfg.Limits.MaxObjectsPerClient != 4096 {
		t.Errorf("max_objects_per_client = %d, want 4096", cfg.Limits.MaxObjectsPerClient)
	}
	if !cfg.Policy.AllowClientRequests {
		t.Error("client requests disabled by default")
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	res, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.File != "" {
		t.Errorf("File = %q, want empty", res.File)
	}
	if res.Config.Source != SourceX11 {
		t.Errorf("source = %q, want x11", res.Config.Source)
	}
}

func TestLoadFromPath_EmptyFileUsesDefaults(t *testing.T) {
	path := writeConfig(t, "# empty")
	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.ReconcileInterval != 10*time.Second {
		t.Errorf("reconcile_interval = %v", res.Config.ReconcileInterval)
	}
}

func TestLoadFromPath_Overrides(t *testing.T) {
	path := writeConfig(t,
		"log_level: debug",
		"source: static",
		"static_workspaces: [one, two]",
		"reconcile_interval: 2s",
		"policy:",
		"  allow_client_requests: false",
		"limits:",
		"  max_objects_per_client: 10",
	)
	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := res.Config
	if cfg.Source != SourceStatic {
		t.Errorf("source = %q", cfg.Source)
	}
	if got := strings.Join(cfg.StaticWorkspaces, ","); got != "one,two" {
		t.Errorf("static_workspaces = %q", got)
	}
	if cfg.ReconcileInterval != 2*time.Second {
		t.Errorf("reconcile_interval = %v", cfg.ReconcileInterval)
	}
	if cfg.Policy.AllowClientRequests {
		t.Error("allow_client_requests not overridden")
	}
	if cfg.Limits.MaxObjectsPerClient != 10 {
		t.Errorf("max_objects_per_client = %d", cfg.Limits.MaxObjectsPerClient)
	}
	// untouched keys keep defaults
	if cfg.Limits.OutboundQueue != 256 {
		t.Errorf("outbound_queue = %d, want default", cfg.Limits.OutboundQueue)
	}
}

func TestLoadFromPath_UnknownKeyRejected(t *testing.T) {
	path := writeConfig(t, "hotkey: super+t")
	if _, err := LoadFromPath(path); err == nil {
		t.Fatal("expected unknown key to fail")
	}
}

func TestLoadFromPath_ValidationErrorHasPosition(t *testing.T) {
	path := writeConfig(t,
		"log_level: info",
		"protocol:",
		"  interop_version: 2",
	)
	_, err := LoadFromPath(path)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if verr.Path != "protocol.interop_version" {
		t.Errorf("path = %q", verr.Path)
	}
	if verr.Source.Line != 3 {
		t.Errorf("line = %d, want 3", verr.Source.Line)
	}
	if !strings.Contains(err.Error(), ":3:") {
		t.Errorf("error %q lacks position", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"source", func(c *Config) { c.Source = "wayland" }, "source"},
		{"static without workspaces", func(c *Config) {
			c.Source = SourceStatic
			c.StaticWorkspaces = nil
		}, "static_workspaces"},
		{"blank workspace name", func(c *Config) {
			c.Source = SourceStatic
			c.StaticWorkspaces = []string{"a", " "}
		}, "static_workspaces"},
		{"negative interval", func(c *Config) { c.ReconcileInterval = -time.Second }, "reconcile_interval"},
		{"negative object limit", func(c *Config) { c.Limits.MaxObjectsPerClient = -1 }, "limits.max_objects_per_client"},
		{"empty queue", func(c *Config) { c.Limits.OutboundQueue = 0 }, "limits.outbound_queue"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if verr.Path != tt.path {
				t.Errorf("path = %q, want %q", verr.Path, tt.path)
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.LogLevel = tt.level
			if err := cfg.Validate(); err != nil {
				t.Fatalf("validate: %v", err)
			}
			if got := cfg.SlogLevel(); got != tt.want {
				t.Errorf("SlogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Source = SourceStatic
	cfg.ReconcileInterval = 3 * time.Second
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.Source != SourceStatic || res.Config.ReconcileInterval != 3*time.Second {
		t.Errorf("loaded %+v", res.Config)
	}
}

func TestDefaultConfigPath_UsesHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path, err := DefaultConfigPath()
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(home, ".config", "wsinterop", "config.yaml")
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
}
