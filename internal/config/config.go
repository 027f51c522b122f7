package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SourceType selects where the daemon reads desktops and windows from.
type SourceType string

const (
	SourceX11    SourceType = "x11"
	SourceStatic SourceType = "static"
)

// Policy controls how client requests to move windows are handled.
type Policy struct {
	// AllowClientRequests lets clients move windows between workspaces.
	AllowClientRequests bool `yaml:"allow_client_requests"`
}

// Limits bounds per-client resource usage.
type Limits struct {
	MaxObjectsPerClient int `yaml:"max_objects_per_client"` // 0 = unlimited
	OutboundQueue       int `yaml:"outbound_queue"`         // events buffered per client
}

// Protocol selects advertised protocol versions.
type Protocol struct {
	InteropVersion uint32 `yaml:"interop_version"`
}

// Config is the daemon configuration.
type Config struct {
	SocketPath        string        `yaml:"socket_path"`
	LogLevel          string        `yaml:"log_level"`
	Source            SourceType    `yaml:"source"`
	Display           string        `yaml:"display"`
	StaticWorkspaces  []string      `yaml:"static_workspaces"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"` // 0 disables
	Policy            Policy        `yaml:"policy"`
	Limits            Limits        `yaml:"limits"`
	Protocol          Protocol      `yaml:"protocol"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:          "info",
		Source:            SourceX11,
		StaticWorkspaces:  []string{"main", "web", "chat"},
		ReconcileInterval: 10 * time.Second,
		Policy: Policy{
			AllowClientRequests: true,
		},
		Limits: Limits{
			MaxObjectsPerClient: 4096,
			OutboundQueue:       256,
		},
		Protocol: Protocol{
			InteropVersion: 1,
		},
	}
}

// ValidationError reports an invalid setting, with its YAML path and, when
// known, the file position it came from.
type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: debug, info, warn, error")}
	}
	switch c.Source {
	case SourceX11:
	case SourceStatic:
		if len(c.StaticWorkspaces) == 0 {
			return &ValidationError{Path: "static_workspaces", Err: fmt.Errorf("static_workspaces must not be empty for the static source")}
		}
		for _, name := range c.StaticWorkspaces {
			if strings.TrimSpace(name) == "" {
				return &ValidationError{Path: "static_workspaces", Err: fmt.Errorf("workspace names must not be empty")}
			}
		}
	default:
		return &ValidationError{Path: "source", Err: fmt.Errorf("source must be one of: x11, static")}
	}
	if c.ReconcileInterval < 0 {
		return &ValidationError{Path: "reconcile_interval", Err: fmt.Errorf("reconcile_interval must be >= 0")}
	}
	if c.Limits.MaxObjectsPerClient < 0 {
		return &ValidationError{Path: "limits.max_objects_per_client", Err: fmt.Errorf("max_objects_per_client must be >= 0")}
	}
	if c.Limits.OutboundQueue < 1 {
		return &ValidationError{Path: "limits.outbound_queue", Err: fmt.Errorf("outbound_queue must be >= 1")}
	}
	if c.Protocol.InteropVersion != 1 {
		return &ValidationError{Path: "protocol.interop_version", Err: fmt.Errorf("interop_version must be 1")}
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Save writes the configuration to path, or to the standard location when
// path is empty.
//
// Note: this marshals the effective config and will not preserve comments
// from the original YAML.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
