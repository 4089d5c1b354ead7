// Package config holds the settings of the swtrace tool.
//
// Settings come from a .swtrace.yaml file, found by walking up from the
// working directory or named with --config. Command-line flags override
// them.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/kolkov/swtrace/internal/swt/sigabort"
)

// FileName is the name of the configuration file looked up by Find.
const FileName = ".swtrace.yaml"

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Config is the contents of .swtrace.yaml.
type Config struct {
	// RuntimeImport overrides the import path of the trace runtime.
	RuntimeImport string `yaml:"runtime_import,omitempty"`

	// Exclude lists glob patterns, matched against file base names, of
	// sources that are copied without instrumentation.
	Exclude []string `yaml:"exclude,omitempty"`

	// InvalidateSignals are signal names that invalidate every live trace
	// of the instrumented program, e.g. SIGUSR1.
	InvalidateSignals []string `yaml:"invalidate_signals,omitempty"`

	// Report makes the instrumented main print a summary on exit.
	Report bool `yaml:"report"`

	// Jobs is the number of files instrumented in parallel; 0 means GOMAXPROCS.
	Jobs int `yaml:"jobs"`

	Verbose       bool   `yaml:"verbose"`
	LogLevel      string `yaml:"log_level"`
	KeepWorkspace bool   `yaml:"keep_workspace"`
}

// Default returns the configuration used when no file is found.
func Default() Config {
	return Config{
		Report:   true,
		LogLevel: "info",
	}
}

// Validate checks field values.
func (c *Config) Validate() error {
	var errs []error
	if c.Jobs < 0 {
		errs = append(errs, fmt.Errorf("jobs must be >= 0, got %d", c.Jobs))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if _, err := sigabort.ParseSignals(c.InvalidateSignals); err != nil {
		errs = append(errs, fmt.Errorf("invalidate_signals: %w", err))
	}
	for _, p := range c.Exclude {
		if _, err := filepath.Match(p, ""); err != nil {
			errs = append(errs, fmt.Errorf("exclude pattern %q: %w", p, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Excluded reports whether the file at path matches an exclude pattern.
func (c *Config) Excluded(path string) bool {
	base := filepath.Base(path)
	for _, p := range c.Exclude {
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}

// ParseLevel converts a level name to a slog.Level. The empty string is info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", name)
}
