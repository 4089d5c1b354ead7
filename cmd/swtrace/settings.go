// settings.go merges the config file with command-line flags.
package main

import (
	"io"
	"log/slog"
	"os"
	goruntime "runtime"

	"github.com/kolkov/swtrace/cmd/swtrace/config"
)

// toolFlags are the swtrace flags shared by every command. Zero values
// (and jobs == -1) leave the config file value in place.
type toolFlags struct {
	configPath    string
	logLevel      string
	quiet         bool
	verbose       bool
	keepWorkspace bool
	jobs          int
}

// tool is bound to the root command's persistent flags. Commands that
// pass their arguments through to the go command parse the same flags
// by hand.
var tool = toolFlags{jobs: -1}

// settings is the merged configuration of one invocation.
type settings struct {
	cfg     config.Config
	logger  *slog.Logger
	out     io.Writer // summary output
	quiet   bool
	verbose bool
}

// loadSettings reads the config file and applies the flags on top of it.
func loadSettings(f toolFlags, stderr io.Writer) (*settings, error) {
	cfg, path, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.jobs >= 0 {
		cfg.Jobs = f.jobs
	}
	cfg.Verbose = cfg.Verbose || f.verbose
	cfg.KeepWorkspace = cfg.KeepWorkspace || f.keepWorkspace
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	if path != "" {
		logger.Debug("loaded config", "path", path)
	}

	return &settings{
		cfg:     cfg,
		logger:  logger,
		out:     os.Stdout,
		quiet:   f.quiet,
		verbose: cfg.Verbose,
	}, nil
}

// jobs returns the number of files instrumented in parallel.
func (s *settings) jobs(files int) int {
	n := s.cfg.Jobs
	if n <= 0 {
		n = goruntime.GOMAXPROCS(0)
	}
	return max(1, min(n, files))
}
