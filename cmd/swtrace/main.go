// Package main implements the swtrace CLI tool.
//
// The swtrace tool builds Go programs that can record software traces: the
// sequence of basic blocks a goroutine executes between swt.StartTracing and
// swt.StopTracing. It works by:
//
//  1. Parsing Go source files using go/ast
//  2. Inserting a swt.RecordLoc call at the entry of every block
//  3. Linking the software-trace runtime through a workspace go.mod
//  4. Building/running the instrumented code
//
// Usage:
//
//	swtrace build main.go          # Build an instrumented binary
//	swtrace run main.go            # Build and run it
//	swtrace instrument -o out .    # Write instrumented sources only
//	swtrace init                   # Write a default .swtrace.yaml
//
// Settings are read from .swtrace.yaml (see package config) and may be
// overridden by flags.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/kolkov/swtrace/cmd/swtrace/config"
	"github.com/kolkov/swtrace/swt"
)

var rootCmd = &cobra.Command{
	Use:   "swtrace",
	Short: "Build Go programs that record software traces",
	Long: `swtrace instruments Go sources so that every block entry is recorded
into a per-goroutine trace, then builds or runs the result with the
software-trace runtime linked in.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = swt.Version

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&tool.configPath, "config", "", "path to the config file (default: nearest "+config.FileName+")")
	pf.StringVar(&tool.logLevel, "log-level", "", "log level (debug|info|warn|error)")
	pf.BoolVar(&tool.quiet, "quiet", false, "suppress the instrumentation summary")
	pf.BoolVarP(&tool.verbose, "verbose", "v", false, "print per-file statistics")
	pf.IntVar(&tool.jobs, "jobs", -1, "files instrumented in parallel (0 = GOMAXPROCS, -1 = config)")
	pf.BoolVar(&tool.keepWorkspace, "keep-workspace", false, "do not delete the build workspace")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(instrumentCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	// A program started by "swtrace run" decides the exit status.
	var exit *exitError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// exitError carries the exit status of a program started by "swtrace run".
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}
