// run.go implements the 'swtrace run' command.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// runCmd implements the 'swtrace run' command.
//
// This command instruments Go source files, builds them temporarily,
// and immediately executes the resulting binary. It acts as a drop-in
// replacement for 'go run'.
//
// Flow:
//  1. Parse arguments (source files + program arguments)
//  2. Build instrumented binary to temp location
//  3. Execute binary with program arguments
//  4. Forward stdin/stdout/stderr
//  5. Return program's exit code
var runCmd = &cobra.Command{
	Use:   "run [flags] file.go...|dir [arguments...]",
	Short: "Build and run an instrumented Go program",
	Example: `  swtrace run main.go
  swtrace run main.go arg1 arg2
  swtrace run ./examples/dogfooding
  swtrace run --quiet main.go --program-flag=value`,
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, programArgs, err := parseRunArgs(args)
		if errors.Is(err, errHelp) {
			return cmd.Help()
		}
		if err != nil {
			return err
		}
		s, err := loadSettings(config.tool, cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		tempBinary, err := buildTemporary(cmd.Context(), s, config)
		if err != nil {
			return err
		}
		defer func() { _ = os.Remove(tempBinary) }()

		code := executeBinary(tempBinary, programArgs, cmd.ErrOrStderr())
		if code != 0 {
			return &exitError{code: code}
		}
		return nil
	},
}

// parseRunArgs separates source files from program arguments.
//
// The format is:
//
//	swtrace run [swtrace flags] [build flags] file.go... [arguments...]
//	swtrace run [swtrace flags] [build flags] ./pkgdir [arguments...]
//
// Everything after the source files is passed to the program. A package
// directory counts as a source only if it exists.
//
// Returns:
//   - buildConfig for compilation
//   - programArgs to pass to executable
//   - error if parsing fails
func parseRunArgs(args []string) (*buildConfig, []string, error) {
	if len(args) == 0 {
		return nil, nil, fmt.Errorf("no source files specified")
	}

	config := &buildConfig{tool: tool}
	var programArgs []string

	sawGoFile := false
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if sawGoFile && !isRunSource(arg) {
			programArgs = append(programArgs, args[i:]...)
			break
		}
		if isRunSource(arg) {
			config.sourceFiles = append(config.sourceFiles, arg)
			sawGoFile = true
			continue
		}

		if arg == "-h" || arg == "--help" {
			return nil, nil, errHelp
		}
		consumed, err := parseToolFlag(&config.tool, args, &i)
		if err != nil {
			return nil, nil, err
		}
		if consumed {
			continue
		}

		// Build flags come before source files.
		config.buildFlags = append(config.buildFlags, arg)
		if needsValue(arg) && i+1 < len(args) {
			i++
			config.buildFlags = append(config.buildFlags, args[i])
		}
	}

	if len(config.sourceFiles) == 0 {
		return nil, nil, fmt.Errorf("no Go source files specified")
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	config.workDir = cwd

	return config, programArgs, nil
}

// isRunSource reports whether arg names a .go file or a package directory.
func isRunSource(arg string) bool {
	if filepath.Ext(arg) == ".go" {
		return true
	}
	if strings.HasPrefix(arg, "-") {
		return false
	}
	fi, err := os.Stat(arg)
	return err == nil && fi.IsDir()
}

// buildTemporary builds the instrumented code to a temporary binary.
//
// Returns:
//   - Path to temporary binary
//   - Error if build fails
func buildTemporary(ctx context.Context, s *settings, config *buildConfig) (string, error) {
	tempBinary, err := os.CreateTemp("", "swtrace-run-*.exe")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempBinary.Name()
	_ = tempBinary.Close()

	config.outputFile = tempPath
	if err := buildInstrumented(ctx, s, config); err != nil {
		_ = os.Remove(tempPath)
		return "", err
	}
	return tempPath, nil
}

// executeBinary runs the instrumented binary with given arguments.
//
// This forwards stdin/stdout/stderr to the child process and returns the
// process exit code. The child is not bound to the command context: an
// interrupt reaches it directly and it decides how to exit.
func executeBinary(binaryPath string, args []string, stderr io.Writer) int {
	cmd := exec.Command(binaryPath, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		fmt.Fprintf(stderr, "Error executing binary: %v\n", err)
		return 1
	}
	return 0
}
