// build.go implements the 'swtrace build' command.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kolkov/swtrace/cmd/swtrace/runtime"
)

// buildCmd implements the 'swtrace build' command.
//
// This command instruments Go source files and builds them with the
// software-trace runtime. It accepts go build flags and passes them through.
//
// Flow:
//  1. Parse arguments (swtrace flags, go build flags, sources)
//  2. Create temporary workspace
//  3. Instrument source files (insert RecordLoc calls)
//  4. Setup runtime linking (workspace go.mod + go mod tidy)
//  5. Call 'go build' with instrumented code
//  6. Cleanup temporary files
var buildCmd = &cobra.Command{
	Use:   "build [flags] [sources]",
	Short: "Build an instrumented Go program",
	Long: `Build instruments the given Go files or directories and builds them.
Flags other than swtrace's own are passed to go build.`,
	Example: `  swtrace build main.go
  swtrace build -o myapp main.go helper.go
  swtrace build -ldflags="-s -w" .`,
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := parseBuildArgs(args)
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

		if err := buildInstrumented(cmd.Context(), s, config); err != nil {
			return err
		}
		if config.outputFile != "" && !s.quiet {
			okColor.Fprintf(s.out, "Built successfully: ")
			fmt.Fprintln(s.out, config.outputFile)
		}
		return nil
	},
}

var errHelp = errors.New("help requested")

// buildConfig holds configuration for the build command.
type buildConfig struct {
	// Source files to instrument and build
	sourceFiles []string

	// Output binary name (from -o flag)
	outputFile string

	// Additional go build flags
	buildFlags []string

	// Working directory for build
	workDir string

	// swtrace's own flags
	tool toolFlags
}

// parseBuildArgs parses command-line arguments for 'swtrace build'.
//
// It separates:
//   - swtrace flags (--config, --log-level, --jobs, --quiet, --keep-workspace, -v)
//   - Output file (-o flag)
//   - Go build flags (everything else starting with -)
//   - Source files (.go files or directories)
func parseBuildArgs(args []string) (*buildConfig, error) {
	config := &buildConfig{
		sourceFiles: []string{},
		buildFlags:  []string{},
		tool:        tool,
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	config.workDir = cwd

	expectingValue := false
	for i := 0; i < len(args); i++ {
		arg := args[i]

		// If previous flag expects a value, this is it (even if it starts with -)
		// Example: -ldflags "-s -w"
		if expectingValue {
			config.buildFlags = append(config.buildFlags, arg)
			expectingValue = false
			continue
		}

		if arg == "-h" || arg == "--help" {
			return nil, errHelp
		}

		consumed, err := parseToolFlag(&config.tool, args, &i)
		if err != nil {
			return nil, err
		}
		if consumed {
			continue
		}

		// Handle -o flag (output file)
		if arg == "-o" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("-o flag requires an argument")
			}
			i++
			config.outputFile = args[i]
			continue
		}
		if strings.HasPrefix(arg, "-o=") {
			config.outputFile = strings.TrimPrefix(arg, "-o=")
			continue
		}

		// Other flags go to go build.
		if strings.HasPrefix(arg, "-") {
			config.buildFlags = append(config.buildFlags, arg)
			expectingValue = needsValue(arg)
			continue
		}

		config.sourceFiles = append(config.sourceFiles, arg)
	}

	// Default: build current directory if no sources specified
	if len(config.sourceFiles) == 0 {
		config.sourceFiles = []string{"."}
	}

	return config, nil
}

// parseToolFlag consumes args[*i] (and its value) if it is a swtrace flag.
func parseToolFlag(t *toolFlags, args []string, i *int) (bool, error) {
	arg := args[*i]
	name, value, hasValue := strings.Cut(arg, "=")

	switch name {
	case "-v", "--verbose":
		t.verbose = true
		return true, nil
	case "--quiet":
		t.quiet = true
		return true, nil
	case "--keep-workspace":
		t.keepWorkspace = true
		return true, nil
	case "--config", "--log-level", "--jobs":
	default:
		return false, nil
	}

	if !hasValue {
		if *i+1 >= len(args) {
			return false, fmt.Errorf("%s flag requires an argument", name)
		}
		*i++
		value = args[*i]
	}
	switch name {
	case "--config":
		t.configPath = value
	case "--log-level":
		t.logLevel = value
	case "--jobs":
		n, err := strconv.Atoi(value)
		if err != nil {
			return false, fmt.Errorf("invalid --jobs value %q: %w", value, err)
		}
		t.jobs = n
	}
	return true, nil
}

// needsValue returns true if the go build flag expects a following value.
func needsValue(flag string) bool {
	valueFlags := []string{
		"-ldflags", "-gcflags", "-asmflags", "-gccgoflags",
		"-tags", "-installsuffix", "-buildmode", "-mod",
		"-modfile", "-overlay", "-pkgdir", "-toolexec", "-p",
	}

	for _, vf := range valueFlags {
		// Already has = format (e.g., -ldflags=-s)
		if strings.HasPrefix(flag, vf+"=") {
			return false
		}
		if flag == vf {
			return true
		}
	}

	return false
}

// buildInstrumented runs the whole build flow for config.
func buildInstrumented(ctx context.Context, s *settings, config *buildConfig) error {
	goFiles, err := collectGoFiles(config.sourceFiles, config.workDir)
	if err != nil {
		return fmt.Errorf("failed to collect source files: %w", err)
	}
	if len(goFiles) == 0 {
		return fmt.Errorf("no Go source files found")
	}
	if config.outputFile == "" {
		config.outputFile = defaultOutputName(config.sourceFiles, goFiles)
	}

	ws, err := createWorkspace(s.logger)
	if err != nil {
		return fmt.Errorf("error creating workspace: %w", err)
	}
	defer ws.cleanup(s.cfg.KeepWorkspace)

	results, err := instrumentSources(ctx, s, goFiles, ws.srcDir)
	if err != nil {
		return fmt.Errorf("error instrumenting sources: %w", err)
	}
	if !s.quiet {
		printSummary(s.out, results, s.verbose)
	}

	if err := ws.setupRuntimeLinking(ctx, filepath.Dir(goFiles[0]), os.Stderr); err != nil {
		return fmt.Errorf("error setting up runtime: %w", err)
	}
	if err := ws.build(ctx, config); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	return nil
}

// defaultOutputName names the binary the way go build does: after the
// first file when files are listed, otherwise after the directory.
func defaultOutputName(sources, goFiles []string) string {
	name := filepath.Base(filepath.Dir(goFiles[0]))
	if strings.HasSuffix(sources[0], ".go") {
		name = strings.TrimSuffix(filepath.Base(goFiles[0]), ".go")
	}
	if goruntime.GOOS == "windows" {
		name += ".exe"
	}
	return name
}

// workspace represents a temporary workspace for instrumented code.
type workspace struct {
	// Root directory of workspace; go.mod lives here
	dir string

	// Source directory (where instrumented .go files go)
	srcDir string

	logger *slog.Logger
}

// createWorkspace creates a temporary workspace for building instrumented code.
func createWorkspace(logger *slog.Logger) (*workspace, error) {
	dir, err := os.MkdirTemp("", "swtrace-build-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	srcDir := filepath.Join(dir, "src")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to create src directory: %w", err)
	}

	logger.Debug("created workspace", "dir", dir)
	return &workspace{dir: dir, srcDir: srcDir, logger: logger}, nil
}

// cleanup removes the temporary workspace unless keep is set.
func (w *workspace) cleanup(keep bool) {
	if w.dir == "" {
		return
	}
	if keep {
		w.logger.Info("kept workspace", "dir", w.dir)
		return
	}
	_ = os.RemoveAll(w.dir)
}

// setupRuntimeLinking writes the workspace go.mod and resolves dependencies.
func (w *workspace) setupRuntimeLinking(ctx context.Context, sourceDir string, stderr io.Writer) error {
	goModPath, err := runtime.ModFileOverlay(w.dir, sourceDir)
	if err != nil {
		return fmt.Errorf("failed to create go.mod overlay: %w", err)
	}
	w.logger.Debug("wrote workspace go.mod", "path", goModPath)

	tidyCmd := exec.CommandContext(ctx, "go", "mod", "tidy")
	tidyCmd.Dir = w.dir
	tidyCmd.Stdout = stderr
	tidyCmd.Stderr = stderr
	if err := tidyCmd.Run(); err != nil {
		return fmt.Errorf("failed to tidy go.mod: %w", err)
	}
	return nil
}

// buildArgs returns the arguments of 'go build' for config.
func (w *workspace) buildArgs(config *buildConfig) []string {
	args := []string{"build"}

	if config.outputFile != "" {
		outputPath := config.outputFile
		if !filepath.IsAbs(outputPath) {
			outputPath = filepath.Join(config.workDir, outputPath)
		}
		args = append(args, "-o", outputPath)
	}

	args = append(args, config.buildFlags...)
	return append(args, ".")
}

// build runs 'go build' on the instrumented code in the workspace.
func (w *workspace) build(ctx context.Context, config *buildConfig) error {
	args := w.buildArgs(config)
	w.logger.Debug("running go", "args", args, "dir", w.srcDir)

	cmd := exec.CommandContext(ctx, "go", args...)
	cmd.Dir = w.srcDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
