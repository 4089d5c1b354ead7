// instrument_cmd.go implements the 'swtrace instrument' command.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var instrumentOut string

// instrumentCmd writes instrumented sources without building them.
var instrumentCmd = &cobra.Command{
	Use:   "instrument [-o dir] [sources]",
	Short: "Write instrumented sources to a directory",
	Long: `Instrument rewrites the given Go files or directories and writes the
results to the output directory, without building them. The output can be
inspected or built with a go.mod that requires the swtrace runtime.`,
	Example: `  swtrace instrument -o _swtrace .
  swtrace instrument -v -o out main.go util.go`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(tool, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		if len(args) == 0 {
			args = []string{"."}
		}

		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		goFiles, err := collectGoFiles(args, cwd)
		if err != nil {
			return fmt.Errorf("failed to collect source files: %w", err)
		}
		if err := os.MkdirAll(instrumentOut, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		results, err := instrumentSources(cmd.Context(), s, goFiles, instrumentOut)
		if err != nil {
			return err
		}
		if !s.quiet {
			printSummary(cmd.OutOrStdout(), results, s.verbose)
		}
		return nil
	},
}

func init() {
	instrumentCmd.Flags().StringVarP(&instrumentOut, "output", "o", "_swtrace", "output directory")
}
