// version.go implements the 'swtrace version' command.
package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kolkov/swtrace/swt"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and runtime information",
	Run: func(cmd *cobra.Command, _ []string) {
		renderVersion(cmd.OutOrStdout(), swt.GetInfo())
	},
}

func renderVersion(w io.Writer, info swt.Info) {
	color.New(color.Bold).Fprintf(w, "swtrace version %s\n", info.Version)
	fmt.Fprintf(w, "  initial capacity: %d records\n", info.InitialCapacity)
	fmt.Fprintf(w, "  growth step:      %d records\n", info.GrowthStep)
	fmt.Fprintf(w, "  record size:      %d bytes\n", info.RecordSize)
}
