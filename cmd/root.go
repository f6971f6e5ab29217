package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mxfedl",
	Short: "mxfedl recognizes music in MXF files and writes edit decision lists.",
	Long: `mxfedl ingests broadcast media containers, identifies the music inside them
through a fingerprinting service and produces a CMX-style EDL per file.`,
	SilenceUsage: true,
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
