package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for visualexec
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "visualexec",
		Short: "Run a shell command with a live digest of its output",
		Long: `Visualexec runs a shell command and shows the latest lines of its
stdout and stderr as live, in-place status lines while it runs.

When the command finishes it logs a one-line summary with the elapsed
time and exit status, followed by the full captured output. Output that
looks like an error escalates the report to error level.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
		// main reports errors so a failed child is not reported twice
		SilenceErrors: true,
	}

	// Add subcommands
	cmd.AddCommand(NewRunCommand())

	return cmd
}
