package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/harrison/visualexec/internal/cmd"
	"github.com/harrison/visualexec/internal/proc"
)

func main() {
	rootCmd := cmd.NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode reports err and returns the status to exit with. A failed child
// was already reported by the run output, so only its exit code is passed on.
func exitCode(err error) int {
	var exitErr *proc.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.ExitCode > 0 {
			return exitErr.ExitCode
		}
		return 1
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}
