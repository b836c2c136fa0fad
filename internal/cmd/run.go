package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/alessio/shellescape"
	"github.com/harrison/visualexec/internal/config"
	"github.com/harrison/visualexec/internal/display"
	"github.com/harrison/visualexec/internal/logger"
	"github.com/harrison/visualexec/internal/proc"
	"github.com/harrison/visualexec/internal/reporter"
	"github.com/spf13/cobra"
)

// ErrNoCommand is returned when neither the arguments nor the config name a command.
var ErrNoCommand = errors.New("no command to run: pass one after -- or set command in .visualexec/config.yaml")

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [flags] [-- command args...]",
		Short: "Run a command with live output digests",
		Long: `Run a shell command and show its output as live digests.

The command is taken from the arguments after --, or from the command key
of the config file. It runs through sh -c (cmd /C on Windows) in the
configured directory with the current environment plus PWD.

Configuration is loaded from the nearest .visualexec/config.yaml, walking
up from the current directory, or from --config / VISUALEXEC_CONFIG.
CLI flags override configuration file settings.

Examples:
  visualexec run -- make build
  visualexec run --title "Unit tests" -- go test ./...
  visualexec run --output-level info --indicator line -- npm run lint
  visualexec run --no-force-stderr --error-pattern "" -- ./deploy.sh
  visualexec run --config ci.yaml`,
		RunE: runCommand,
	}

	// Add flags
	cmd.Flags().String("config", "", "Path to config file (default: .visualexec/config.yaml)")
	cmd.Flags().String("dir", "", "Working directory of the command")
	cmd.Flags().String("title", "", "Title of the live display (default: Running <command>)")
	cmd.Flags().String("output-level", "", "Level of the output report for a clean run (default: verbose)")
	cmd.Flags().String("log-level", "", "Console log level: "+strings.Join(logger.ValidLevels, ", "))
	cmd.Flags().Int("max-output", 0, "Maximum captured bytes per stream")
	cmd.Flags().String("indicator", "", "Live indicator: "+strings.Join(display.IndicatorNames(), ", "))
	cmd.Flags().Bool("no-force-stderr", false, "Do not treat stderr output as an error")
	cmd.Flags().String("error-pattern", "", `Regex that escalates the report when it matches stdout ("" disables)`)

	return cmd
}

// runCommand implements the run command logic
func runCommand(cmd *cobra.Command, args []string) error {
	cfg, configPath, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}

	command := commandLine(args)
	if command == "" {
		command = cfg.Command
	}
	if strings.TrimSpace(command) == "" {
		return ErrNoCommand
	}

	opts, err := cfg.ReporterOptions(command)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	term := display.NewTerminal(display.Options{
		Writer:   cmd.OutOrStdout(),
		LogLevel: cfg.LogLevel,
	})
	defer term.Close()

	if display.InCI() {
		term.Log(display.LevelVerbose, "visualexec: CI env detected")
	}
	if configPath != "" {
		term.Log(display.LevelDebug, "visualexec: config", configPath)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	rep := reporter.New(opts, term)
	_, err = rep.Execute(ctx, "")

	var exitErr *proc.ExitError
	if errors.Is(err, proc.ErrOutputOverflow) && errors.As(err, &exitErr) {
		limit := opts.MaxOutput
		if limit <= 0 {
			limit = proc.DefaultMaxOutput
		}
		display.OverflowWarning(command, limit, overflowedStreams(exitErr.Output, limit)).Display(cmd.ErrOrStderr())
	}

	return err
}

// commandLine turns the arguments after -- back into a shell command. A
// single argument is taken as a complete command line; several are quoted
// so each reaches the command as one word.
func commandLine(args []string) string {
	switch len(args) {
	case 0:
		return ""
	case 1:
		return args[0]
	default:
		return shellescape.QuoteCommand(args)
	}
}

// overflowedStreams names the streams whose capture reached limit.
func overflowedStreams(out proc.Output, limit int) []string {
	var streams []string
	if len(out.Stdout) >= limit {
		streams = append(streams, proc.Stdout.String())
	}
	if len(out.Stderr) >= limit {
		streams = append(streams, proc.Stderr.String())
	}
	return streams
}

// loadRunConfig loads the config file, applies changed flags and validates
// the result. It returns the path that was loaded, or "" when none existed.
func loadRunConfig(cmd *cobra.Command) (*config.Config, string, error) {
	explicit, _ := cmd.Flags().GetString("config")

	path, err := config.ResolveConfigPath(explicit, "")
	if err != nil {
		return nil, "", fmt.Errorf("failed to locate config: %w", err)
	}

	if explicit != "" {
		if _, statErr := os.Stat(explicit); statErr != nil {
			return nil, "", fmt.Errorf("failed to load config from %s: %w", explicit, statErr)
		}
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	if _, statErr := os.Stat(path); statErr != nil {
		path = ""
	}

	// Build flag pointers for merge (only changed values)
	var flags config.Flags
	if cmd.Flags().Changed("dir") {
		v, _ := cmd.Flags().GetString("dir")
		flags.Dir = &v
	}
	if cmd.Flags().Changed("title") {
		v, _ := cmd.Flags().GetString("title")
		flags.Title = &v
	}
	if cmd.Flags().Changed("output-level") {
		v, _ := cmd.Flags().GetString("output-level")
		flags.OutputLevel = &v
	}
	if cmd.Flags().Changed("log-level") {
		v, _ := cmd.Flags().GetString("log-level")
		flags.LogLevel = &v
	}
	if cmd.Flags().Changed("max-output") {
		v, _ := cmd.Flags().GetInt("max-output")
		flags.MaxOutput = &v
	}
	if cmd.Flags().Changed("indicator") {
		v, _ := cmd.Flags().GetString("indicator")
		flags.Indicator = &v
	}
	if cmd.Flags().Changed("no-force-stderr") {
		noForce, _ := cmd.Flags().GetBool("no-force-stderr")
		force := !noForce
		flags.ForceStderrAsError = &force
	}
	if cmd.Flags().Changed("error-pattern") {
		v, _ := cmd.Flags().GetString("error-pattern")
		flags.ErrorPattern = &v
	}

	// Merge CLI flags with config (flags take precedence)
	cfg.MergeWithFlags(flags)

	// Validate merged configuration
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, path, nil
}
