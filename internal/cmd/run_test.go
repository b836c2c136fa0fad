package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/harrison/visualexec/internal/config"
	"github.com/harrison/visualexec/internal/proc"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRunTest isolates config discovery and color state.
func setupRunTest(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("run tests use sh")
	}

	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	t.Setenv(config.EnvConfigPath, "")
	t.Setenv("CI", "")

	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

// Helper function to execute run command with args
func executeRunCommand(t *testing.T, args []string) (string, error) {
	t.Helper()

	rootCmd := &cobra.Command{Use: "visualexec", SilenceUsage: true, SilenceErrors: true}
	rootCmd.AddCommand(NewRunCommand())

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return buf.String(), err
}

func writeProjectConfig(t *testing.T, dir, content string) {
	t.Helper()
	configDir := filepath.Join(dir, config.DirName)
	require.NoError(t, os.MkdirAll(configDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, config.FileName), []byte(content), 0644))
}

func TestRunCommand_Success(t *testing.T) {
	setupRunTest(t)

	output, err := executeRunCommand(t, []string{"run", "--log-level", "verbose", "--", "echo", "hello"})
	require.NoError(t, err)

	assert.Contains(t, output, "[INFO] Done Running echo hello (")
	assert.Contains(t, output, "exit code 0")
	assert.Contains(t, output, "Start of output from Running echo hello ===\nhello\n")
	assert.Contains(t, output, "End of output from Running echo hello ---")
	assert.NotContains(t, output, "=== stderr ===")
}

func TestRunCommand_QuotesArguments(t *testing.T) {
	setupRunTest(t)

	output, err := executeRunCommand(t, []string{"run", "--output-level", "info", "--", "printf", "%s|", "a b"})
	require.NoError(t, err)

	assert.Contains(t, output, "Done Running printf '%s|' 'a b'")
	assert.Contains(t, output, "===\na b|")
}

func TestCommandLine(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "no args", args: nil, want: ""},
		{name: "single arg is a command line", args: []string{"echo a; exit 3"}, want: "echo a; exit 3"},
		{name: "plain words", args: []string{"echo", "hello"}, want: "echo hello"},
		{name: "spaced arg", args: []string{"printf", "%s|", "a b"}, want: "printf '%s|' 'a b'"},
		{name: "single quote", args: []string{"echo", "it's"}, want: `echo 'it'"'"'s'`},
		{name: "empty arg", args: []string{"echo", ""}, want: "echo ''"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, commandLine(tt.args))
		})
	}
}

func TestRunCommand_ReportHiddenBelowLogLevel(t *testing.T) {
	setupRunTest(t)

	output, err := executeRunCommand(t, []string{"run", "--", "echo", "quiet"})
	require.NoError(t, err)

	assert.Contains(t, output, "Done Running echo quiet")
	assert.NotContains(t, output, "Start of output")
}

func TestRunCommand_Failure(t *testing.T) {
	setupRunTest(t)

	output, err := executeRunCommand(t, []string{"run", "--", "echo partial; exit 3"})
	require.Error(t, err)

	var exitErr *proc.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.ExitCode)

	assert.Contains(t, output, "[ERROR] Done Running echo partial; exit 3")
	assert.Contains(t, output, "failed cmd")
	assert.Contains(t, output, "partial")
}

func TestRunCommand_StderrPolicy(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantReport bool
	}{
		{
			name:       "stderr escalates by default",
			args:       []string{"run", "--", "echo oops 1>&2"},
			wantReport: true,
		},
		{
			name:       "no-force-stderr keeps verbose",
			args:       []string{"run", "--no-force-stderr", "--", "echo oops 1>&2"},
			wantReport: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupRunTest(t)

			output, err := executeRunCommand(t, tt.args)
			require.NoError(t, err)

			if tt.wantReport {
				assert.Contains(t, output, "=== stderr ===\noops")
			} else {
				assert.NotContains(t, output, "=== stderr ===")
			}
		})
	}
}

func TestRunCommand_ErrorPattern(t *testing.T) {
	setupRunTest(t)

	output, err := executeRunCommand(t, []string{"run", "--", "echo WARN: low memory"})
	require.NoError(t, err)
	assert.Contains(t, output, "Start of output from")

	output, err = executeRunCommand(t, []string{"run", "--error-pattern", "", "--", "echo WARN: low memory"})
	require.NoError(t, err)
	assert.NotContains(t, output, "Start of output from")
}

func TestRunCommand_CommandFromConfig(t *testing.T) {
	dir := setupRunTest(t)
	writeProjectConfig(t, dir, `command: echo from-config
title: Configured
output_level: info
`)

	output, err := executeRunCommand(t, []string{"run"})
	require.NoError(t, err)

	assert.Contains(t, output, "Done Configured")
	assert.Contains(t, output, "from-config")
}

func TestRunCommand_ArgsOverrideConfig(t *testing.T) {
	dir := setupRunTest(t)
	writeProjectConfig(t, dir, "command: echo from-config\n")

	output, err := executeRunCommand(t, []string{"run", "--title", "Args", "--", "echo", "from-args"})
	require.NoError(t, err)

	assert.Contains(t, output, "Done Args")
	assert.NotContains(t, output, "from-config")
}

func TestRunCommand_Dir(t *testing.T) {
	setupRunTest(t)
	workDir := t.TempDir()

	output, err := executeRunCommand(t, []string{"run", "--output-level", "info", "--dir", workDir, "--", "echo $PWD"})
	require.NoError(t, err)
	assert.Contains(t, output, workDir)
}

func TestRunCommand_Overflow(t *testing.T) {
	setupRunTest(t)

	output, err := executeRunCommand(t, []string{"run", "--max-output", "4", "--", "echo 0123456789"})
	require.Error(t, err)
	assert.ErrorIs(t, err, proc.ErrOutputOverflow)
	assert.Contains(t, output, "Warning: Output truncated")
	assert.Contains(t, output, "1. stdout")
}

func TestOverflowedStreams(t *testing.T) {
	out := proc.Output{Stdout: "abcd", Stderr: "ab"}
	assert.Equal(t, []string{"stdout"}, overflowedStreams(out, 4))
	assert.Equal(t, []string{"stdout", "stderr"}, overflowedStreams(out, 2))
	assert.Empty(t, overflowedStreams(out, 10))
}

func TestRunCommand_Errors(t *testing.T) {
	tests := []struct {
		name           string
		args           []string
		wantErrContain string
	}{
		{
			name:           "no command",
			args:           []string{"run"},
			wantErrContain: "no command to run",
		},
		{
			name:           "unknown indicator",
			args:           []string{"run", "--indicator", "hourglass", "--", "true"},
			wantErrContain: "invalid configuration",
		},
		{
			name:           "bad output level",
			args:           []string{"run", "--output-level", "loud", "--", "true"},
			wantErrContain: "invalid output_level",
		},
		{
			name:           "bad error pattern",
			args:           []string{"run", "--error-pattern", "(", "--", "true"},
			wantErrContain: "invalid error_pattern",
		},
		{
			name:           "missing config file",
			args:           []string{"run", "--config", "/nonexistent/visualexec.yaml", "--", "true"},
			wantErrContain: "failed to load config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupRunTest(t)

			_, err := executeRunCommand(t, tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErrContain)
		})
	}
}

func TestRunCommand_NoCommandIsSentinel(t *testing.T) {
	setupRunTest(t)

	_, err := executeRunCommand(t, []string{"run"})
	assert.True(t, errors.Is(err, ErrNoCommand))
}

func TestRunCommand_InvalidConfigFile(t *testing.T) {
	dir := setupRunTest(t)
	writeProjectConfig(t, dir, "command: [broken\n")

	_, err := executeRunCommand(t, []string{"run", "--", "true"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to parse config file"))
}
