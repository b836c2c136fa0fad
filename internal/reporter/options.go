package reporter

import (
	"regexp"
	"time"

	"github.com/harrison/visualexec/internal/digest"
	"github.com/harrison/visualexec/internal/display"
	"github.com/harrison/visualexec/internal/proc"
)

// DefaultErrorPattern matches stdout that should escalate the output report
// to error level even when the process succeeded.
const DefaultErrorPattern = `(?i)\b(?:errors?|warn(?:ings?|s)?|fatal|unhandled|reject(?:ed|ion)?|exceptions?|failures?|fail(?:ed|s)?)\b`

// DefaultHighlightPattern marks tokens highlighted in the output report.
const DefaultHighlightPattern = `ERR!`

// DefaultCancelGrace bounds the wait for a child after its context ends.
const DefaultCancelGrace = 500 * time.Millisecond

// Options configures a Reporter. Start from DefaultOptions: the zero value
// disables the stderr policy and error pattern.
type Options struct {
	// Command is the shell command run by Execute.
	Command string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env is appended to the inherited environment.
	Env []string

	// Title heads the live display. Defaults to "Running <command>".
	Title string

	// LogLabel names the run in the summary line. Defaults to Title.
	LogLabel string

	// OutputLabel names the run in the output report. Defaults to Title.
	OutputLabel string

	// OutputLevel is the report level for a clean run. Defaults to verbose.
	OutputLevel display.Level

	// MaxOutput caps captured bytes per stream. Zero selects proc.DefaultMaxOutput.
	MaxOutput int

	// Indicator animates the stdout item.
	Indicator display.Indicator

	// Budget is the digest width. Zero selects digest.DefaultBudget.
	Budget int

	// ForceStderrAsError reports at error level whenever stderr is non-empty.
	ForceStderrAsError bool

	// ErrorPattern escalates the report to error level when it matches stdout.
	// Nil disables the check.
	ErrorPattern *regexp.Regexp

	// HighlightPattern marks matches in the report. Nil selects DefaultHighlightPattern.
	HighlightPattern *regexp.Regexp

	// Spawner starts the command for Execute. Nil selects a proc.ShellSpawner.
	Spawner proc.Spawner

	// Now is the clock used for elapsed time. Nil selects time.Now.
	Now func() time.Time

	// CancelGrace is how long Show waits for the child to finish after its
	// context ends. Zero selects DefaultCancelGrace.
	CancelGrace time.Duration
}

// DefaultOptions returns the defaults for command.
func DefaultOptions(command string) Options {
	return Options{
		Command:            command,
		OutputLevel:        display.LevelVerbose,
		MaxOutput:          proc.DefaultMaxOutput,
		Indicator:          display.MustIndicator(display.DefaultIndicator),
		Budget:             digest.DefaultBudget,
		ForceStderrAsError: true,
		ErrorPattern:       regexp.MustCompile(DefaultErrorPattern),
		HighlightPattern:   regexp.MustCompile(DefaultHighlightPattern),
		CancelGrace:        DefaultCancelGrace,
	}
}

// withDefaults fills unset fields.
func (o Options) withDefaults() Options {
	if o.Title == "" {
		o.Title = makeTitle(o.Command)
	}
	if o.LogLabel == "" {
		o.LogLabel = o.Title
	}
	if o.OutputLabel == "" {
		o.OutputLabel = o.Title
	}
	if o.OutputLevel == "" {
		o.OutputLevel = display.LevelVerbose
	}
	if o.HighlightPattern == nil {
		o.HighlightPattern = regexp.MustCompile(DefaultHighlightPattern)
	}
	if o.Spawner == nil {
		o.Spawner = proc.NewShellSpawner()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.CancelGrace <= 0 {
		o.CancelGrace = DefaultCancelGrace
	}
	return o
}

func makeTitle(command string) string {
	if command == "" {
		command = "user command"
	}
	return "Running " + command
}
