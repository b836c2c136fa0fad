// Package reporter shows a running child process as two live digest lines,
// one per output stream, and logs a full report when the process finishes.
//
// A Reporter is single use: Start binds it to a child, Finalize consumes the
// child's completion, logs the summary and the captured output, and hands
// back the process error untouched so callers can still act on it.
package reporter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/harrison/visualexec/internal/display"
	"github.com/harrison/visualexec/internal/logger"
	"github.com/harrison/visualexec/internal/proc"
)

// State is the lifecycle stage of a Reporter.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Sentinel errors for the reporter package.
var (
	// ErrAlreadyStarted is returned by Start on a reporter that left Idle.
	ErrAlreadyStarted = errors.New("reporter already started")

	// ErrNotRunning is returned by Finalize when Start was not called or the
	// run was already finalized.
	ErrNotRunning = errors.New("reporter is not running")
)

// Result describes a finished run.
type Result struct {
	Succeeded    bool
	Stdout       string
	Stderr       string
	Elapsed      time.Duration
	ErrorMessage string

	// Level is the level the output report was logged at.
	Level display.Level
}

// ElapsedSeconds returns the run time in seconds.
func (r *Result) ElapsedSeconds() float64 {
	return r.Elapsed.Seconds()
}

// Reporter drives the live display of one child process.
type Reporter struct {
	opts    Options
	display display.Display

	mu      sync.Mutex
	state   State
	child   proc.Child
	started time.Time
	stdout  *stream
	stderr  *stream
}

// New creates a Reporter that draws on d.
func New(opts Options, d display.Display) *Reporter {
	return &Reporter{
		opts:    opts.withDefaults(),
		display: d,
	}
}

// NewDefault creates a Reporter on display.Default().
func NewDefault(opts Options) *Reporter {
	return New(opts, display.Default())
}

// State returns the current lifecycle state.
func (r *Reporter) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Title returns the display title.
func (r *Reporter) Title() string {
	return r.opts.Title
}

// Execute spawns commandOverride, or the configured command when it is
// empty, and shows it until it completes.
func (r *Reporter) Execute(ctx context.Context, commandOverride string) (*Result, error) {
	command := commandOverride
	if command == "" {
		command = r.opts.Command
	}

	dir := r.opts.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve working directory: %w", err)
		}
		dir = wd
	}

	env := append(os.Environ(), r.opts.Env...)
	env = append(env, "PWD="+dir)

	child, err := r.opts.Spawner.Spawn(ctx, command, proc.SpawnOptions{
		Dir:       dir,
		Env:       env,
		MaxOutput: r.opts.MaxOutput,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to spawn %q: %w", command, err)
	}

	return r.Show(ctx, child)
}

// Show starts the display for child, waits for it and finalizes. If ctx ends
// first the run is reported as failed with the output delivered so far; the
// child itself is not signalled.
func (r *Reporter) Show(ctx context.Context, child proc.Child) (*Result, error) {
	if err := r.Start(child); err != nil {
		return nil, err
	}

	c, err := proc.Wait(ctx, child)
	if err != nil {
		c = r.abandon(child, err)
	}

	return r.Finalize(c)
}

// abandon builds the failed completion of a run whose wait ended with err.
// A child spawned on the cancelled context is usually gone within
// CancelGrace, and its own capture is preferred; otherwise the output
// delivered to the reporter is used.
func (r *Reporter) abandon(child proc.Child, err error) proc.Completion {
	out := proc.Output{
		Stdout: r.stdout.output(),
		Stderr: r.stderr.output(),
	}

	timer := time.NewTimer(r.opts.CancelGrace)
	defer timer.Stop()
	select {
	case <-child.Done():
		if finished := child.Completion().Output; !finished.Empty() {
			out = finished
		}
	case <-timer.C:
	}

	return proc.Completion{
		Output: out,
		Err: &proc.ExitError{
			Message:  fmt.Sprintf("stopped waiting: %v", err),
			ExitCode: -1,
			Output:   out,
			Err:      err,
		},
	}
}

// Start adds the stdout and stderr items and feeds each stream through its
// own digester.
func (r *Reporter) Start(child proc.Child) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateIdle {
		return ErrAlreadyStarted
	}

	r.state = StateRunning
	r.child = child
	r.started = r.opts.Now()

	runID := uuid.NewString()
	r.stdout = newStream("visualexec-stdout-"+runID, r.display, r.opts.Budget, r.opts.MaxOutput)
	r.stderr = newStream("visualexec-stderr-"+runID, r.display, r.opts.Budget, r.opts.MaxOutput)

	r.display.AddItem(display.Item{
		ID:        r.stdout.id,
		Label:     fmt.Sprintf("=== %s\nstdout", r.opts.Title),
		Color:     color.FgGreen,
		Indicator: r.opts.Indicator,
	})
	r.display.AddItem(display.Item{
		ID:    r.stderr.id,
		Label: "stderr",
		Color: color.FgRed,
	})

	r.stdout.sub = child.Subscribe(proc.Stdout, r.stdout.handle)
	r.stderr.sub = child.Subscribe(proc.Stderr, r.stderr.handle)
	child.Resume()

	return nil
}

// Finalize tears down the live display, logs the summary and the output
// report, and returns the result together with the process error, if any.
func (r *Reporter) Finalize(c proc.Completion) (*Result, error) {
	r.mu.Lock()
	if r.state != StateRunning {
		r.mu.Unlock()
		return nil, ErrNotRunning
	}
	if c.Succeeded() {
		r.state = StateCompleted
	} else {
		r.state = StateFailed
	}
	r.detach()
	started := r.started
	r.mu.Unlock()

	out := c.Output
	var exitErr *proc.ExitError
	if out.Empty() && errors.As(c.Err, &exitErr) {
		out = exitErr.Output
	}

	result := &Result{
		Succeeded: c.Succeeded(),
		Stdout:    out.Stdout,
		Stderr:    out.Stderr,
		Elapsed:   r.opts.Now().Sub(started),
	}
	if c.Err != nil {
		result.ErrorMessage = c.Err.Error()
	}
	result.Level = r.reportLevel(result)

	r.logSummary(result)
	r.logFinalOutput(result)

	return result, c.Err
}

// detach removes both items, stops listening and resets the digesters.
// Caller holds mu.
func (r *Reporter) detach() {
	r.stdout.close(r.child)
	r.stderr.close(r.child)
}

// logSummary logs the one-line outcome.
func (r *Reporter) logSummary(result *Result) {
	elapsed := "(" + logger.FormatDuration(result.Elapsed) + ")"
	if result.Succeeded {
		r.display.Log(display.LevelInfo, "Done", r.opts.LogLabel, elapsed, colors.success.Sprint("exit code 0"))
		return
	}
	r.display.Log(display.LevelError, "Done", r.opts.LogLabel, elapsed, "failed", colors.fail.Sprint(result.ErrorMessage))
}
