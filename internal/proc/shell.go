package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// DefaultMaxOutput caps the captured output of each stream (5 MiB).
	DefaultMaxOutput = 5 * 1024 * 1024

	// readBufferSize is the pipe read size; each read becomes one chunk.
	readBufferSize = 4096
)

// SpawnOptions configures a child process.
type SpawnOptions struct {
	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env is the complete environment. Nil inherits the parent's.
	Env []string

	// MaxOutput caps the captured bytes per stream. Zero selects
	// DefaultMaxOutput. Live chunk events are not affected by the cap.
	MaxOutput int
}

// ShellSpawner runs commands through the platform shell.
type ShellSpawner struct {
	// Shell overrides the shell binary ("sh" or "cmd").
	Shell string
}

// NewShellSpawner creates a ShellSpawner with the platform default shell.
func NewShellSpawner() *ShellSpawner {
	return &ShellSpawner{}
}

// shellArgs builds the argv that runs command through the shell.
func (s *ShellSpawner) shellArgs(command string) []string {
	shell := s.Shell
	if runtime.GOOS == "windows" {
		if shell == "" {
			shell = "cmd"
		}
		return []string{shell, "/C", command}
	}
	if shell == "" {
		shell = "sh"
	}
	return []string{shell, "-c", command}
}

// Spawn starts command and returns its handle. A command that fails to start
// still yields a Child whose completion is an *ExitError, so callers report
// start failures the same way as non-zero exits.
func (s *ShellSpawner) Spawn(ctx context.Context, command string, opts SpawnOptions) (Child, error) {
	if strings.TrimSpace(command) == "" {
		return nil, ErrEmptyCommand
	}

	maxOutput := opts.MaxOutput
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutput
	}

	argv := s.shellArgs(command)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env

	p := &Process{
		id:      uuid.New().String(),
		command: command,
		cmd:     cmd,
		done:    make(chan struct{}),
		resume:  make(chan struct{}),
		stdout:  &limitBuffer{limit: maxOutput},
		stderr:  &limitBuffer{limit: maxOutput},
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		p.finish(err)
		return p, nil
	}

	go p.run(stdout, stderr)

	return p, nil
}

// Process is a child started by ShellSpawner.
type Process struct {
	Broadcaster

	id      string
	command string
	cmd     *exec.Cmd

	stdout *limitBuffer
	stderr *limitBuffer

	resume     chan struct{}
	resumeOnce sync.Once
	done       chan struct{}
	finishOnce sync.Once
	completion Completion
}

// ID returns the run id.
func (p *Process) ID() string {
	return p.id
}

// PID returns the process id, or -1 if the process never started.
func (p *Process) PID() int {
	if p.cmd.Process == nil {
		return -1
	}
	return p.cmd.Process.Pid
}

// Resume starts draining the pipes and emitting chunks.
func (p *Process) Resume() {
	p.resumeOnce.Do(func() { close(p.resume) })
}

// Done is closed when the process has exited and both streams are drained.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Completion returns the process result. Only valid after Done is closed.
func (p *Process) Completion() Completion {
	<-p.done
	return p.completion
}

// run drains both pipes once resumed, then waits for the process. The pipes
// must be read to EOF before Wait is called.
func (p *Process) run(stdout, stderr io.Reader) {
	<-p.resume

	var wg sync.WaitGroup
	wg.Add(2)
	go p.pump(Stdout, stdout, p.stdout, &wg)
	go p.pump(Stderr, stderr, p.stderr, &wg)
	wg.Wait()

	p.finish(p.cmd.Wait())
}

// pump copies r into capture and emits each read as a chunk. A multi-byte
// rune split across reads is held back until it is complete.
func (p *Process) pump(ch Channel, r io.Reader, capture *limitBuffer, wg *sync.WaitGroup) {
	defer wg.Done()

	buf := make([]byte, readBufferSize)
	var pending []byte
	for {
		n, err := r.Read(buf)
		if n > 0 {
			capture.Write(buf[:n])

			data := append(pending, buf[:n]...)
			complete, rest := splitIncompleteRune(data)
			pending = append([]byte(nil), rest...)
			if len(complete) > 0 {
				p.Emit(ch, string(complete))
			}
		}
		if err != nil {
			break
		}
	}
	if len(pending) > 0 {
		p.Emit(ch, string(pending))
	}
}

// finish records the completion exactly once.
func (p *Process) finish(err error) {
	p.finishOnce.Do(func() {
		out := Output{
			Stdout: p.stdout.String(),
			Stderr: p.stderr.String(),
		}
		p.completion = Completion{Output: out}

		switch {
		case err != nil:
			exitCode := -1
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				exitCode = exitErr.ExitCode()
			}
			msg := fmt.Sprintf("cmd %q exit code %d", p.command, exitCode)
			if exitCode == -1 {
				msg = fmt.Sprintf("cmd %q failed: %v", p.command, err)
			}
			p.completion.Err = &ExitError{
				Message:  msg,
				ExitCode: exitCode,
				Output:   out,
				Err:      err,
			}
		case p.stdout.Overflowed() || p.stderr.Overflowed():
			p.completion.Err = &ExitError{
				Message:  fmt.Sprintf("cmd %q: %v", p.command, ErrOutputOverflow),
				ExitCode: 0,
				Output:   out,
				Err:      ErrOutputOverflow,
			}
		}

		close(p.done)
	})
}

// splitIncompleteRune splits off a trailing, not yet complete UTF-8 sequence.
func splitIncompleteRune(b []byte) (complete, rest []byte) {
	// A UTF-8 sequence is at most utf8.UTFMax bytes; only the tail can be partial.
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if !utf8.FullRune(b[i:]) {
			return b[:i], b[i:]
		}
		break
	}
	return b, nil
}

// limitBuffer captures up to limit bytes and silently discards the rest,
// remembering that it did.
type limitBuffer struct {
	mu         sync.Mutex
	buf        bytes.Buffer
	limit      int
	overflowed bool
}

func (w *limitBuffer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	remaining := w.limit - w.buf.Len()
	if len(p) > remaining {
		w.overflowed = true
		if remaining > 0 {
			w.buf.Write(p[:remaining])
		}
		return len(p), nil
	}
	return w.buf.Write(p)
}

func (w *limitBuffer) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

// Overflowed reports whether any bytes were discarded.
func (w *limitBuffer) Overflowed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.overflowed
}
