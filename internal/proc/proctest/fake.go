// Package proctest provides a scriptable proc.Child for tests.
package proctest

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/harrison/visualexec/internal/proc"
)

// FakeChild is a proc.Child driven by the test: chunks are emitted with
// Emit and the run is completed with Succeed or Fail.
type FakeChild struct {
	proc.Broadcaster

	id         string
	mu         sync.Mutex
	resumed    bool
	done       chan struct{}
	once       sync.Once
	completion proc.Completion
}

var _ proc.Child = (*FakeChild)(nil)

// NewFakeChild creates a running FakeChild.
func NewFakeChild() *FakeChild {
	return &FakeChild{
		id:   uuid.New().String(),
		done: make(chan struct{}),
	}
}

// ID returns the fake run id.
func (f *FakeChild) ID() string { return f.id }

// PID always returns -1.
func (f *FakeChild) PID() int { return -1 }

// Resume records that delivery was requested.
func (f *FakeChild) Resume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumed = true
}

// Resumed reports whether Resume was called.
func (f *FakeChild) Resumed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resumed
}

// Done is closed by Succeed or Fail.
func (f *FakeChild) Done() <-chan struct{} { return f.done }

// Completion returns the scripted result.
func (f *FakeChild) Completion() proc.Completion {
	<-f.done
	return f.completion
}

// Succeed completes the run successfully with out.
func (f *FakeChild) Succeed(out proc.Output) {
	f.complete(proc.Completion{Output: out})
}

// Fail completes the run with an *proc.ExitError carrying message and the
// partial output.
func (f *FakeChild) Fail(message string, exitCode int, out proc.Output) {
	f.complete(proc.Completion{
		Output: out,
		Err: &proc.ExitError{
			Message:  message,
			ExitCode: exitCode,
			Output:   out,
		},
	})
}

func (f *FakeChild) complete(c proc.Completion) {
	f.once.Do(func() {
		f.completion = c
		close(f.done)
	})
}

// Spawner hands out a prepared child and records what was asked of it.
type Spawner struct {
	Child   proc.Child
	Err     error
	Command string
	Options proc.SpawnOptions
	Calls   int
}

// Spawn returns the prepared child or error.
func (s *Spawner) Spawn(_ context.Context, command string, opts proc.SpawnOptions) (proc.Child, error) {
	s.Calls++
	s.Command = command
	s.Options = opts
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Child, nil
}
