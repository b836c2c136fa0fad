// Package proc runs child processes and exposes their output as ordered,
// per-channel chunk events plus a single completion result.
package proc

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Channel identifies one of the two output streams of a child process.
type Channel int

const (
	// Stdout is the child's standard output.
	Stdout Channel = iota
	// Stderr is the child's standard error.
	Stderr
)

// String returns the conventional stream name.
func (c Channel) String() string {
	switch c {
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

// Output is the captured text of both streams.
type Output struct {
	Stdout string
	Stderr string
}

// Empty reports whether neither stream produced any output.
func (o Output) Empty() bool {
	return o.Stdout == "" && o.Stderr == ""
}

// Completion is the single result of a child process. Err is nil on success;
// on failure it is an *ExitError and Output holds whatever was captured.
type Completion struct {
	Output Output
	Err    error
}

// Succeeded reports whether the child exited cleanly.
func (c Completion) Succeeded() bool {
	return c.Err == nil
}

// ExitError describes a failed child process: non-zero exit, failure to start,
// or captured output over the configured limit.
type ExitError struct {
	Message  string
	ExitCode int
	Output   Output
	Err      error
}

func (e *ExitError) Error() string {
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Sentinel errors for the proc package.
var (
	// ErrEmptyCommand is returned when there is nothing to run.
	ErrEmptyCommand = errors.New("empty command")

	// ErrOutputOverflow is wrapped by the ExitError of a child whose output
	// exceeded SpawnOptions.MaxOutput.
	ErrOutputOverflow = errors.New("output exceeded max buffer size")
)

// Child is a running (or finished) child process.
type Child interface {
	// ID is a unique identifier for this run.
	ID() string

	// PID returns the OS process id, or -1 if the process never started.
	PID() int

	// Subscribe registers fn for every chunk written to ch. Chunks for a
	// channel are delivered in order, from a single goroutine.
	Subscribe(ch Channel, fn func(chunk string)) *Subscription

	// Unsubscribe removes a subscription. It is safe to call more than once.
	Unsubscribe(sub *Subscription)

	// Resume starts chunk delivery. Output produced before Resume waits in
	// the pipe, so subscribers registered first see every chunk. Idempotent.
	Resume()

	// Done is closed once the completion result is available.
	Done() <-chan struct{}

	// Completion returns the result. Only valid after Done is closed.
	Completion() Completion
}

// Spawner starts child processes.
type Spawner interface {
	Spawn(ctx context.Context, command string, opts SpawnOptions) (Child, error)
}

// Wait resumes child and blocks until it completes or ctx is done.
func Wait(ctx context.Context, child Child) (Completion, error) {
	child.Resume()
	select {
	case <-child.Done():
		return child.Completion(), nil
	case <-ctx.Done():
		return Completion{}, ctx.Err()
	}
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	ch Channel
	id uint64
}

// Channel returns the channel the subscription listens on.
func (s *Subscription) Channel() Channel {
	return s.ch
}

// Broadcaster fans chunks out to subscribers. It is safe for concurrent use
// and is shared by real and fake children.
type Broadcaster struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Channel]map[uint64]func(string)
}

// Subscribe registers fn for ch.
func (b *Broadcaster) Subscribe(ch Channel, fn func(string)) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs == nil {
		b.subs = make(map[Channel]map[uint64]func(string))
	}
	if b.subs[ch] == nil {
		b.subs[ch] = make(map[uint64]func(string))
	}
	b.nextID++
	b.subs[ch][b.nextID] = fn
	return &Subscription{ch: ch, id: b.nextID}
}

// Unsubscribe removes sub. Unknown or nil subscriptions are ignored.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[sub.ch], sub.id)
}

// Emit delivers chunk to every current subscriber of ch.
func (b *Broadcaster) Emit(ch Channel, chunk string) {
	b.mu.RLock()
	fns := make([]func(string), 0, len(b.subs[ch]))
	for _, fn := range b.subs[ch] {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(chunk)
	}
}
