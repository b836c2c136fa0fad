package reporter

import (
	"strings"
	"sync"

	"github.com/harrison/visualexec/internal/digest"
	"github.com/harrison/visualexec/internal/display"
	"github.com/harrison/visualexec/internal/proc"
)

// stream is the reporter side of one output channel: its display item, its
// digester and a copy of what was delivered, capped at limit bytes.
type stream struct {
	id      string
	display display.Display

	mu       sync.Mutex
	digester *digest.Digester
	captured strings.Builder
	limit    int
	sub      *proc.Subscription
	closed   bool
}

func newStream(id string, d display.Display, budget, limit int) *stream {
	if limit <= 0 {
		limit = proc.DefaultMaxOutput
	}
	return &stream{
		id:       id,
		display:  d,
		digester: digest.New(budget),
		limit:    limit,
	}
}

// handle consumes one chunk from the child.
func (s *stream) handle(chunk string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if room := s.limit - s.captured.Len(); room > 0 {
		if len(chunk) > room {
			s.captured.WriteString(chunk[:room])
		} else {
			s.captured.WriteString(chunk)
		}
	}

	if line, changed := s.digester.Update(chunk); changed {
		s.display.UpdateItem(s.id, display.Update{Text: markSeparators(line)})
	}
}

// output returns the delivered text.
func (s *stream) output() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captured.String()
}

// close unsubscribes from child, removes the display item and resets the
// digester. Safe to call more than once.
func (s *stream) close(child proc.Child) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	if s.sub != nil {
		child.Unsubscribe(s.sub)
		s.sub = nil
	}
	s.digester.Reset()
	s.display.RemoveItem(s.id)
}
