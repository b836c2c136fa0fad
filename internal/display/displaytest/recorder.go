// Package displaytest provides a display.Display that records every call.
package displaytest

import (
	"strings"
	"sync"

	"github.com/harrison/visualexec/internal/display"
)

// Entry is one recorded log call.
type Entry struct {
	Level display.Level
	Plain bool
	Text  string
}

// Recorder is a display.Display that keeps everything it is told.
type Recorder struct {
	mu         sync.Mutex
	active     map[string]display.Item
	added      []display.Item
	updates    map[string][]display.Update
	removed    []string
	entries    []Entry
	mismatches int
}

var _ display.Display = (*Recorder)(nil)

// New creates an empty Recorder.
func New() *Recorder {
	return &Recorder{
		active:  make(map[string]display.Item),
		updates: make(map[string][]display.Update),
	}
}

// AddItem records an added item.
func (r *Recorder) AddItem(item display.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[item.ID] = item
	r.added = append(r.added, item)
}

// UpdateItem records an update; updates for inactive items count as mismatches.
func (r *Recorder) UpdateItem(id string, update display.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[id]; !ok {
		r.mismatches++
		return
	}
	r.updates[id] = append(r.updates[id], update)
}

// RemoveItem records a removal; removing an inactive item counts as a mismatch.
func (r *Recorder) RemoveItem(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[id]; !ok {
		r.mismatches++
		return
	}
	delete(r.active, id)
	r.removed = append(r.removed, id)
}

// Log records a prefixed log call.
func (r *Recorder) Log(level display.Level, segments ...string) {
	r.record(level, false, segments)
}

// LogPlain records an unprefixed log call.
func (r *Recorder) LogPlain(level display.Level, segments ...string) {
	r.record(level, true, segments)
}

func (r *Recorder) record(level display.Level, plain bool, segments []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Plain: plain, Text: strings.Join(segments, " ")})
}

// Added returns every item added, in order.
func (r *Recorder) Added() []display.Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]display.Item(nil), r.added...)
}

// Active returns the number of items currently shown.
func (r *Recorder) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// Updates returns the updates applied to id.
func (r *Recorder) Updates(id string) []display.Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]display.Update(nil), r.updates[id]...)
}

// Removed returns the removed ids, in order.
func (r *Recorder) Removed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.removed...)
}

// Entries returns every log call, in order.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Mismatches counts updates and removals for items that were not active.
func (r *Recorder) Mismatches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mismatches
}
