package display

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/fatih/color"
	"github.com/harrison/visualexec/internal/logger"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// ANSI sequences used to rewrite the live area.
const (
	escCursorUp  = "\x1b[1A"
	escClearLine = "\x1b[2K"
)

// ItemType selects how live items are rendered.
type ItemType int

const (
	// ItemTypeAuto draws items when the writer is a terminal outside CI.
	ItemTypeAuto ItemType = iota
	// ItemTypeLive always draws items.
	ItemTypeLive
	// ItemTypeNone never draws items.
	ItemTypeNone
)

// Options configures a Terminal.
type Options struct {
	// Writer receives all output. Defaults to os.Stdout.
	Writer io.Writer

	// LogLevel is the minimum level written (see logger.ValidLevels).
	LogLevel string

	// ItemType selects live rendering.
	ItemType ItemType
}

type liveItem struct {
	Item
	text string
}

// Terminal is a Display that draws live items at the bottom of a terminal and
// writes log lines above them. It is safe for concurrent use.
type Terminal struct {
	mu     sync.Mutex
	out    io.Writer
	logger *logger.ConsoleLogger
	live   bool
	width  func() int

	items []*liveItem
	drawn int
	frame int
	stop  chan struct{}
}

var _ Display = (*Terminal)(nil)

// NewTerminal creates a Terminal.
func NewTerminal(opts Options) *Terminal {
	out := opts.Writer
	if out == nil {
		out = os.Stdout
	}

	live := false
	switch opts.ItemType {
	case ItemTypeLive:
		live = true
	case ItemTypeAuto:
		live = isTTY(out) && !InCI()
	}

	return &Terminal{
		out:    out,
		logger: logger.NewConsoleLogger(out, opts.LogLevel),
		live:   live,
		width:  terminalWidth(out),
	}
}

// Default creates a Terminal on os.Stdout at info level. In CI it logs a
// notice and disables live items.
func Default() *Terminal {
	t := NewTerminal(Options{})
	if InCI() {
		t.Log(LevelInfo, "visualexec: CI env detected")
	}
	return t
}

// Live reports whether items are drawn.
func (t *Terminal) Live() bool {
	return t.live
}

// InCI reports whether a continuous-integration environment is detected.
func InCI() bool {
	if v := os.Getenv("CI"); v != "" && v != "false" && v != "0" {
		return true
	}
	for _, key := range []string{"CONTINUOUS_INTEGRATION", "BUILD_NUMBER", "RUN_ID"} {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// terminalWidth returns a width lookup for w; 0 means unknown.
func terminalWidth(w io.Writer) func() int {
	f, ok := w.(*os.File)
	if !ok {
		return func() int { return 0 }
	}
	return func() int {
		width, _, err := term.GetSize(int(f.Fd()))
		if err != nil {
			return 0
		}
		return width
	}
}

// AddItem adds or replaces a live item.
func (t *Terminal) AddItem(item Item) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.clear()
	if i := t.indexOf(item.ID); i >= 0 {
		t.items[i] = &liveItem{Item: item}
	} else {
		t.items = append(t.items, &liveItem{Item: item})
	}
	t.draw()
	t.startTicker()
}

// UpdateItem changes an item's text.
func (t *Terminal) UpdateItem(id string, update Update) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.indexOf(id)
	if i < 0 {
		return
	}
	it := t.items[i]
	it.text = update.Text

	if update.Persist {
		t.clear()
		t.logger.Log(string(LevelVerbose), lastLine(it.Label)+": "+update.Text)
		t.draw()
		return
	}

	// Without a ticker nothing else would ever draw the change.
	if update.Redraw || t.stop == nil {
		t.clear()
		t.draw()
	}
}

// RemoveItem removes an item.
func (t *Terminal) RemoveItem(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.indexOf(id)
	if i < 0 {
		return
	}
	t.clear()
	t.items = append(t.items[:i], t.items[i+1:]...)
	t.draw()

	if len(t.items) == 0 {
		t.stopTicker()
	}
}

// Log writes a prefixed log line above the live items.
func (t *Terminal) Log(level Level, segments ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.clear()
	t.logger.Log(string(level), strings.Join(segments, " "))
	t.draw()
}

// LogPlain writes an unprefixed block above the live items.
func (t *Terminal) LogPlain(level Level, segments ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.clear()
	t.logger.LogPlain(string(level), strings.Join(segments, " "))
	t.draw()
}

// Close stops the animation and erases the live area.
func (t *Terminal) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopTicker()
	t.clear()
	t.items = nil
}

func (t *Terminal) indexOf(id string) int {
	for i, it := range t.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// clear erases the lines drawn by the last draw. Caller holds mu.
func (t *Terminal) clear() {
	if !t.live || t.drawn == 0 {
		return
	}
	io.WriteString(t.out, strings.Repeat(escCursorUp+escClearLine, t.drawn)+"\r")
	t.drawn = 0
}

// draw renders every item below the cursor. Caller holds mu.
func (t *Terminal) draw() {
	if !t.live {
		return
	}

	width := t.width()
	var b strings.Builder
	lines := 0
	writeLine := func(s string) {
		if width > 1 {
			s = ansi.Truncate(s, width-1, "")
		}
		b.WriteString(s)
		b.WriteString("\n")
		lines++
	}

	for _, it := range t.items {
		labels := strings.Split(it.Label, "\n")
		for _, l := range labels[:len(labels)-1] {
			writeLine(l)
		}

		var line strings.Builder
		if frame := it.Indicator.Frame(t.frame); frame != "" {
			line.WriteString(frame)
			line.WriteString(" ")
		}
		line.WriteString(color.New(it.Color).Sprint(labels[len(labels)-1]))
		if it.text != "" {
			line.WriteString(" ")
			line.WriteString(it.text)
		}
		writeLine(line.String())
	}

	io.WriteString(t.out, b.String())
	t.drawn = lines
}

// startTicker animates indicators while any item has one. Caller holds mu.
func (t *Terminal) startTicker() {
	if !t.live || t.stop != nil {
		return
	}
	var interval time.Duration
	for _, it := range t.items {
		if it.Indicator.Animated() {
			interval = it.Indicator.Interval
			break
		}
	}
	if interval == 0 {
		return
	}

	stop := make(chan struct{})
	t.stop = stop
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				t.mu.Lock()
				t.frame++
				t.clear()
				t.draw()
				t.mu.Unlock()
			}
		}
	}()
}

// stopTicker halts the animation. Caller holds mu.
func (t *Terminal) stopTicker() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

func lastLine(s string) string {
	if i := strings.LastIndex(s, "\n"); i >= 0 {
		return s[i+1:]
	}
	return s
}
