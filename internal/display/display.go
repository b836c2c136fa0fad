package display

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/fatih/color"
	"github.com/harrison/visualexec/internal/logger"
)

// Level is a log severity understood by the display.
type Level string

// Levels used by the reporter. Debug and warn are accepted for completeness.
const (
	LevelDebug   Level = "debug"
	LevelVerbose Level = "verbose"
	LevelInfo    Level = "info"
	LevelWarn    Level = "warn"
	LevelError   Level = "error"
)

// ParseLevel validates and normalizes a level name.
func ParseLevel(s string) (Level, error) {
	if !logger.IsValidLevel(s) {
		return "", fmt.Errorf("invalid level %q, must be one of: %s", s, strings.Join(logger.ValidLevels, ", "))
	}
	return Level(logger.NormalizeLevel(s)), nil
}

// Display is the terminal display service.
type Display interface {
	// AddItem adds a live item. Adding an active ID replaces it.
	AddItem(item Item)

	// UpdateItem changes the text of an active item. Unknown IDs are ignored.
	UpdateItem(id string, update Update)

	// RemoveItem removes an item. Unknown IDs are ignored.
	RemoveItem(id string)

	// Log writes a prefixed log line built from segments joined by spaces.
	Log(level Level, segments ...string)

	// LogPlain is Log without the timestamp and level prefix.
	LogPlain(level Level, segments ...string)
}

// Item is a live, in-place updatable status line.
type Item struct {
	// ID is the stable key of the item.
	ID string

	// Label is shown before the item text. Every line of a multi-line label
	// except the last is printed above the status line.
	Label string

	// Color is applied to the label.
	Color color.Attribute

	// Indicator animates in front of the label. The zero value shows none.
	Indicator Indicator
}

// Update is a change to an item.
type Update struct {
	// Text replaces the item text.
	Text string

	// Persist also writes the text as a verbose log line.
	Persist bool

	// Redraw forces an immediate redraw instead of waiting for the next frame.
	Redraw bool
}

// Indicator is an animated live-activity marker.
type Indicator struct {
	Frames   []string
	Interval time.Duration
}

// Animated reports whether the indicator has frames to cycle through.
func (i Indicator) Animated() bool {
	return len(i.Frames) > 0 && i.Interval > 0
}

// Frame returns the frame for tick n.
func (i Indicator) Frame(n int) string {
	if len(i.Frames) == 0 {
		return ""
	}
	return i.Frames[n%len(i.Frames)]
}

// DefaultIndicator names the indicator used when none is configured.
const DefaultIndicator = "dot"

var indicators = map[string]spinner.Spinner{
	"line":     spinner.Line,
	"dot":      spinner.Dot,
	"minidot":  spinner.MiniDot,
	"jump":     spinner.Jump,
	"pulse":    spinner.Pulse,
	"points":   spinner.Points,
	"meter":    spinner.Meter,
	"ellipsis": spinner.Ellipsis,
}

// IndicatorNames lists the accepted indicator names, including "none".
func IndicatorNames() []string {
	names := make([]string, 0, len(indicators)+1)
	for name := range indicators {
		names = append(names, name)
	}
	sort.Strings(names)
	return append(names, "none")
}

// LookupIndicator returns the named indicator. "none" and "" yield the zero
// Indicator.
func LookupIndicator(name string) (Indicator, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "none" {
		return Indicator{}, nil
	}
	s, ok := indicators[name]
	if !ok {
		return Indicator{}, fmt.Errorf("unknown indicator %q, must be one of: %s", name, strings.Join(IndicatorNames(), ", "))
	}
	return Indicator{Frames: s.Frames, Interval: s.FPS}, nil
}

// MustIndicator is LookupIndicator for names known to be valid.
func MustIndicator(name string) Indicator {
	ind, err := LookupIndicator(name)
	if err != nil {
		panic(err)
	}
	return ind
}
