package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Warning represents a user-facing warning message
type Warning struct {
	Title      string   // Main warning title
	Message    string   // Detailed explanation (optional)
	Details    []string // Related items, listed numbered (optional)
	Suggestion string   // Action to take (optional)
}

var warningColor = color.New(color.FgYellow)

// OverflowWarning reports streams whose captured output hit limit bytes.
func OverflowWarning(command string, limit int, streams []string) Warning {
	return Warning{
		Title:      "Output truncated",
		Message:    fmt.Sprintf("%s wrote more than %d bytes; the report shows the first %d", command, limit, limit),
		Details:    streams,
		Suggestion: "Raise --max-output or max_output in .visualexec/config.yaml",
	}
}

// Display writes the warning to out in yellow
func (w Warning) Display(out io.Writer) {
	var b strings.Builder

	b.WriteString("⚠️  Warning: ")
	b.WriteString(w.Title)
	b.WriteString("\n")

	if w.Message != "" {
		b.WriteString("    ")
		b.WriteString(w.Message)
		b.WriteString("\n")
	}

	if len(w.Details) > 0 {
		b.WriteString("    Streams:\n")
		for i, detail := range w.Details {
			fmt.Fprintf(&b, "      %d. %s\n", i+1, detail)
		}
	}

	if w.Suggestion != "" {
		b.WriteString("    Suggestion:\n    ")
		b.WriteString(w.Suggestion)
		b.WriteString("\n")
	}

	warningColor.Fprint(out, b.String())
}
