// Package digest turns a chunked output stream into a rolling, single-line
// preview whose visible width never exceeds a fixed budget.
//
// A Digester owns the state for exactly one stream. It never holds the full
// output: only the lines currently on display plus the pending partial line
// are carried between updates, so each Update costs time proportional to the
// recent output rather than to everything the stream has produced.
//
// Visible width is measured on the escape-stripped form of each line so that
// color codes do not eat into the budget. Lines that fit are shown with their
// escapes intact; a line that alone exceeds the budget is shown stripped and
// truncated, which guarantees no escape sequence is ever cut in half.
package digest

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// DefaultBudget is the maximum visible width of a digest line.
const DefaultBudget = 100

// Separator marks a line break inside a digest. It is counted against the
// budget like any other visible text.
const Separator = `\n`

// Digester maintains the live digest for a single output stream.
// It is not safe for concurrent use; each stream gets its own Digester.
type Digester struct {
	budget        int
	residual      string
	lastDisplayed string
}

// New creates a Digester with the given visible-width budget.
// A budget <= 0 selects DefaultBudget.
func New(budget int) *Digester {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Digester{budget: budget}
}

// Budget returns the visible-width budget of the digester.
func (d *Digester) Budget() int {
	return d.budget
}

// Digest returns the most recent digest line.
func (d *Digester) Digest() string {
	return d.lastDisplayed
}

// Residual returns the carried-over text not yet superseded by newer output.
func (d *Digester) Residual() string {
	return d.residual
}

// Reset discards all carried state.
func (d *Digester) Reset() {
	d.residual = ""
	d.lastDisplayed = ""
}

// line is one candidate line: raw keeps the original segment so a partial
// line can be continued verbatim by the next chunk, text is the trimmed
// form that gets displayed.
type line struct {
	raw   string
	text  string
	width int
}

// Update feeds the next chunk of the stream and returns the current digest.
// changed reports whether the digest differs from the previous one and is
// worth sending to the display.
func (d *Digester) Update(chunk string) (digest string, changed bool) {
	if chunk == "" {
		return d.lastDisplayed, false
	}
	if strings.TrimSpace(chunk) == "" && !hasLineBreak(chunk) {
		return d.lastDisplayed, false
	}

	text := d.residual + chunk
	lines := splitLines(text)
	if len(lines) == 0 {
		d.residual = ""
		d.lastDisplayed = ""
		return "", false
	}

	shown, residual := d.fit(lines)

	// A terminated last line must not be continued by the next chunk.
	d.residual = residual
	if endsWithLineBreak(strings.TrimRight(text, " \t")) {
		d.residual += "\n"
	}

	digest = strings.Join(shown, Separator)
	changed = digest != d.lastDisplayed
	d.lastDisplayed = digest
	return digest, changed
}

// fit selects the trailing lines that fit the budget. When even the last
// line is too wide it is stripped and truncated instead.
func (d *Digester) fit(lines []line) (shown []string, residual string) {
	sepWidth := ansi.StringWidth(Separator)

	total := 0
	start := len(lines)
	for i := len(lines) - 1; i >= 0; i-- {
		w := lines[i].width
		if start < len(lines) {
			w += sepWidth
		}
		if total+w > d.budget {
			break
		}
		total += w
		start = i
	}

	if start == len(lines) {
		last := lines[len(lines)-1]
		truncated := ansi.Truncate(ansi.Strip(last.text), d.budget, "")
		return []string{truncated}, truncated
	}

	kept := lines[start:]
	shown = make([]string, len(kept))
	raws := make([]string, len(kept))
	for i, l := range kept {
		shown[i] = l.text
		raws[i] = l.raw
	}
	return shown, strings.Join(raws, "\n")
}

// splitLines breaks text on \n, \r\n and \r, dropping blank segments.
func splitLines(text string) []line {
	segments := strings.FieldsFunc(text, isLineBreak)
	lines := make([]line, 0, len(segments))
	for _, seg := range segments {
		trimmed := strings.TrimSpace(seg)
		if trimmed == "" {
			continue
		}
		lines = append(lines, line{
			raw:   seg,
			text:  trimmed,
			width: VisibleWidth(trimmed),
		})
	}
	return lines
}

// VisibleWidth returns the terminal cell width of s with escape sequences removed.
func VisibleWidth(s string) int {
	return ansi.StringWidth(ansi.Strip(s))
}

func isLineBreak(r rune) bool {
	return r == '\n' || r == '\r'
}

func hasLineBreak(s string) bool {
	return strings.ContainsAny(s, "\r\n")
}

func endsWithLineBreak(s string) bool {
	return strings.HasSuffix(s, "\n") || strings.HasSuffix(s, "\r")
}
