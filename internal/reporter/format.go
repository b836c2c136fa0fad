package reporter

import (
	"regexp"
	"strings"

	"github.com/fatih/color"
	"github.com/harrison/visualexec/internal/digest"
	"github.com/harrison/visualexec/internal/display"
)

// palette holds the colors used in summaries and reports.
type palette struct {
	success   *color.Color
	fail      *color.Color
	highlight *color.Color
	marker    *color.Color
	separator *color.Color
}

var colors = palette{
	success:   color.New(color.FgGreen),
	fail:      color.New(color.FgRed),
	highlight: color.New(color.FgRed),
	marker:    color.New(color.FgBlue),
	separator: color.New(color.FgBlue),
}

// reportLevel picks the level of the output report.
func (r *Reporter) reportLevel(result *Result) display.Level {
	switch {
	case !result.Succeeded:
		return display.LevelError
	case r.opts.ForceStderrAsError && result.Stderr != "":
		return display.LevelError
	case r.opts.ErrorPattern != nil && r.opts.ErrorPattern.MatchString(result.Stdout):
		return display.LevelError
	default:
		return r.opts.OutputLevel
	}
}

// logFinalOutput logs the captured output between start and end markers.
func (r *Reporter) logFinalOutput(result *Result) {
	label := r.opts.OutputLabel

	if result.Stdout == "" && result.Stderr == "" {
		r.display.Log(result.Level, colors.success.Sprint("No output"), "from", label)
		return
	}

	var b strings.Builder
	b.WriteString(colors.success.Sprint(">>>"))
	b.WriteString(" Start of output from ")
	b.WriteString(label)
	b.WriteString(" ===")

	if result.Stdout != "" {
		b.WriteString("\n")
		b.WriteString(highlight(result.Stdout, r.opts.HighlightPattern))
	}

	if result.Stderr != "" {
		b.WriteString(colors.fail.Sprint("\n=== stderr ===\n"))
		b.WriteString(highlight(result.Stderr, r.opts.HighlightPattern))
	}

	b.WriteString("\n")
	b.WriteString(colors.marker.Sprint("<<<"))
	b.WriteString(" End of output from ")
	b.WriteString(label)
	b.WriteString(" ---")

	r.display.LogPlain(result.Level, b.String())
}

// highlight colors every match of re in text.
func highlight(text string, re *regexp.Regexp) string {
	if re == nil {
		return text
	}
	return re.ReplaceAllStringFunc(text, func(m string) string {
		return colors.highlight.Sprint(m)
	})
}

// markSeparators renders digest line separators as a visible marker so the
// digest stays on one terminal line.
func markSeparators(line string) string {
	return strings.ReplaceAll(line, digest.Separator, colors.separator.Sprint(digest.Separator))
}
