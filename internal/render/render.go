// Package render turns a finished search report into output. It is a pure
// formatter: everything it needs is already in the report, and it never
// touches the filesystem.
package render

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"github.com/recall-dev/recall/internal/engine"
	"github.com/recall-dev/recall/internal/transcript"
	"github.com/recall-dev/recall/internal/window"
)

const (
	colorReset   = "\033[0m"
	colorUser    = "\033[1;34m" // bold blue
	colorAssist  = "\033[1;32m" // bold green
	colorTool    = "\033[2;35m" // dim magenta
	colorDim     = "\033[2m"
	colorHit     = "\033[43m"   // yellow background
	colorBoldRed = "\033[1;31m" // matched span
)

// Format selects the output shape.
type Format int

const (
	FormatText Format = iota
	FormatJSON
	FormatTable
)

// ParseFormat maps a format selector to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "text":
		return FormatText, nil
	case "json", "records":
		return FormatJSON, nil
	case "table":
		return FormatTable, nil
	}
	return 0, fmt.Errorf("unknown output format %q (want text, json or table)", s)
}

type Options struct {
	Width int  // wrap width for text output (0 = no wrap)
	Color bool // emit ANSI colors
}

// Report renders a search report in the requested format.
func Report(rep *engine.Report, f Format, opts Options) (string, error) {
	switch f {
	case FormatJSON:
		return renderJSON(rep)
	case FormatTable:
		return renderTable(rep, opts), nil
	default:
		return renderText(rep, opts), nil
	}
}

// StatusLine is the human-readable line for an empty result set, keeping
// "no candidates matched" distinguishable from "searched, found nothing".
func StatusLine(s engine.Status) string {
	switch s {
	case engine.StatusNoCandidates:
		return "No transcripts matched the project/date filters."
	case engine.StatusNoMatches:
		return "No matches found."
	}
	return ""
}

// json shape

type jsonReport struct {
	Status   string           `json:"status"`
	Scanned  int              `json:"scanned"`
	Pruned   int              `json:"pruned"`
	Results  []engine.Result  `json:"results"`
	Warnings []engine.Warning `json:"warnings,omitempty"`
}

func renderJSON(rep *engine.Report) (string, error) {
	out := jsonReport{
		Status:   rep.Status.String(),
		Scanned:  rep.Scanned,
		Pruned:   rep.Pruned,
		Results:  rep.Results,
		Warnings: rep.Warnings,
	}
	if out.Results == nil {
		out.Results = []engine.Result{}
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	return string(b) + "\n", nil
}

// flat text with inline context

func renderText(rep *engine.Report, opts Options) string {
	if len(rep.Results) == 0 {
		return StatusLine(rep.Status) + "\n"
	}

	var b strings.Builder
	for i := range rep.Results {
		r := &rep.Results[i]
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(resultText(r, opts))
	}
	if n := len(rep.Warnings); n > 0 {
		b.WriteString(dim(fmt.Sprintf("\n(%d warning(s); run with --format json for details)\n", n), opts.Color))
	}
	return b.String()
}

// resultText renders one result: a header line, then the context window
// with the matched record highlighted.
func resultText(r *engine.Result, opts Options) string {
	var b strings.Builder

	header := fmt.Sprintf("--- %s %s:%d [%s] %s (score %.1f) ---",
		r.Project, r.SessionID, r.Line, r.Kind,
		r.Timestamp.Format(time.RFC3339), r.Score)
	writeWrapped(&b, dim(header, opts.Color), opts.Width)

	entries := r.Context
	if len(entries) == 0 {
		entries = []window.Entry{{
			UUID: r.UUID, Kind: r.Kind, Timestamp: r.Timestamp,
			Text: r.Content, Match: true,
		}}
	}

	for _, e := range entries {
		label, color := kindLabel(e.Kind)
		ts := ""
		if !e.Timestamp.IsZero() {
			ts = e.Timestamp.Format("15:04:05")
		}
		if e.Match {
			writeWrapped(&b, colorize(fmt.Sprintf(">> %s > %s <<", label, ts), colorHit, opts.Color), opts.Width)
		} else {
			writeWrapped(&b, colorize(label+" >", color, opts.Color)+" "+dim(ts, opts.Color), opts.Width)
		}

		text := e.Text
		if e.Match {
			text = highlightSpan(r.Content, r.Span.Start, r.Span.End, opts.Color)
		} else {
			text = dim(text, opts.Color)
		}
		for _, line := range strings.Split(indentLines(text, "  "), "\n") {
			writeWrapped(&b, line, opts.Width)
		}
	}
	return b.String()
}

// tabular summary

func renderTable(rep *engine.Report, opts Options) string {
	if len(rep.Results) == 0 {
		return StatusLine(rep.Status) + "\n"
	}

	var b strings.Builder
	row := func(ts, project, kind, score, snippet string) {
		b.WriteString(runewidth.FillRight(runewidth.Truncate(ts, 16, ""), 17))
		b.WriteString(runewidth.FillRight(runewidth.Truncate(project, 28, "..."), 29))
		b.WriteString(runewidth.FillRight(kind, 16))
		b.WriteString(runewidth.FillRight(score, 7))
		b.WriteString(snippet)
		b.WriteString("\n")
	}
	row("TIME", "PROJECT", "KIND", "SCORE", "SNIPPET")
	for i := range rep.Results {
		r := &rep.Results[i]
		row(
			r.Timestamp.Format("2006-01-02 15:04"),
			r.Project,
			string(r.Kind),
			fmt.Sprintf("%.1f", r.Score),
			Snippet(r.Content, r.Span.Start, r.Span.End, 40, opts.Color),
		)
	}
	return b.String()
}

// Snippet extracts a one-line excerpt around the matched span, with up to
// contextChars runes on each side and the span highlighted.
func Snippet(content string, start, end, contextChars int, color bool) string {
	runes := []rune(content)
	if start < 0 || end > len(runes) || start > end {
		start, end = 0, 0
	}

	lo := start - contextChars
	if lo < 0 {
		lo = 0
	}
	hi := end + contextChars
	if hi > len(runes) {
		hi = len(runes)
	}

	prefix, suffix := "", ""
	if lo > 0 {
		prefix = "..."
	}
	if hi < len(runes) {
		suffix = "..."
	}

	s := prefix +
		string(runes[lo:start]) +
		colorize(string(runes[start:end]), colorBoldRed, color) +
		string(runes[end:hi]) +
		suffix
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	return s
}

// helpers

func kindLabel(k transcript.Kind) (label, color string) {
	switch k {
	case transcript.KindUser:
		return "USER", colorUser
	case transcript.KindAssistant:
		return "ASST", colorAssist
	case transcript.KindTool:
		return "TOOL", colorTool
	default:
		return strings.ToUpper(string(k)), colorDim
	}
}

func colorize(s, color string, enabled bool) string {
	if !enabled || s == "" {
		return s
	}
	return color + s + colorReset
}

func dim(s string, enabled bool) string {
	return colorize(s, colorDim, enabled)
}

// highlightSpan wraps the [start,end) rune range of content in the match
// color.
func highlightSpan(content string, start, end int, color bool) string {
	runes := []rune(content)
	if start < 0 || end > len(runes) || start >= end {
		return content
	}
	return string(runes[:start]) +
		colorize(string(runes[start:end]), colorBoldRed, color) +
		string(runes[end:])
}

// indentLines prepends each line of text with the given prefix.
func indentLines(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

func writeWrapped(b *strings.Builder, line string, width int) {
	for _, wl := range wrapLine(line, width) {
		b.WriteString(wl)
		b.WriteString("\n")
	}
}

// wrapLine breaks a single line into lines that fit within maxWidth visible
// columns, skipping ANSI escape sequences when measuring width.
func wrapLine(line string, maxWidth int) []string {
	if maxWidth <= 0 {
		return []string{line}
	}

	var result []string
	var cur strings.Builder
	visW := 0

	i := 0
	for i < len(line) {
		// ANSI escape sequence: ESC[ ... m
		if i+1 < len(line) && line[i] == '\033' && line[i+1] == '[' {
			j := i + 2
			for j < len(line) && line[j] != 'm' {
				j++
			}
			if j < len(line) {
				j++ // include 'm'
			}
			cur.WriteString(line[i:j])
			i = j
			continue
		}

		r, size := utf8.DecodeRuneInString(line[i:])
		rw := runewidth.RuneWidth(r)

		if visW+rw > maxWidth {
			result = append(result, cur.String())
			cur.Reset()
			visW = 0
		}

		cur.WriteRune(r)
		visW += rw
		i += size
	}

	if cur.Len() > 0 {
		result = append(result, cur.String())
	}
	if len(result) == 0 {
		return []string{""}
	}
	return result
}
