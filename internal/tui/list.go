package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/recall-dev/recall/internal/engine"
	"github.com/recall-dev/recall/internal/render"
	"github.com/recall-dev/recall/internal/transcript"
)

// linesPerItem is the number of terminal lines each result occupies.
const linesPerItem = 2

// renderList renders the left panel: the ranked result list with scrolling.
func (m model) renderList(width, height int) string {
	if len(m.report.Results) == 0 {
		return lipgloss.NewStyle().
			Foreground(colorDim).
			Width(width).
			Height(height).
			Align(lipgloss.Center, lipgloss.Center).
			Render(render.StatusLine(m.report.Status))
	}

	var lines []string
	for i := range m.report.Results {
		if i < m.listOffset {
			continue
		}
		if len(lines)+linesPerItem > height {
			break
		}
		rows := formatResultLine(&m.report.Results[i], width, i == m.cursor)
		lines = append(lines, rows...)
	}

	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}

	return strings.Join(lines, "\n")
}

// formatResultLine formats a single result as two lines:
//
//	line 1: [>] kind  date  project
//	line 2:    snippet (dimmed)
func formatResultLine(r *engine.Result, width int, selected bool) []string {
	var kind string
	switch r.Kind {
	case transcript.KindUser:
		kind = styleKindUser.Render("user")
	case transcript.KindAssistant:
		kind = styleKindAssistant.Render("asst")
	default:
		kind = styleKindOther.Render("tool")
	}

	date := r.Timestamp.Format("01-02")

	project := r.Project
	projectMax := width - 2 - 5 - 6 - 2 // prefix + kind + date + padding
	if projectMax < 0 {
		projectMax = 0
	}
	if runewidth.StringWidth(project) > projectMax {
		project = runewidth.Truncate(project, projectMax, "")
	}

	line1 := fmt.Sprintf("%s %s %s", kind, date, styleListNormal.Render(project))
	if selected {
		line1 = styleListSelected.Render("> ") + line1
	} else {
		line1 = "  " + line1
	}

	snippet := render.Snippet(r.Content, r.Span.Start, r.Span.End, 30, false)
	snippetMax := width - 4
	if snippetMax < 0 {
		snippetMax = 0
	}
	if runewidth.StringWidth(snippet) > snippetMax {
		snippet = runewidth.Truncate(snippet, snippetMax, "")
	}
	line2 := "    " + lipgloss.NewStyle().Foreground(colorDim).Render(snippet)

	return []string{line1, line2}
}

// adjustListScroll keeps the cursor visible within the list viewport.
func (m *model) adjustListScroll(listHeight int) {
	visibleItems := listHeight / linesPerItem
	if visibleItems < 1 {
		visibleItems = 1
	}
	if m.cursor < m.listOffset {
		m.listOffset = m.cursor
	}
	if m.cursor >= m.listOffset+visibleItems {
		m.listOffset = m.cursor - visibleItems + 1
	}
}
