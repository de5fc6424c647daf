// Package tui is an interactive browser over a finished search report:
// result list on the left, context preview on the right. It never re-runs
// the query; the report is already materialized when the TUI starts.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/recall-dev/recall/internal/engine"
	"github.com/recall-dev/recall/internal/open"
	"github.com/recall-dev/recall/internal/render"
)

type model struct {
	report     *engine.Report
	term       string
	cursor     int
	listOffset int
	preview    viewport.Model
	previewIdx int // result index currently rendered in the preview
	width      int
	height     int
	ready      bool
	quitting   bool
	chosen     *engine.Result
	openFile   *engine.Result
}

func initialModel(rep *engine.Report, term string) model {
	return model{
		report:     rep,
		term:       term,
		preview:    viewport.New(0, 0),
		previewIdx: -1,
	}
}

// Run starts the browser and blocks until it exits. Selecting a result
// prints its resume command; ctrl+o drops into $EDITOR at the matched line.
func Run(rep *engine.Report, term string) error {
	m := initialModel(rep, term)
	p := tea.NewProgram(m, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("tui: %w", err)
	}

	fm := finalModel.(model)
	if fm.openFile != nil {
		return open.FileAt(fm.openFile.Path, fm.openFile.Line)
	}
	if fm.chosen != nil {
		printResumeCommand(fm.chosen)
	}
	return nil
}

// printResumeCommand emits the shell command that reopens the matched
// session in Claude Code.
func printResumeCommand(r *engine.Result) {
	resume := fmt.Sprintf("claude --resume %s", r.SessionID)
	if r.Cwd != "" {
		fmt.Printf("cd %s && %s\n", r.Cwd, resume)
	} else {
		fmt.Println(resume)
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.preview = viewport.New(m.previewWidth(), m.panelHeight())
		m.previewIdx = -1
		m.refreshPreview()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, keys.Enter):
			if r := m.current(); r != nil {
				m.chosen = r
				m.quitting = true
				return m, tea.Quit
			}

		case key.Matches(msg, keys.Open):
			if r := m.current(); r != nil {
				m.openFile = r
				m.quitting = true
				return m, tea.Quit
			}

		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
				m.adjustListScroll(m.panelHeight())
				m.refreshPreview()
			}
			return m, nil

		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.report.Results)-1 {
				m.cursor++
				m.adjustListScroll(m.panelHeight())
				m.refreshPreview()
			}
			return m, nil

		case key.Matches(msg, keys.PreviewUp):
			m.preview.LineUp(m.panelHeight() / 2)
			return m, nil

		case key.Matches(msg, keys.PreviewDn):
			m.preview.LineDown(m.panelHeight() / 2)
			return m, nil

		case key.Matches(msg, keys.PageUp):
			m.preview.LineUp(m.panelHeight())
			return m, nil

		case key.Matches(msg, keys.PageDown):
			m.preview.LineDown(m.panelHeight())
			return m, nil
		}
	}

	return m, nil
}

func (m model) current() *engine.Result {
	if len(m.report.Results) == 0 || m.cursor >= len(m.report.Results) {
		return nil
	}
	return &m.report.Results[m.cursor]
}

// refreshPreview renders the selected result's context window into the
// preview viewport. Rendering is local and cheap, so no async command.
func (m *model) refreshPreview() {
	r := m.current()
	if r == nil {
		m.preview.SetContent("")
		m.previewIdx = -1
		return
	}
	if m.previewIdx == m.cursor {
		return
	}
	content, _ := render.Report(
		&engine.Report{Status: engine.StatusFound, Results: []engine.Result{*r}},
		render.FormatText,
		render.Options{Width: m.previewWidth(), Color: true},
	)
	m.preview.SetContent(content)
	m.preview.GotoTop()
	m.previewIdx = m.cursor
}

// View renders the full TUI.
func (m model) View() string {
	if m.quitting || !m.ready {
		return ""
	}

	listW := m.listWidth()
	previewW := m.previewWidth()
	panelH := m.panelHeight()

	title := styleTitle.Render(fmt.Sprintf("recall: %q", m.term))

	listPanel := stylePanelBorder.
		Width(listW).
		Height(panelH).
		Render(m.renderList(listW, panelH))

	m.preview.Width = previewW
	m.preview.Height = panelH
	previewPanel := styleActiveBorder.
		Width(previewW).
		Height(panelH).
		Render(m.preview.View())

	panels := lipgloss.JoinHorizontal(lipgloss.Top, listPanel, previewPanel)

	return lipgloss.JoinVertical(lipgloss.Left, title, panels, m.statusBar())
}

func (m model) listWidth() int {
	if m.width <= 0 {
		return 40
	}
	w := m.width*40/100 - 4
	if w < 20 {
		w = 20
	}
	return w
}

func (m model) previewWidth() int {
	if m.width <= 0 {
		return 60
	}
	w := m.width*60/100 - 4
	if w < 20 {
		w = 20
	}
	return w
}

func (m model) panelHeight() int {
	if m.height <= 0 {
		return 20
	}
	// title (1) + status bar (1) + borders (4)
	h := m.height - 6
	if h < 5 {
		h = 5
	}
	return h
}

func (m model) statusBar() string {
	parts := []string{
		fmt.Sprintf("%d results", len(m.report.Results)),
		"up/dn navigate",
		"C-u/C-d preview",
		"Enter resume cmd",
		"C-o editor",
		"Esc quit",
	}
	if n := len(m.report.Warnings); n > 0 {
		parts = append(parts, fmt.Sprintf("%d warnings", n))
	}
	return styleStatusBar.Render(strings.Join(parts, " | "))
}
