package ui

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/homesim/internal/logtail"
)

// logState holds all log view state.
type logState struct {
	entries     []logtail.Entry
	err         error
	follow      bool
	lastRefresh time.Time
	viewport    viewport.Model

	// Search
	searching bool
	input     textinput.Model
	query     string
	pattern   *regexp.Regexp
	matches   []int
	matchIdx  int
}

func newLogState() logState {
	ti := textinput.New()
	ti.Placeholder = "Search logs..."
	ti.CharLimit = 100
	return logState{
		follow:   true,
		input:    ti,
		viewport: viewport.New(0, 0),
	}
}

type logsMsg struct {
	entries []logtail.Entry
	err     error
}

func (m Model) loadLogsCmd() tea.Cmd {
	path := m.logPath
	return func() tea.Msg {
		if path == "" {
			return logsMsg{}
		}
		entries, err := logtail.ReadEntries(path, LogTailLines)
		return logsMsg{entries: entries, err: err}
	}
}

func (m *Model) handleLogs(msg logsMsg) {
	m.logState.err = msg.err
	if msg.err == nil {
		m.logState.entries = msg.entries
	}
	m.findSearchMatches()
	m.renderLogContent()
}

func (m *Model) resizeLogViewport() {
	m.logState.viewport.Width = maxInt(m.width-4, 1)
	m.logState.viewport.Height = maxInt(m.bodyHeight()-3, 1)
	m.renderLogContent()
}

// renderLogContent rebuilds the viewport content from the parsed entries.
func (m *Model) renderLogContent() {
	styles := m.theme.Styles()
	current := -1
	if len(m.logState.matches) > 0 {
		current = m.logState.matches[m.logState.matchIdx]
	}

	lines := make([]string, 0, len(m.logState.entries))
	for i, e := range m.logState.entries {
		line := m.formatEntry(e)
		switch {
		case i == current:
			line = styles.Selected.Render(plainEntry(e))
		case m.logState.pattern != nil && m.logState.pattern.MatchString(plainEntry(e)):
			line = styles.AccentText.Render("▌") + line
		}
		lines = append(lines, line)
	}
	m.logState.viewport.SetContent(strings.Join(lines, "\n"))
	if m.logState.follow {
		m.logState.viewport.GotoBottom()
	}
}

func (m Model) formatEntry(e logtail.Entry) string {
	styles := m.theme.Styles()
	if !e.Structured() {
		return styles.Text.Render(e.Msg)
	}
	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(styles.FaintText.Render(e.Time.Local().Format("15:04:05")))
		b.WriteString(" ")
	}
	b.WriteString(m.levelStyle(e.Level).Render(fmt.Sprintf("%-5s", e.Level)))
	b.WriteString(" ")
	b.WriteString(styles.Text.Render(e.Msg))
	for _, a := range e.Attrs {
		b.WriteString(" ")
		b.WriteString(styles.MutedText.Render(a.Key + "="))
		b.WriteString(styles.InfoText.Render(a.Value))
	}
	return b.String()
}

func plainEntry(e logtail.Entry) string {
	if !e.Structured() {
		return e.Msg
	}
	parts := []string{e.Level, e.Msg}
	for _, a := range e.Attrs {
		parts = append(parts, a.Key+"="+a.Value)
	}
	return strings.Join(parts, " ")
}

func (m Model) levelStyle(level string) lipgloss.Style {
	styles := m.theme.Styles()
	switch strings.ToUpper(level) {
	case "ERROR":
		return styles.DangerText
	case "WARN":
		return styles.WarningText.Bold(true)
	case "DEBUG":
		return styles.InfoText
	default:
		return styles.SuccessText
	}
}

func (m Model) renderLogs(width, height int) string {
	styles := m.theme.Styles()

	var status []string
	follow := "off"
	if m.logState.follow {
		follow = "on"
	}
	status = append(status, styles.FaintText.Render(fmt.Sprintf("%d lines  follow %s", len(m.logState.entries), follow)))
	switch {
	case m.logState.searching:
		status = append(status, styles.AccentText.Render("search: "+m.logState.input.View()))
	case m.logState.pattern != nil && len(m.logState.matches) == 0:
		status = append(status, styles.DangerText.Render("Pattern not found: "+m.logState.query))
	case m.logState.pattern != nil:
		status = append(status, styles.AccentText.Render(fmt.Sprintf("/%s %d/%d", m.logState.query, m.logState.matchIdx+1, len(m.logState.matches))))
	}
	if m.logState.err != nil {
		status = append(status, styles.DangerText.Render(m.logState.err.Error()))
	}
	if m.logPath != "" {
		status = append(status, styles.MutedText.Render(truncate(m.logPath, 50)))
	}

	content := m.logState.viewport.View()
	if len(m.logState.entries) == 0 {
		content = styles.FaintText.Render("No log entries yet")
	}
	box := m.theme.Panel(true).
		Width(maxInt(width-2, 1)).
		Height(maxInt(height-3, 1)).
		Render(content)
	return box + "\n" + strings.Join(status, styles.FaintText.Render(" • "))
}

// handleLogsKey processes keyboard input for the logs view.
func (m Model) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	vp := &m.logState.viewport
	switch {
	case key.Matches(msg, m.keys.Escape):
		if m.logState.pattern != nil {
			m.clearLogSearch()
			return m, nil
		}
		m.currentView = ViewSimulator
	case key.Matches(msg, m.keys.Follow):
		m.logState.follow = !m.logState.follow
		if m.logState.follow {
			vp.GotoBottom()
		}
	case key.Matches(msg, m.keys.Search):
		m.logState.searching = true
		m.logState.input.SetValue("")
		return m, m.logState.input.Focus()
	case key.Matches(msg, m.keys.NextMatch):
		m.stepSearchMatch(1)
	case key.Matches(msg, m.keys.PrevMatch):
		m.stepSearchMatch(-1)
	case key.Matches(msg, m.keys.Top):
		vp.GotoTop()
		m.logState.follow = false
	case key.Matches(msg, m.keys.Bottom):
		vp.GotoBottom()
		m.logState.follow = true
	case key.Matches(msg, m.keys.Down):
		vp.ScrollDown(1)
		m.logState.follow = false
	case key.Matches(msg, m.keys.Up):
		vp.ScrollUp(1)
		m.logState.follow = false
	case key.Matches(msg, m.keys.HalfPageDown):
		vp.HalfPageDown()
		m.logState.follow = false
	case key.Matches(msg, m.keys.HalfPageUp):
		vp.HalfPageUp()
		m.logState.follow = false
	}
	return m, nil
}

// handleLogSearchInput handles keyboard input while typing a search.
func (m Model) handleLogSearchInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit
	case key.Matches(msg, m.keys.Escape):
		m.logState.searching = false
		m.logState.input.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Confirm):
		query := m.logState.input.Value()
		m.logState.searching = false
		m.logState.input.Blur()
		if query == "" {
			m.clearLogSearch()
			return m, nil
		}
		re, err := regexp.Compile("(?i)" + query)
		if err != nil {
			re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(query))
		}
		m.logState.query = query
		m.logState.pattern = re
		m.logState.follow = false
		m.findSearchMatches()
		m.renderLogContent()
		m.scrollToSearchMatch()
		return m, nil
	}
	var cmd tea.Cmd
	m.logState.input, cmd = m.logState.input.Update(msg)
	return m, cmd
}

func (m *Model) clearLogSearch() {
	m.logState.query = ""
	m.logState.pattern = nil
	m.logState.matches = nil
	m.logState.matchIdx = 0
	m.renderLogContent()
}

func (m *Model) findSearchMatches() {
	m.logState.matches = nil
	if m.logState.pattern == nil {
		m.logState.matchIdx = 0
		return
	}
	for i, e := range m.logState.entries {
		if m.logState.pattern.MatchString(plainEntry(e)) {
			m.logState.matches = append(m.logState.matches, i)
		}
	}
	m.logState.matchIdx = clampIndex(m.logState.matchIdx, len(m.logState.matches))
}

func (m *Model) stepSearchMatch(delta int) {
	n := len(m.logState.matches)
	if n == 0 {
		return
	}
	m.logState.matchIdx = ((m.logState.matchIdx+delta)%n + n) % n
	m.logState.follow = false
	m.renderLogContent()
	m.scrollToSearchMatch()
}

func (m *Model) scrollToSearchMatch() {
	if len(m.logState.matches) == 0 {
		return
	}
	line := m.logState.matches[m.logState.matchIdx]
	m.logState.viewport.SetYOffset(maxInt(line-m.logState.viewport.Height/2, 0))
}
