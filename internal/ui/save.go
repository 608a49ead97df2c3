package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/homesim/internal/device"
	"github.com/five82/homesim/internal/simulator"
	"github.com/five82/homesim/internal/state"
)

// saveDialog is the preset naming prompt.
type saveDialog struct {
	input     textinput.Model
	source    device.Preset
	hasSource bool
	overwrite bool
	err       string
}

func newSaveDialog(source device.Preset, hasSource, overwrite bool) *saveDialog {
	ti := textinput.New()
	ti.Placeholder = "Preset name"
	ti.CharLimit = 64
	ti.Width = 32

	d := &saveDialog{
		input:     ti,
		source:    source,
		hasSource: hasSource,
		overwrite: overwrite && hasSource,
	}
	if d.overwrite {
		d.input.SetValue(source.Name)
	}
	return d
}

func (d *saveDialog) focus() tea.Cmd {
	return d.input.Focus()
}

func (d *saveDialog) toggleOverwrite() {
	if !d.hasSource {
		return
	}
	d.overwrite = !d.overwrite
	if d.overwrite && strings.TrimSpace(d.input.Value()) == "" {
		d.input.SetValue(d.source.Name)
		d.input.CursorEnd()
	}
}

func (d *saveDialog) request() simulator.SaveRequest {
	return simulator.SaveRequest{Name: d.input.Value(), Overwrite: d.overwrite}
}

type savedMsg struct {
	result simulator.SaveResult
	err    error
}

// confirmDisabled reports whether enter is ignored because a save is running.
func (m Model) confirmDisabled() bool {
	return m.submitting || m.snapshot.Saving
}

func (m Model) handleSaveKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit

	case key.Matches(msg, m.keys.Escape):
		m.save = nil
		return m, nil

	case key.Matches(msg, m.keys.Tab):
		m.save.toggleOverwrite()
		return m, nil

	case key.Matches(msg, m.keys.Confirm):
		if m.confirmDisabled() {
			return m, nil
		}
		m.submitting = true
		m.save.err = ""
		req := m.save.request()
		ctx := m.ctx
		controller := m.controller
		return m, func() tea.Msg {
			res, err := controller.SavePreset(ctx, req)
			return savedMsg{result: res, err: err}
		}
	}

	var cmd tea.Cmd
	m.save.input, cmd = m.save.input.Update(msg)
	return m, cmd
}

func (m Model) handleSaved(msg savedMsg) (tea.Model, tea.Cmd) {
	m.submitting = false
	m.refresh()
	if m.save == nil {
		return m, nil
	}
	if msg.err != nil {
		if !errors.Is(msg.err, simulator.ErrSaveInFlight) && m.snapshot.Notice.Level == state.LevelError {
			m.save.err = m.snapshot.Notice.Text
		}
		return m, nil
	}
	if m.save.hasSource && m.prefs.Overwrite != m.save.overwrite {
		m.prefs.Overwrite = m.save.overwrite
		m.savePrefs()
	}
	m.save = nil
	return m, nil
}

func (m Model) renderSaveDialog(width, height int) string {
	styles := m.theme.Styles()
	d := m.save

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Save preset"))
	b.WriteString("\n\n")
	b.WriteString(d.input.View())
	b.WriteString("\n\n")

	if d.hasSource {
		box := "[ ]"
		if d.overwrite {
			box = "[x]"
		}
		b.WriteString(styles.AccentText.Render(box))
		b.WriteString(styles.Text.Render(fmt.Sprintf(" Overwrite %q", d.source.Name)))
		b.WriteString("\n\n")
	}

	if d.err != "" {
		b.WriteString(styles.DangerText.Render(d.err))
		b.WriteString("\n\n")
	}

	confirm := styles.Key.Render("enter") + styles.MutedText.Render(" save")
	if m.confirmDisabled() {
		confirm = styles.FaintText.Render("enter save") + "  " + styles.WarningText.Render("Saving…")
	}
	hints := []string{confirm}
	if d.hasSource {
		hints = append(hints, styles.Key.Render("tab")+styles.MutedText.Render(" overwrite"))
	}
	hints = append(hints, styles.Key.Render("esc")+styles.MutedText.Render(" cancel"))
	b.WriteString(strings.Join(hints, styles.FaintText.Render("  •  ")))

	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Accent)).
		Padding(1, 2).
		Width(48).
		Render(b.String())

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, modal)
}
