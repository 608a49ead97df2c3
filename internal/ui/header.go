package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/homesim/internal/storage"
)

// renderHeader renders the top bar: logo, storage mode and counts.
func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	sep := styles.FaintText.Render("  •  ")

	parts := []string{styles.Logo.Render("homesim")}

	if m.controller != nil {
		mode := m.controller.Mode()
		label := strings.ToUpper(string(mode))
		switch {
		case m.snapshot.IsOffline():
			parts = append(parts, styles.DangerText.Render("● "+label+" OFFLINE"))
		case mode == storage.ModeRemote:
			parts = append(parts, styles.InfoText.Render("● "+label))
		default:
			parts = append(parts, styles.SuccessText.Render("● "+label))
		}
	}

	parts = append(parts,
		styles.MutedText.Render("Devices: ")+styles.Text.Render(fmt.Sprintf("%d", len(m.snapshot.Devices))),
		styles.MutedText.Render("Presets: ")+styles.Text.Render(fmt.Sprintf("%d", len(m.snapshot.Presets))),
	)
	if !m.snapshot.LastUpdated.IsZero() && m.width >= LayoutCompactWidth {
		parts = append(parts, styles.MutedText.Render("Synced "+m.snapshot.LastUpdated.Format("15:04:05")))
	}

	return styles.Header.Width(m.width).Render(strings.Join(parts, sep))
}

// renderStatus renders the bottom bar: the latest notice, save progress and
// a short key hint.
func (m Model) renderStatus() string {
	styles := m.theme.Styles()

	var left []string
	if m.submitting || m.snapshot.Saving {
		left = append(left, styles.WarningText.Bold(true).Render("Saving…"))
	}
	if n := m.snapshot.Notice; n.Text != "" {
		limit := m.width - 30
		if limit < 20 {
			limit = 20
		}
		left = append(left, m.theme.NoticeStyle(n.Level).Render(truncate(n.Text, limit)))
	}

	hint := m.keys.Help.Help().Key + " help  " + m.keys.Quit.Help().Key + " quit"
	if m.currentView == ViewLogs {
		hint = "L back  " + hint
	}
	right := styles.FaintText.Render(hint)

	content := strings.Join(left, "  ")
	gap := m.width - 2 - lipgloss.Width(content) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return styles.Footer.Width(m.width).Render(content + strings.Repeat(" ", gap) + right)
}
