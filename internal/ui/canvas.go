package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/five82/homesim/internal/device"
)

var fanFrames = []string{"◐", "◓", "◑", "◒"}

// glowColor blends a light's colour into the card surface by brightness.
// Switched-off lights show the bare surface.
func glowColor(surface string, s device.LightSettings) string {
	base, err := colorful.Hex(surface)
	if err != nil {
		return surface
	}
	if !s.Power {
		return base.Hex()
	}
	light, err := colorful.Hex(s.Color)
	if err != nil {
		light, _ = colorful.Hex(device.DefaultLightColor)
	}
	t := 0.15 + 0.85*float64(device.ClampPercent(s.Brightness))/100
	return base.BlendLab(light, t).Clamped().Hex()
}

// fanFrame picks the spinner frame for a fan that has run for elapsed.
func fanFrame(s device.FanSettings, elapsed time.Duration) string {
	period := device.FanSpinPeriod(s.Speed)
	if !s.Power || period <= 0 || elapsed < 0 {
		return fanFrames[0]
	}
	phase := elapsed % period
	return fanFrames[int(phase*time.Duration(len(fanFrames))/period)]
}

// renderSimulator lays out the sidebar and canvas side by side.
func (m Model) renderSimulator(width, height int) string {
	sidebar := m.renderSidebar(height)
	canvas := m.renderCanvas(width-lipgloss.Width(sidebar), height)
	return lipgloss.JoinHorizontal(lipgloss.Top, sidebar, canvas)
}

func (m Model) renderSidebar(height int) string {
	styles := m.theme.Styles()
	focused := m.focus == paneSidebar
	inner := SidebarWidth - 4

	var lines []string
	lines = append(lines, styles.AccentText.Bold(true).Render("Devices"))

	items := m.sidebarItems()
	for i, item := range items {
		if i == len(device.Types()) {
			lines = append(lines, "", styles.AccentText.Bold(true).Render("Presets"))
		}
		label := item.label
		if item.presetID == "" {
			label = deviceIcon(item.deviceType) + " " + label
		} else if item.presetID == m.snapshot.SourcePreset {
			label = "• " + label
		} else {
			label = "  " + label
		}
		label = truncate(label, inner)

		switch {
		case i == m.sidebarRow && focused:
			lines = append(lines, styles.Selected.Width(inner).Render(label))
		case i == m.sidebarRow:
			lines = append(lines, styles.AccentText.Render(label))
		default:
			lines = append(lines, styles.Text.Render(label))
		}
	}
	if len(m.snapshot.Presets) == 0 {
		lines = append(lines, "", styles.AccentText.Bold(true).Render("Presets"))
		lines = append(lines, styles.FaintText.Render("Nothing added yet"))
	}

	return m.theme.Panel(focused).
		Width(SidebarWidth - 2).
		Height(maxInt(height-2, 1)).
		Render(strings.Join(lines, "\n"))
}

func deviceIcon(t device.Type) string {
	switch t {
	case device.TypeLight:
		return "◉"
	case device.TypeFan:
		return "✣"
	default:
		return "?"
	}
}

func (m Model) renderCanvas(width, height int) string {
	styles := m.theme.Styles()
	focused := m.focus == paneCanvas
	inner := maxInt(width-4, CardWidth)

	title := "Canvas"
	if p, ok := m.snapshot.Preset(m.snapshot.SourcePreset); ok {
		title = fmt.Sprintf("Canvas · from %q", p.Name)
	}

	var body string
	if len(m.snapshot.Devices) == 0 {
		body = styles.FaintText.Render("Drop a device or preset here (select in the sidebar, press enter)")
	} else {
		perRow := maxInt(inner/CardWidth, 1)
		if width < LayoutCompactWidth {
			perRow = 1
		}
		var rows []string
		for start := 0; start < len(m.snapshot.Devices); start += perRow {
			end := minInt(start+perRow, len(m.snapshot.Devices))
			cards := make([]string, 0, end-start)
			for i := start; i < end; i++ {
				cards = append(cards, m.renderCard(m.snapshot.Devices[i], i == m.canvasRow, focused))
			}
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards...))
		}
		body = strings.Join(rows, "\n")
	}

	content := styles.AccentText.Bold(true).Render(title) + "\n\n" + body
	return m.theme.Panel(focused).
		Width(maxInt(width-2, 1)).
		Height(maxInt(height-2, 1)).
		Render(content)
}

func (m Model) renderCard(d device.Device, selected, focused bool) string {
	styles := m.theme.Styles()
	inner := CardWidth - 4

	power := styles.MutedText.Render("○ OFF")
	if d.Settings != nil && d.Settings.IsOn() {
		power = styles.SuccessText.Render("● ON")
	}
	// Controls render faint while the device is off.
	control := styles.Text
	if d.Settings == nil || !d.Settings.IsOn() {
		control = styles.FaintText
	}

	lines := []string{
		styles.Text.Bold(true).Render(truncate(deviceIcon(d.Type)+" "+d.DisplayName(), inner)),
		power,
	}

	switch s := d.Settings.(type) {
	case device.LightSettings:
		glow := lipgloss.NewStyle().Foreground(lipgloss.Color(glowColor(m.theme.Surface, s)))
		lines = append(lines,
			glow.Render(strings.Repeat("█", inner)),
			control.Render(fmt.Sprintf("Bright %s %3d%%", meter(s.Brightness, inner-12), s.Brightness)),
			control.Render("Colour "+device.ColorTempName(s.Color)),
		)
	case device.FanSettings:
		frame := fanFrame(s, m.clock.Sub(m.started))
		lines = append(lines,
			lipgloss.PlaceHorizontal(inner, lipgloss.Center, styles.InfoText.Bold(true).Render(frame)),
			control.Render(fmt.Sprintf("Speed  %s %3d%%", meter(s.Speed, inner-12), s.Speed)),
			"",
		)
	default:
		lines = append(lines, styles.DangerText.Render("invalid settings"), "", "")
	}

	border := m.theme.Border
	if selected {
		border = m.theme.Accent
		if focused {
			border = m.theme.BorderFocus
		}
	}
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(border)).
		Padding(0, 1).
		Width(CardWidth - 2)
	if selected {
		style = style.BorderStyle(lipgloss.ThickBorder())
	}
	return style.Render(strings.Join(lines, "\n"))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
