package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/homesim/internal/device"
	"github.com/five82/homesim/internal/simulator"
)

// adjustStep is how far left/right moves a brightness or speed slider.
const adjustStep = 5

// sidebarItem is one droppable entry: a device type or a saved preset.
type sidebarItem struct {
	label      string
	deviceType device.Type
	presetID   string
}

func (m Model) sidebarItems() []sidebarItem {
	types := device.Types()
	items := make([]sidebarItem, 0, len(types)+len(m.snapshot.Presets))
	for _, t := range types {
		items = append(items, sidebarItem{label: t.Label(), deviceType: t})
	}
	for _, p := range m.snapshot.Presets {
		items = append(items, sidebarItem{label: p.Name, presetID: p.ID})
	}
	return items
}

func (m Model) selectedDevice() (device.Device, bool) {
	if m.canvasRow < 0 || m.canvasRow >= len(m.snapshot.Devices) {
		return device.Device{}, false
	}
	return m.snapshot.Devices[m.canvasRow], true
}

// handleSimulatorKey processes keyboard input for the sidebar and canvas.
func (m Model) handleSimulatorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Tab):
		if m.focus == paneSidebar {
			m.focus = paneCanvas
		} else {
			m.focus = paneSidebar
		}
		return m, nil

	case key.Matches(msg, m.keys.Escape):
		m.focus = paneSidebar
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
		return m, nil

	case key.Matches(msg, m.keys.Drop):
		if m.focus == paneSidebar {
			return m.dropSelection()
		}
		return m, nil

	case key.Matches(msg, m.keys.Save):
		return m.openSave()

	case key.Matches(msg, m.keys.Clear):
		if len(m.snapshot.Devices) == 0 {
			return m, nil
		}
		m.snapshot.Devices = nil
		m.canvasRow = 0
		return m, m.runAction("clear", m.controller.ClearAll)

	case key.Matches(msg, m.keys.Remove):
		d, ok := m.selectedDevice()
		if !ok {
			return m, nil
		}
		return m, m.runAction("remove", func(ctx context.Context) error {
			return m.controller.RemoveDevice(ctx, d.ID)
		})

	case key.Matches(msg, m.keys.Power):
		return m.changeSettings("power", device.TogglePower)

	case key.Matches(msg, m.keys.Decrease):
		return m.changeSettings("adjust", func(s device.Settings) device.Settings {
			return device.AdjustLevel(s, -adjustStep)
		})

	case key.Matches(msg, m.keys.Increase):
		return m.changeSettings("adjust", func(s device.Settings) device.Settings {
			return device.AdjustLevel(s, adjustStep)
		})

	case key.Matches(msg, m.keys.Color):
		return m.changeSettings("color", func(s device.Settings) device.Settings {
			if light, ok := s.(device.LightSettings); ok {
				return device.NextColorTemp(light)
			}
			return s
		})
	}
	return m, nil
}

func (m *Model) moveCursor(delta int) {
	if m.focus == paneSidebar {
		m.sidebarRow = clampIndex(m.sidebarRow+delta, len(m.sidebarItems()))
		return
	}
	m.canvasRow = clampIndex(m.canvasRow+delta, len(m.snapshot.Devices))
}

// dropSelection replaces the canvas with the highlighted sidebar entry.
func (m Model) dropSelection() (tea.Model, tea.Cmd) {
	items := m.sidebarItems()
	if len(items) == 0 {
		return m, nil
	}
	item := items[clampIndex(m.sidebarRow, len(items))]
	m.focus = paneCanvas
	m.canvasRow = 0

	if item.presetID != "" {
		return m, m.runAction("drop preset", func(ctx context.Context) error {
			_, err := m.controller.DropPreset(ctx, item.presetID)
			return err
		})
	}
	return m, m.runAction("drop device", func(ctx context.Context) error {
		_, err := m.controller.DropDevice(ctx, item.deviceType)
		return err
	})
}

// changeSettings applies fn to the selected device. Controls of a
// switched-off device leave its settings unchanged, which sends nothing.
func (m Model) changeSettings(op string, fn func(device.Settings) device.Settings) (tea.Model, tea.Cmd) {
	d, ok := m.selectedDevice()
	if !ok {
		return m, nil
	}
	next := fn(d.Settings)
	if next == d.Settings {
		return m, nil
	}
	m.snapshot.Devices[m.canvasRow].Settings = next
	return m, m.runAction(op, func(ctx context.Context) error {
		return m.controller.UpdateDevice(ctx, d.ID, next)
	})
}

// openSave shows the naming prompt. An empty canvas goes straight to the
// controller, which reports why nothing can be saved.
func (m Model) openSave() (tea.Model, tea.Cmd) {
	if len(m.snapshot.Devices) == 0 {
		return m, m.runAction("save", func(ctx context.Context) error {
			_, err := m.controller.SavePreset(ctx, simulator.SaveRequest{})
			return err
		})
	}
	source, hasSource := m.snapshot.Preset(m.snapshot.SourcePreset)
	m.save = newSaveDialog(source, hasSource, m.prefs.Overwrite)
	return m, m.save.focus()
}
