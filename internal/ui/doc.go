// Package ui renders the homesim simulator as a Bubble Tea program.
//
// # Package Structure
//
//   - app.go: Model, Update/View dispatch, frame ticks and Run
//   - simulator.go: sidebar and canvas navigation, device actions
//   - canvas.go: sidebar, canvas and device card rendering
//   - save.go: the save-preset dialog and its overwrite toggle
//   - logs.go: log tail view with follow mode and regex search
//   - header.go: header and status bar
//   - help.go, keys.go: key bindings and the help overlay
//   - theme.go, layout.go, strings.go: palette, sizes and text helpers
//
// # Interaction Model
//
// Drag and drop becomes select-and-drop: the sidebar lists device types and
// saved presets, and enter replaces the canvas with the selection. Device
// keys always act on the selected canvas card. Every storage call runs as a
// tea.Cmd so the UI stays responsive; the result arrives as a message and
// the model re-reads the shared state snapshot.
//
// While a preset save is in flight the dialog shows "Saving…" and the confirm
// key is ignored.
//
// # Animation
//
// A single frame tick drives the fan spinners and the log refresh. Lights
// have no animation; their glow colour is blended from the card surface
// toward the light colour by brightness.
package ui
