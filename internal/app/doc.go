// Package app is the homesim composition root.
//
// Run loads the TOML configuration, opens the log file, builds the storage
// adapter selected by the storage mode (local files or the remote REST API),
// wraps it in a simulator.Controller and loads the initial devices and
// presets. It then either runs the Bubble Tea UI until the user quits or the
// context is cancelled, or performs a one-shot preset import or export.
//
// Load failures never stop startup: the controller records them as a notice
// and the UI shows it in the status line.
package app
