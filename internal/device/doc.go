// Package device defines the simulated devices and presets shared by every
// other homesim package.
//
// A Device carries a client-local ID used as the UI key, an optional ServerID
// assigned by the remote store, and a Settings variant that must match its
// Type:
//
//	light: LightSettings{Power, Brightness, Color}
//	fan:   FanSettings{Power, Speed}
//
// A Preset is a named, deep-copied snapshot of canvas devices. Dropping a
// preset back onto the canvas goes through Preset.CloneDevices, which assigns
// fresh IDs and clears server linkage.
//
// JSON encoding writes only the fields of the device's own type. Decoding
// rejects unknown types and non-object settings; values are never clamped,
// so brightness and speed round-trip exactly as stored.
package device
