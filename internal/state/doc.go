// Package state holds the simulator's shared, mutex-protected snapshot.
//
// The controller mutates the snapshot as it handles user actions and storage
// results; the UI reads deep copies on every render. Both sides may run on
// different goroutines, so every access goes through Store.
//
// Mutate applies one transition atomically:
//
//	store.Mutate(func(s *state.Snapshot) {
//		s.Devices = []device.Device{d}
//		s.SourcePreset = ""
//	})
//
// Snapshot clones the device and preset lists, so callers may edit what they
// receive without affecting the store.
//
// Saving is a flag rather than a lock. BeginSave reports whether the caller
// won the right to save; the UI disables its confirm action while Saving is
// set.
package state
