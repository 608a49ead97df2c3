// Package simulator implements the canvas controller: dropping devices and
// presets, editing settings and saving presets.
//
// Each action is one state transition on the shared state.Store followed by
// persistence through a storage.Store. Failures never undo a device edit;
// they are logged, recorded as the status notice and returned so the caller
// can retry. Preset saves are the exception: the optimistic preset entry is
// rolled back when storage rejects it.
package simulator
