package simulator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/five82/homesim/internal/device"
	"github.com/five82/homesim/internal/state"
	"github.com/five82/homesim/internal/storage"
)

// SaveRequest names the preset being saved.
type SaveRequest struct {
	Name string
	// Overwrite replaces the preset the canvas was dropped from instead of
	// creating a new one.
	Overwrite bool
}

// SaveResult describes a finished save.
type SaveResult struct {
	Preset  device.Preset
	Updated bool
	// Warning is set when storage accepted the write but could not confirm it.
	Warning error
}

// SavePreset snapshots the canvas into a preset. The preset list changes
// optimistically, is swapped for the stored record on success and rolled
// back on failure. Unconfirmed writes are kept and reported as a warning.
func (c *Controller) SavePreset(ctx context.Context, req SaveRequest) (SaveResult, error) {
	name := strings.TrimSpace(req.Name)
	snap := c.state.Snapshot()
	if len(snap.Devices) == 0 {
		c.state.SetNotice(state.LevelError, "Add some devices first!")
		return SaveResult{}, ErrNoDevices
	}
	if name == "" {
		c.state.SetNotice(state.LevelError, "Preset name is required")
		return SaveResult{}, ErrEmptyName
	}
	if !c.state.BeginSave() {
		return SaveResult{}, ErrSaveInFlight
	}
	defer c.state.EndSave()

	source, hasSource := snap.Preset(snap.SourcePreset)
	update := req.Overwrite && hasSource

	var optimistic device.Preset
	if update {
		optimistic = source.Clone()
		optimistic.Name = name
		optimistic.Devices = device.Snapshot(snap.Devices)
	} else {
		optimistic = device.NewPreset(name, snap.Devices, c.now())
	}

	c.state.Mutate(func(s *state.Snapshot) {
		if update {
			replacePreset(s, source.ID, optimistic)
			return
		}
		s.Presets = append(s.Presets, optimistic.Clone())
	})

	var (
		confirmed device.Preset
		err       error
	)
	if update {
		confirmed, err = c.store.UpdatePreset(ctx, source.ID, optimistic)
	} else {
		confirmed, err = c.store.SavePreset(ctx, optimistic)
	}

	var notPersisted *storage.NotPersistedError
	switch {
	case err == nil:
	case errors.As(err, &notPersisted):
		c.logger.Warn("preset save unconfirmed", "preset", confirmed.ID, "err", err)
	default:
		c.state.Mutate(func(s *state.Snapshot) {
			if update {
				replacePreset(s, optimistic.ID, source)
				return
			}
			removePreset(s, optimistic.ID)
		})
		c.state.RecordResult(err)
		c.logger.Error("preset save failed", "preset", name, "update", update, "err", err)
		c.state.SetNotice(state.LevelError, "Could not save preset: "+storage.Message(err))
		return SaveResult{}, fmt.Errorf("save preset %q: %w", name, err)
	}

	c.state.Mutate(func(s *state.Snapshot) {
		replacePreset(s, optimistic.ID, confirmed)
		s.SourcePreset = confirmed.ID
	})
	c.state.RecordResult(nil)

	result := SaveResult{Preset: confirmed.Clone(), Updated: update}
	if notPersisted != nil {
		result.Warning = err
		c.state.SetNotice(state.LevelWarning, storage.Message(err))
		return result, nil
	}
	verb := "saved"
	if update {
		verb = "updated"
	}
	c.logger.Info("preset "+verb, "preset", confirmed.ID, "server_id", confirmed.ServerID, "devices", len(confirmed.Devices))
	c.state.SetNotice(state.LevelSuccess, fmt.Sprintf("Preset %q %s", confirmed.Name, verb))
	return result, nil
}

// ImportPresets stores copies of presets as new records and appends them to
// the preset list. It returns how many were added.
func (c *Controller) ImportPresets(ctx context.Context, presets []device.Preset) (int, error) {
	if len(presets) == 0 {
		return 0, nil
	}
	base := c.now().UnixMilli()
	incoming := make([]device.Preset, 0, len(presets))
	for i, p := range presets {
		p = p.Clone()
		p.ID = fmt.Sprintf("preset-%d", base+int64(i))
		p.ServerID = 0
		for j := range p.Devices {
			p.Devices[j].ServerID = 0
		}
		incoming = append(incoming, p)
	}

	saved, err := c.store.SavePresets(ctx, incoming)
	if len(saved) > 0 {
		c.state.Mutate(func(s *state.Snapshot) {
			s.Presets = append(s.Presets, saved...)
		})
	}
	switch {
	case err == nil:
		c.state.SetNotice(state.LevelSuccess, fmt.Sprintf("Imported %d presets", len(saved)))
	case storage.Classify(err) == storage.KindNotPersisted:
		c.state.SetNotice(state.LevelWarning, storage.Message(err))
	default:
		c.state.SetNotice(state.LevelError, "Import failed: "+storage.Message(err))
	}
	c.logger.Info("presets imported", "requested", len(presets), "saved", len(saved), "err", err)
	return len(saved), err
}

// ExportPresets returns a copy of every known preset.
func (c *Controller) ExportPresets() []device.Preset {
	presets := c.state.Snapshot().Presets
	if presets == nil {
		return []device.Preset{}
	}
	return presets
}

func replacePreset(s *state.Snapshot, id string, p device.Preset) {
	for i := range s.Presets {
		if s.Presets[i].ID == id {
			s.Presets[i] = p.Clone()
			return
		}
	}
	s.Presets = append(s.Presets, p.Clone())
}

func removePreset(s *state.Snapshot, id string) {
	out := s.Presets[:0:0]
	for _, p := range s.Presets {
		if p.ID != id {
			out = append(out, p)
		}
	}
	s.Presets = out
}
