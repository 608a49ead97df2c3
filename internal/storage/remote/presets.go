package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/five82/homesim/internal/device"
	"github.com/five82/homesim/internal/storage"
)

// LoadPresets fetches every preset. A preset with a malformed device is
// skipped whole.
func (s *Store) LoadPresets(ctx context.Context) ([]device.Preset, error) {
	body, err := s.call(ctx, "load presets", http.MethodGet, "presets", nil)
	if err != nil {
		return nil, err
	}
	items, err := decodeList(unwrap(body))
	if err != nil {
		return nil, fmt.Errorf("load presets: %w", err)
	}
	presets := make([]device.Preset, 0, len(items))
	for _, raw := range items {
		p, err := decodePreset(raw)
		if err != nil {
			s.logger.Warn("skipping malformed preset record", "err", err)
			continue
		}
		presets = append(presets, p)
	}
	return presets, nil
}

// SavePreset creates p and confirms it by reloading the preset list. When
// the write cannot be confirmed the best-known preset is returned with a
// *storage.NotPersistedError.
func (s *Store) SavePreset(ctx context.Context, p device.Preset) (device.Preset, error) {
	payload, err := newPresetPayload(p)
	if err != nil {
		return p, fmt.Errorf("save preset: %w", err)
	}
	body, err := s.call(ctx, "save preset", http.MethodPost, "presets", payload)
	if err != nil {
		return p, err
	}

	written := p.Clone()
	written.ServerID = 0
	if rec, err := decodePreset(unwrap(body)); err == nil {
		written = rec
	} else {
		s.logger.Warn("save preset response unusable", "preset", p.Name, "err", err)
		// A record that at least carries an id can still be reconciled.
		if id := responseID(body); id > 0 {
			written.ServerID = id
			written.ID = presetID(id)
		}
	}
	return s.reconcile(ctx, "save preset", written)
}

// UpdatePreset replaces the server record behind id. The target is the
// preset's server id, or id itself when it is numeric.
func (s *Store) UpdatePreset(ctx context.Context, id string, p device.Preset) (device.Preset, error) {
	serverID := p.ServerID
	if serverID <= 0 {
		if n, err := strconv.ParseInt(id, 10, 64); err == nil && n > 0 {
			serverID = n
		}
	}
	if serverID <= 0 {
		return p, fmt.Errorf("update preset %s: %w", id, storage.ErrNotLinked)
	}

	payload, err := newPresetPayload(p)
	if err != nil {
		return p, fmt.Errorf("update preset: %w", err)
	}
	body, err := s.call(ctx, "update preset", http.MethodPut, "presets/"+strconv.FormatInt(serverID, 10), payload)
	if err != nil {
		return p, err
	}

	written := p.Clone()
	written.ServerID = serverID
	written.ID = presetID(serverID)
	if !json.Valid(body) {
		return p, fmt.Errorf("update preset %d: response is not JSON", serverID)
	}
	if rec, err := decodePreset(unwrap(body)); err == nil {
		written = rec
	}
	return s.reconcile(ctx, "update preset", written)
}

// SavePresets creates each preset in order. Unconfirmed writes are collected
// and returned together after the last preset; any other failure stops the
// import.
func (s *Store) SavePresets(ctx context.Context, presets []device.Preset) ([]device.Preset, error) {
	out := make([]device.Preset, 0, len(presets))
	var warnings []error
	for _, p := range presets {
		saved, err := s.SavePreset(ctx, p)
		var notPersisted *storage.NotPersistedError
		switch {
		case err == nil:
		case errors.As(err, &notPersisted):
			warnings = append(warnings, err)
		default:
			return out, err
		}
		out = append(out, saved)
	}
	return out, errors.Join(warnings...)
}

// reconcile reloads the preset list and looks for the written record.
func (s *Store) reconcile(ctx context.Context, op string, written device.Preset) (device.Preset, error) {
	if !written.HasServerID() {
		return written, &storage.NotPersistedError{Op: op}
	}
	presets, err := s.LoadPresets(ctx)
	if err != nil {
		return written, &storage.NotPersistedError{Op: op, ServerID: written.ServerID, Err: err}
	}
	for _, p := range presets {
		if p.ServerID == written.ServerID {
			return p, nil
		}
	}
	s.logger.Warn("written preset missing after reload", "op", op, "server_id", written.ServerID)
	return written, &storage.NotPersistedError{Op: op, ServerID: written.ServerID}
}
