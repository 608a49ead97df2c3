// Package local stores devices and presets as two JSON files in a data
// directory. It is the offline backend and never fails a load: anything it
// cannot read comes back as an empty list.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/five82/homesim/internal/device"
	"github.com/five82/homesim/internal/storage"
)

const (
	devicesKey = "homesim-devices"
	presetsKey = "homesim-presets"
)

// Store keeps each list under its own key in dir.
type Store struct {
	mu     sync.Mutex
	dir    string
	logger *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// New returns a store rooted at dir. An empty dir yields a store whose
// medium is unavailable: loads are empty and saves are dropped.
func New(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{dir: strings.TrimSpace(dir), logger: logger.With("component", "local-store")}
}

// Mode implements storage.Store.
func (s *Store) Mode() storage.Mode { return storage.ModeLocal }

// Path returns the file backing key.
func (s *Store) Path(key string) string {
	if s.dir == "" {
		return ""
	}
	return filepath.Join(s.dir, key+".json")
}

// LoadDevices implements storage.Store.
func (s *Store) LoadDevices(_ context.Context) ([]device.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readList[device.Device](s, devicesKey), nil
}

// LoadPresets implements storage.Store.
func (s *Store) LoadPresets(_ context.Context) ([]device.Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadPresetsLocked(), nil
}

// SaveDevices overwrites the device record with the full list.
func (s *Store) SaveDevices(_ context.Context, devices []device.Device) ([]device.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if devices == nil {
		devices = []device.Device{}
	}
	if err := s.write(devicesKey, devices); err != nil {
		return nil, err
	}
	return device.Snapshot(devices), nil
}

// DeleteDevice is a no-op: the next SaveDevices rewrites the whole list.
func (s *Store) DeleteDevice(context.Context, device.Device) error { return nil }

// SavePresets upserts every preset by id, keeping the stored order.
func (s *Store) SavePresets(_ context.Context, presets []device.Preset) ([]device.Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.loadPresetsLocked()
	for _, p := range presets {
		stored = upsertPreset(stored, p)
	}
	if err := s.write(presetsKey, stored); err != nil {
		return nil, err
	}
	out := device.SnapshotPresets(presets)
	if out == nil {
		out = []device.Preset{}
	}
	return out, nil
}

// SavePreset appends p, replacing any record with the same id.
func (s *Store) SavePreset(_ context.Context, p device.Preset) (device.Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	presets := upsertPreset(s.loadPresetsLocked(), p)
	if err := s.write(presetsKey, presets); err != nil {
		return device.Preset{}, err
	}
	return p.Clone(), nil
}

// UpdatePreset replaces the preset stored under id.
func (s *Store) UpdatePreset(_ context.Context, id string, p device.Preset) (device.Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	presets := s.loadPresetsLocked()
	for i := range presets {
		if presets[i].ID != id {
			continue
		}
		p = p.Clone()
		p.ID = id
		presets[i] = p
		if err := s.write(presetsKey, presets); err != nil {
			return device.Preset{}, err
		}
		return p.Clone(), nil
	}
	return device.Preset{}, fmt.Errorf("update preset %s: %w", id, storage.ErrPresetNotFound)
}

func (s *Store) loadPresetsLocked() []device.Preset {
	return readList[device.Preset](s, presetsKey)
}

// readList decodes the list stored under key. Any failure yields an empty
// list.
func readList[T any](s *Store, key string) []T {
	path := s.Path(key)
	if path == "" {
		return []T{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("read failed, using empty list", "key", key, "err", err)
		}
		return []T{}
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		s.logger.Warn("corrupt record, using empty list", "key", key, "path", path, "err", err)
		return []T{}
	}
	if out == nil {
		return []T{}
	}
	return out
}

func (s *Store) write(key string, v any) error {
	path := s.Path(key)
	if path == "" {
		s.logger.Debug("storage unavailable, dropping write", "key", key)
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", key, err)
	}
	return nil
}

func upsertPreset(presets []device.Preset, p device.Preset) []device.Preset {
	for i := range presets {
		if presets[i].ID == p.ID {
			presets[i] = p.Clone()
			return presets
		}
	}
	return append(presets, p.Clone())
}
