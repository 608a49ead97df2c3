package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/five82/homesim/internal/device"
)

// Level grades a notice shown on the status line.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notice is the latest user-facing message.
type Notice struct {
	Level Level
	Text  string
	At    time.Time
}

// Snapshot represents the canvas, the preset list and save progress.
type Snapshot struct {
	Devices []device.Device
	Presets []device.Preset
	// SourcePreset is the id of the preset the canvas was dropped from.
	SourcePreset string
	Saving       bool
	Notice       Notice
	LastUpdated  time.Time
	LastError    error
	// ConsecutiveFailures counts storage failures since the last success.
	ConsecutiveFailures int
}

// IsOffline returns true when storage has failed repeatedly.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Preset returns the preset with the given id.
func (s Snapshot) Preset(id string) (device.Preset, bool) {
	for _, p := range s.Presets {
		if p.ID == id {
			return p, true
		}
	}
	return device.Preset{}, false
}

// DeviceIndex returns the canvas position of id, or -1.
func (s Snapshot) DeviceIndex(id string) int {
	for i, d := range s.Devices {
		if d.ID == id {
			return i
		}
	}
	return -1
}

// Store coordinates concurrent access to the snapshot. The zero value is
// ready to use.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// Mutate applies fn to the stored snapshot under the write lock. fn must not
// keep references to the snapshot's slices.
func (s *Store) Mutate(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.snapshot)
	s.snapshot.LastUpdated = time.Now()
}

// BeginSave marks a save in flight. It returns false when one already is.
func (s *Store) BeginSave() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot.Saving {
		return false
	}
	s.snapshot.Saving = true
	return true
}

// EndSave clears the in-flight flag.
func (s *Store) EndSave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Saving = false
}

// SetNotice replaces the status line message.
func (s *Store) SetNotice(level Level, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Notice = Notice{Level: level, Text: text, At: time.Now()}
}

// RecordResult tracks storage health. A nil err resets the failure count.
func (s *Store) RecordResult(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.ConsecutiveFailures++
		return
	}
	s.snapshot.LastError = nil
	s.snapshot.ConsecutiveFailures = 0
}

// Snapshot returns a deep copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Devices = device.Snapshot(s.snapshot.Devices)
	snap.Presets = device.SnapshotPresets(s.snapshot.Presets)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}
