package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/five82/homesim/internal/device"
)

// Mode names a persistence backend.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
)

// ParseMode validates a configured storage mode.
func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case ModeLocal, ModeRemote:
		return m, nil
	case "":
		return ModeLocal, nil
	default:
		return "", fmt.Errorf("unknown storage mode %q", raw)
	}
}

// Store persists the device list and the preset list.
type Store interface {
	Mode() Mode

	LoadDevices(ctx context.Context) ([]device.Device, error)
	LoadPresets(ctx context.Context) ([]device.Preset, error)

	// SaveDevices persists the full list and returns it with server ids filled.
	SaveDevices(ctx context.Context, devices []device.Device) ([]device.Device, error)
	// DeleteDevice drops a device the store holds individually.
	DeleteDevice(ctx context.Context, d device.Device) error

	SavePresets(ctx context.Context, presets []device.Preset) ([]device.Preset, error)
	// SavePreset creates p and returns the record the store confirmed.
	SavePreset(ctx context.Context, p device.Preset) (device.Preset, error)
	// UpdatePreset replaces the preset identified by id.
	UpdatePreset(ctx context.Context, id string, p device.Preset) (device.Preset, error)
}
