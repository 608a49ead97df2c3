package device

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of simulated device.
type Type string

const (
	TypeLight Type = "light"
	TypeFan   Type = "fan"
)

var knownTypes = []Type{TypeLight, TypeFan}

// ErrUnknownType is returned when a device type is outside the supported set.
var ErrUnknownType = errors.New("unknown device type")

// Types returns the supported device types in palette order.
func Types() []Type {
	return append([]Type(nil), knownTypes...)
}

// ParseType normalizes raw and reports whether it names a supported type.
func ParseType(raw string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range knownTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, raw)
}

// Label returns a human readable name for the type.
func (t Type) Label() string {
	switch t {
	case TypeLight:
		return "Light"
	case TypeFan:
		return "Fan"
	default:
		return string(t)
	}
}

// Device is one simulated device on the canvas.
type Device struct {
	ID       string
	ServerID int64
	Name     string
	Type     Type
	Settings Settings
}

// New builds a device of type t with default settings.
func New(t Type, now time.Time) Device {
	return Device{
		ID:       fmt.Sprintf("%s-%d", t, now.UnixMilli()),
		Type:     t,
		Settings: DefaultSettings(t),
	}
}

// HasServerID reports whether the remote store has assigned an id.
func (d Device) HasServerID() bool {
	return d.ServerID > 0
}

// DisplayName returns the device name, falling back to the type label.
func (d Device) DisplayName() string {
	if name := strings.TrimSpace(d.Name); name != "" {
		return name
	}
	return d.Type.Label()
}

// Validate checks that the settings variant matches the device type.
func (d Device) Validate() error {
	if _, err := ParseType(string(d.Type)); err != nil {
		return err
	}
	if d.Settings == nil {
		return fmt.Errorf("device %s: settings missing", d.ID)
	}
	if d.Settings.Kind() != d.Type {
		return fmt.Errorf("device %s: %s settings on a %s", d.ID, d.Settings.Kind(), d.Type)
	}
	return nil
}

// Preset is a named snapshot of canvas devices.
type Preset struct {
	ID       string
	ServerID int64
	Name     string
	Devices  []Device
}

// NewPreset snapshots devices under name.
func NewPreset(name string, devices []Device, now time.Time) Preset {
	return Preset{
		ID:      fmt.Sprintf("preset-%d", now.UnixMilli()),
		Name:    strings.TrimSpace(name),
		Devices: Snapshot(devices),
	}
}

// HasServerID reports whether the remote store has assigned an id.
func (p Preset) HasServerID() bool {
	return p.ServerID > 0
}

// Clone returns a deep copy of the preset.
func (p Preset) Clone() Preset {
	p.Devices = Snapshot(p.Devices)
	return p
}

// CloneDevices returns canvas-ready copies of the preset devices. Every copy
// gets a fresh id and loses its server linkage so edits never touch the
// preset or its remote records.
func (p Preset) CloneDevices(now time.Time) []Device {
	out := make([]Device, 0, len(p.Devices))
	for _, d := range p.Devices {
		d.ID = cloneID(d.Type, now)
		d.ServerID = 0
		out = append(out, d)
	}
	return out
}

// Snapshot deep-copies a device list. Settings variants are value types, so a
// slice copy is enough to detach the result from the source.
func Snapshot(devices []Device) []Device {
	if devices == nil {
		return nil
	}
	out := make([]Device, len(devices))
	copy(out, devices)
	return out
}

// SnapshotPresets deep-copies a preset list.
func SnapshotPresets(presets []Preset) []Preset {
	if presets == nil {
		return nil
	}
	out := make([]Preset, len(presets))
	for i, p := range presets {
		out[i] = p.Clone()
	}
	return out
}

func cloneID(t Type, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%d-%s", t, now.UnixMilli(), suffix)
}
