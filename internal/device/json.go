package device

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

type deviceJSON struct {
	ID       string          `json:"id"`
	ServerID int64           `json:"serverId,omitempty"`
	Name     string          `json:"name,omitempty"`
	Type     Type            `json:"type"`
	Settings json.RawMessage `json:"settings"`
}

type presetJSON struct {
	ID       string   `json:"id"`
	ServerID int64    `json:"serverId,omitempty"`
	Name     string   `json:"name"`
	Devices  []Device `json:"devices"`
}

// settingsJSON accepts the union of every variant's fields.
type settingsJSON struct {
	Power      *bool   `json:"power"`
	Brightness *int    `json:"brightness"`
	Color      *string `json:"color"`
	Speed      *int    `json:"speed"`
}

// MarshalJSON encodes the device with only its own type's settings fields.
func (d Device) MarshalJSON() ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	settings, err := json.Marshal(d.Settings)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	return json.Marshal(deviceJSON{
		ID:       d.ID,
		ServerID: d.ServerID,
		Name:     d.Name,
		Type:     d.Type,
		Settings: settings,
	})
}

// UnmarshalJSON decodes a device and rejects unknown types or settings that
// are not an object.
func (d *Device) UnmarshalJSON(data []byte) error {
	var wire deviceJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	t, err := ParseType(string(wire.Type))
	if err != nil {
		return err
	}
	settings, err := DecodeSettings(t, wire.Settings)
	if err != nil {
		return err
	}
	*d = Device{
		ID:       wire.ID,
		ServerID: wire.ServerID,
		Name:     wire.Name,
		Type:     t,
		Settings: settings,
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p Preset) MarshalJSON() ([]byte, error) {
	devices := p.Devices
	if devices == nil {
		devices = []Device{}
	}
	return json.Marshal(presetJSON{ID: p.ID, ServerID: p.ServerID, Name: p.Name, Devices: devices})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Preset) UnmarshalJSON(data []byte) error {
	var wire presetJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*p = Preset(wire)
	return nil
}

// ErrSettingsMissing is returned when a record carries no settings object.
var ErrSettingsMissing = errors.New("settings missing")

// DecodeSettings builds the settings variant for t from a JSON object.
// Fields belonging to other types are dropped and missing fields take the
// type's defaults.
func DecodeSettings(t Type, raw json.RawMessage) (Settings, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ErrSettingsMissing
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("settings must be an object")
	}
	var wire settingsJSON
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}

	switch t {
	case TypeLight:
		s := DefaultSettings(TypeLight).(LightSettings)
		if wire.Power != nil {
			s.Power = *wire.Power
		}
		if wire.Brightness != nil {
			s.Brightness = *wire.Brightness
		}
		if wire.Color != nil {
			s.Color = *wire.Color
		}
		return s, nil
	case TypeFan:
		s := DefaultSettings(TypeFan).(FanSettings)
		if wire.Power != nil {
			s.Power = *wire.Power
		}
		if wire.Speed != nil {
			s.Speed = *wire.Speed
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
}
