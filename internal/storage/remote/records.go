package remote

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/five82/homesim/internal/device"
)

// unwrap returns the value under "data" when the body is an envelope with a
// non-null data key, and the body itself otherwise.
func unwrap(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return trimmed
	}
	data, ok := env["data"]
	if !ok || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return trimmed
	}
	return data
}

// deviceRecord is a device as the API sends it.
type deviceRecord struct {
	ID       int64           `json:"id"`
	Type     string          `json:"type"`
	Name     string          `json:"name,omitempty"`
	Settings json.RawMessage `json:"settings"`
}

type presetRecord struct {
	ID      int64             `json:"id"`
	Name    string            `json:"name"`
	Devices []json.RawMessage `json:"devices"`
}

// devicePayload is the request body for device writes and preset members.
type devicePayload struct {
	Type     device.Type     `json:"type"`
	Name     string          `json:"name,omitempty"`
	Settings device.Settings `json:"settings"`
}

type presetPayload struct {
	Name    string          `json:"name"`
	Devices []devicePayload `json:"devices"`
}

func newDevicePayload(d device.Device) (devicePayload, error) {
	if err := d.Validate(); err != nil {
		return devicePayload{}, err
	}
	return devicePayload{Type: d.Type, Name: d.Name, Settings: d.Settings}, nil
}

func newPresetPayload(p device.Preset) (presetPayload, error) {
	out := presetPayload{Name: p.Name, Devices: make([]devicePayload, 0, len(p.Devices))}
	for _, d := range p.Devices {
		dp, err := newDevicePayload(d)
		if err != nil {
			return presetPayload{}, err
		}
		out.Devices = append(out.Devices, dp)
	}
	return out, nil
}

// decodeDevice remaps a server record to a device keyed "{type}-{id}".
func decodeDevice(raw json.RawMessage) (device.Device, error) {
	d, err := decodeRecord(raw)
	if err != nil {
		return device.Device{}, err
	}
	if !d.HasServerID() {
		return device.Device{}, fmt.Errorf("device record has no id")
	}
	return d, nil
}

// decodeMember decodes a device stored inside a preset. Members may come
// back without ids; those get "{type}-p{presetId}-{n}" and no server id.
func decodeMember(raw json.RawMessage, presetServerID int64, n int) (device.Device, error) {
	d, err := decodeRecord(raw)
	if err != nil {
		return device.Device{}, err
	}
	if !d.HasServerID() {
		d.ID = fmt.Sprintf("%s-p%d-%d", d.Type, presetServerID, n)
	}
	return d, nil
}

func decodeRecord(raw json.RawMessage) (device.Device, error) {
	var rec deviceRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return device.Device{}, fmt.Errorf("decode device: %w", err)
	}
	if rec.ID < 0 {
		return device.Device{}, fmt.Errorf("device record has a negative id")
	}
	t, err := device.ParseType(rec.Type)
	if err != nil {
		return device.Device{}, fmt.Errorf("device %d: %w", rec.ID, err)
	}
	settings, err := device.DecodeSettings(t, rec.Settings)
	if err != nil {
		return device.Device{}, fmt.Errorf("device %d: %w", rec.ID, err)
	}
	d := device.Device{
		ServerID: rec.ID,
		Name:     rec.Name,
		Type:     t,
		Settings: settings,
	}
	if rec.ID > 0 {
		d.ID = fmt.Sprintf("%s-%d", t, rec.ID)
	}
	return d, nil
}

// decodePreset remaps a server record to a preset keyed "preset-{id}". A
// preset with any malformed device is rejected whole.
func decodePreset(raw json.RawMessage) (device.Preset, error) {
	var rec presetRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return device.Preset{}, fmt.Errorf("decode preset: %w", err)
	}
	if rec.ID <= 0 {
		return device.Preset{}, fmt.Errorf("preset record has no id")
	}
	p := device.Preset{
		ID:       presetID(rec.ID),
		ServerID: rec.ID,
		Name:     rec.Name,
		Devices:  make([]device.Device, 0, len(rec.Devices)),
	}
	for i, rawDevice := range rec.Devices {
		d, err := decodeMember(rawDevice, rec.ID, i+1)
		if err != nil {
			return device.Preset{}, fmt.Errorf("preset %d device %d: %w", rec.ID, i, err)
		}
		p.Devices = append(p.Devices, d)
	}
	return p, nil
}

// decodeList splits a list payload into its elements. A missing or null
// payload is an empty list.
func decodeList(payload json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("expected a list: %w", err)
	}
	return items, nil
}

// responseID extracts a bare id from a write response.
func responseID(body []byte) int64 {
	var rec struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(unwrap(body), &rec); err != nil {
		return 0
	}
	return rec.ID
}

func presetID(serverID int64) string {
	return fmt.Sprintf("preset-%d", serverID)
}
