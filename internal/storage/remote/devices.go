package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/five82/homesim/internal/device"
)

// LoadDevices fetches every device. Malformed records are skipped.
func (s *Store) LoadDevices(ctx context.Context) ([]device.Device, error) {
	body, err := s.call(ctx, "load devices", http.MethodGet, "devices", nil)
	if err != nil {
		return nil, err
	}
	items, err := decodeList(unwrap(body))
	if err != nil {
		return nil, fmt.Errorf("load devices: %w", err)
	}
	devices := make([]device.Device, 0, len(items))
	for _, raw := range items {
		d, err := decodeDevice(raw)
		if err != nil {
			s.logger.Warn("skipping malformed device record", "err", err)
			continue
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// SaveDevice creates d and returns it with the server id attached. The
// client id is kept so the canvas key stays stable. A 2xx response that
// cannot be parsed is treated as an empty payload.
func (s *Store) SaveDevice(ctx context.Context, d device.Device) (device.Device, error) {
	payload, err := newDevicePayload(d)
	if err != nil {
		return d, fmt.Errorf("save device: %w", err)
	}
	body, err := s.call(ctx, "save device", http.MethodPost, "devices", payload)
	if err != nil {
		return d, err
	}
	var rec deviceRecord
	if err := json.Unmarshal(unwrap(body), &rec); err != nil {
		s.logger.Warn("save device response was not JSON", "device", d.ID, "err", err)
		return d, nil
	}
	if rec.ID > 0 {
		d.ServerID = rec.ID
	}
	return d, nil
}

// UpdateDevice replaces the server record of d. Nothing downstream needs
// the response, so any 2xx body, empty or not, counts as success.
func (s *Store) UpdateDevice(ctx context.Context, d device.Device) (device.Device, error) {
	if !d.HasServerID() {
		return d, fmt.Errorf("update device %s: no server id", d.ID)
	}
	payload, err := newDevicePayload(d)
	if err != nil {
		return d, fmt.Errorf("update device: %w", err)
	}
	if _, err := s.call(ctx, "update device", http.MethodPut, "devices/"+strconv.FormatInt(d.ServerID, 10), payload); err != nil {
		return d, err
	}
	return d, nil
}

// DeleteDevice removes the server record of d. Devices that were never
// persisted are ignored.
func (s *Store) DeleteDevice(ctx context.Context, d device.Device) error {
	if !d.HasServerID() {
		return nil
	}
	_, err := s.call(ctx, "delete device", http.MethodDelete, "devices/"+strconv.FormatInt(d.ServerID, 10), nil)
	return err
}

// SaveDevices creates new devices and updates linked ones, one request at a
// time. On failure the returned list still carries every server id assigned
// before the failing device.
func (s *Store) SaveDevices(ctx context.Context, devices []device.Device) ([]device.Device, error) {
	out := device.Snapshot(devices)
	for i, d := range out {
		var err error
		if d.HasServerID() {
			out[i], err = s.UpdateDevice(ctx, d)
		} else {
			out[i], err = s.SaveDevice(ctx, d)
		}
		if err != nil {
			return out, err
		}
	}
	if out == nil {
		out = []device.Device{}
	}
	return out, nil
}
