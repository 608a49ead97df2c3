package local

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/five82/homesim/internal/device"
	"github.com/five82/homesim/internal/storage"
)

func sampleDevices() []device.Device {
	return []device.Device{
		{ID: "light-1", Type: device.TypeLight, Settings: device.LightSettings{Power: true, Brightness: 73, Color: "#E0F7FF"}},
		{ID: "fan-2", Name: "Ceiling", Type: device.TypeFan, Settings: device.FanSettings{Power: false, Speed: 12}},
	}
}

func TestLoad_MissingFilesReturnEmpty(t *testing.T) {
	s := New(t.TempDir(), nil)
	ctx := context.Background()

	devices, err := s.LoadDevices(ctx)
	if err != nil || devices == nil || len(devices) != 0 {
		t.Fatalf("LoadDevices = %v, %v; want empty non-nil", devices, err)
	}
	presets, err := s.LoadPresets(ctx)
	if err != nil || presets == nil || len(presets) != 0 {
		t.Fatalf("LoadPresets = %v, %v; want empty non-nil", presets, err)
	}
}

func TestLoad_CorruptFileReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	if err := os.WriteFile(s.Path(devicesKey), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(s.Path(presetsKey), []byte(`[{"id":"p","name":"x","devices":[{"id":"d","type":"toaster","settings":{}}]}]`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	devices, err := s.LoadDevices(context.Background())
	if err != nil || len(devices) != 0 {
		t.Fatalf("LoadDevices = %v, %v; want empty", devices, err)
	}
	presets, err := s.LoadPresets(context.Background())
	if err != nil || len(presets) != 0 {
		t.Fatalf("LoadPresets = %v, %v; want empty", presets, err)
	}
}

func TestSaveDevices_RoundTripIsByteIdentical(t *testing.T) {
	s := New(t.TempDir(), nil)
	ctx := context.Background()

	if _, err := s.SaveDevices(ctx, sampleDevices()); err != nil {
		t.Fatalf("SaveDevices: %v", err)
	}
	first, err := os.ReadFile(s.Path(devicesKey))
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	loaded, err := s.LoadDevices(ctx)
	if err != nil {
		t.Fatalf("LoadDevices: %v", err)
	}
	if _, err := s.SaveDevices(ctx, loaded); err != nil {
		t.Fatalf("SaveDevices: %v", err)
	}
	second, err := os.ReadFile(s.Path(devicesKey))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("round trip changed content:\n%s\n%s", first, second)
	}

	light := loaded[0].Settings.(device.LightSettings)
	if light.Brightness != 73 || light.Color != "#E0F7FF" {
		t.Fatalf("light settings = %+v", light)
	}
	if loaded[1].Name != "Ceiling" {
		t.Fatalf("fan name = %q, want Ceiling", loaded[1].Name)
	}
}

func TestSaveDevices_LeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	if _, err := s.SaveDevices(context.Background(), sampleDevices()); err != nil {
		t.Fatalf("SaveDevices: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("temp file %s left behind", e.Name())
		}
	}
}

func TestUnavailableMedium(t *testing.T) {
	s := New("", nil)
	ctx := context.Background()
	if _, err := s.SaveDevices(ctx, sampleDevices()); err != nil {
		t.Fatalf("SaveDevices: %v", err)
	}
	devices, err := s.LoadDevices(ctx)
	if err != nil || len(devices) != 0 {
		t.Fatalf("LoadDevices = %v, %v; want empty", devices, err)
	}
}

func TestSavePreset_AppendsAndReplaces(t *testing.T) {
	s := New(t.TempDir(), nil)
	ctx := context.Background()
	now := time.UnixMilli(1000)

	a := device.NewPreset("Evening", sampleDevices(), now)
	b := device.NewPreset("Morning", sampleDevices()[:1], now.Add(time.Second))
	for _, p := range []device.Preset{a, b} {
		if _, err := s.SavePreset(ctx, p); err != nil {
			t.Fatalf("SavePreset: %v", err)
		}
	}
	a.Name = "Late evening"
	if _, err := s.SavePreset(ctx, a); err != nil {
		t.Fatalf("SavePreset: %v", err)
	}

	presets, err := s.LoadPresets(ctx)
	if err != nil {
		t.Fatalf("LoadPresets: %v", err)
	}
	if len(presets) != 2 {
		t.Fatalf("len(presets) = %d, want 2", len(presets))
	}
	if presets[0].Name != "Late evening" || presets[1].Name != "Morning" {
		t.Fatalf("presets = %q, %q", presets[0].Name, presets[1].Name)
	}
	if len(presets[0].Devices) != 2 {
		t.Fatalf("devices = %d, want 2", len(presets[0].Devices))
	}
}

func TestUpdatePreset(t *testing.T) {
	s := New(t.TempDir(), nil)
	ctx := context.Background()
	p := device.NewPreset("Evening", sampleDevices(), time.UnixMilli(5))
	if _, err := s.SavePreset(ctx, p); err != nil {
		t.Fatalf("SavePreset: %v", err)
	}

	edited := p.Clone()
	edited.Devices = edited.Devices[:1]
	got, err := s.UpdatePreset(ctx, p.ID, edited)
	if err != nil {
		t.Fatalf("UpdatePreset: %v", err)
	}
	if got.ID != p.ID || len(got.Devices) != 1 {
		t.Fatalf("UpdatePreset = %+v", got)
	}

	_, err = s.UpdatePreset(ctx, "preset-404", edited)
	if !errors.Is(err, storage.ErrPresetNotFound) {
		t.Fatalf("UpdatePreset(missing) err = %v, want ErrPresetNotFound", err)
	}
}

func TestSavePresets_Upserts(t *testing.T) {
	s := New(t.TempDir(), nil)
	ctx := context.Background()
	one := device.NewPreset("One", sampleDevices(), time.UnixMilli(1))
	two := device.NewPreset("Two", nil, time.UnixMilli(2))
	if _, err := s.SavePreset(ctx, one); err != nil {
		t.Fatalf("SavePreset: %v", err)
	}

	one.Name = "One again"
	saved, err := s.SavePresets(ctx, []device.Preset{one, two})
	if err != nil {
		t.Fatalf("SavePresets: %v", err)
	}
	if len(saved) != 2 {
		t.Fatalf("len(saved) = %d, want 2", len(saved))
	}
	loaded, err := s.LoadPresets(ctx)
	if err != nil {
		t.Fatalf("LoadPresets: %v", err)
	}
	if len(loaded) != 2 || loaded[0].Name != "One again" || loaded[1].Name != "Two" {
		t.Fatalf("loaded = %+v", loaded)
	}
	if loaded[1].Devices == nil {
		t.Fatalf("nil devices should load as an empty list")
	}
}
