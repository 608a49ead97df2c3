package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/five82/homesim/internal/device"
	"github.com/five82/homesim/internal/state"
	"github.com/five82/homesim/internal/storage"
)

var (
	// ErrNoDevices is returned when saving an empty canvas.
	ErrNoDevices = errors.New("add some devices first")
	// ErrEmptyName is returned when a preset name is blank.
	ErrEmptyName = errors.New("preset name is required")
	// ErrSaveInFlight is returned while another save is running.
	ErrSaveInFlight = errors.New("a save is already in progress")
	// ErrDeviceNotFound is returned for an unknown device id.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrSettingsMismatch is returned when settings do not fit the device type.
	ErrSettingsMismatch = errors.New("settings do not match device type")
)

// Controller applies user actions to the shared state and persists them.
type Controller struct {
	store  storage.Store
	state  *state.Store
	logger *slog.Logger
	now    func() time.Time

	// persistMu serializes device writes so bursts of updates never race
	// each other into duplicate creates.
	persistMu sync.Mutex
}

// New builds a Controller. A nil state store gets a fresh one.
func New(store storage.Store, st *state.Store, logger *slog.Logger) *Controller {
	if st == nil {
		st = &state.Store{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{
		store:  store,
		state:  st,
		logger: logger.With("component", "controller"),
		now:    time.Now,
	}
}

// State returns the shared state store.
func (c *Controller) State() *state.Store { return c.state }

// Mode reports which storage backend is in use.
func (c *Controller) Mode() storage.Mode { return c.store.Mode() }

// Load replaces devices and presets with what storage holds. Each list that
// fails to load is left as it was and reported through the notice.
func (c *Controller) Load(ctx context.Context) error {
	devices, devErr := c.store.LoadDevices(ctx)
	presets, presetErr := c.store.LoadPresets(ctx)

	c.state.Mutate(func(s *state.Snapshot) {
		if devErr == nil {
			s.Devices = devices
		}
		if presetErr == nil {
			s.Presets = presets
		}
	})

	err := errors.Join(wrapLoad("devices", devErr), wrapLoad("presets", presetErr))
	c.state.RecordResult(err)
	if err != nil {
		c.logger.Error("load failed", "mode", c.store.Mode(), "err", err)
		c.state.SetNotice(state.LevelError, "Could not load: "+loadMessage(devErr, presetErr))
		return err
	}
	c.logger.Info("loaded", "mode", c.store.Mode(), "devices", len(devices), "presets", len(presets))
	return nil
}

func wrapLoad(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("load %s: %w", what, err)
}

func loadMessage(errs ...error) string {
	var parts []string
	for _, err := range errs {
		if err != nil {
			parts = append(parts, storage.Message(err))
		}
	}
	return strings.Join(parts, "; ")
}

// DropDevice replaces the canvas with a single new device of type t.
func (c *Controller) DropDevice(ctx context.Context, t device.Type) (device.Device, error) {
	t, err := device.ParseType(string(t))
	if err != nil {
		return device.Device{}, err
	}
	d := device.New(t, c.now())

	var removed []device.Device
	c.state.Mutate(func(s *state.Snapshot) {
		removed = s.Devices
		s.Devices = []device.Device{d}
		s.SourcePreset = ""
	})
	c.logger.Info("device dropped", "device", d.ID, "type", t)
	return d, c.persistDevices(ctx, removed)
}

// DropPreset replaces the canvas with fresh copies of a preset's devices.
func (c *Controller) DropPreset(ctx context.Context, presetID string) ([]device.Device, error) {
	var (
		removed []device.Device
		devices []device.Device
		found   bool
	)
	now := c.now()
	c.state.Mutate(func(s *state.Snapshot) {
		p, ok := s.Preset(presetID)
		if !ok {
			return
		}
		found = true
		removed = s.Devices
		devices = p.CloneDevices(now)
		s.Devices = devices
		s.SourcePreset = p.ID
	})
	if !found {
		return nil, fmt.Errorf("drop preset %s: %w", presetID, storage.ErrPresetNotFound)
	}
	c.logger.Info("preset dropped", "preset", presetID, "devices", len(devices))
	return device.Snapshot(devices), c.persistDevices(ctx, removed)
}

// UpdateDevice replaces the settings of one device.
func (c *Controller) UpdateDevice(ctx context.Context, id string, settings device.Settings) error {
	var err error
	c.state.Mutate(func(s *state.Snapshot) {
		i := s.DeviceIndex(id)
		if i < 0 {
			err = fmt.Errorf("update device %s: %w", id, ErrDeviceNotFound)
			return
		}
		if settings == nil || settings.Kind() != s.Devices[i].Type {
			err = fmt.Errorf("update device %s: %w", id, ErrSettingsMismatch)
			return
		}
		s.Devices[i].Settings = settings
	})
	if err != nil {
		return err
	}
	return c.persistDevices(ctx, nil)
}

// RemoveDevice drops one device from the canvas.
func (c *Controller) RemoveDevice(ctx context.Context, id string) error {
	var removed []device.Device
	c.state.Mutate(func(s *state.Snapshot) {
		i := s.DeviceIndex(id)
		if i < 0 {
			return
		}
		removed = []device.Device{s.Devices[i]}
		s.Devices = append(device.Snapshot(s.Devices[:i]), s.Devices[i+1:]...)
	})
	if removed == nil {
		return fmt.Errorf("remove device %s: %w", id, ErrDeviceNotFound)
	}
	return c.persistDevices(ctx, removed)
}

// ClearAll empties the canvas.
func (c *Controller) ClearAll(ctx context.Context) error {
	var removed []device.Device
	c.state.Mutate(func(s *state.Snapshot) {
		removed = s.Devices
		s.Devices = []device.Device{}
		s.SourcePreset = ""
	})
	return c.persistDevices(ctx, removed)
}

// persistDevices deletes removed server records and saves the current
// canvas. Server ids in the result are merged back by client id.
func (c *Controller) persistDevices(ctx context.Context, removed []device.Device) error {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	var errs []error
	for _, d := range removed {
		if !d.HasServerID() {
			continue
		}
		if err := c.store.DeleteDevice(ctx, d); err != nil {
			c.logger.Warn("delete device failed", "device", d.ID, "server_id", d.ServerID, "err", err)
			errs = append(errs, err)
		}
	}

	current := c.state.Snapshot().Devices
	saved, err := c.store.SaveDevices(ctx, current)
	if err != nil {
		errs = append(errs, err)
	}

	// A device removed while its create was in flight was captured without
	// a server id; its record only exists now.
	for _, d := range c.mergeServerIDs(saved) {
		if err := c.store.DeleteDevice(ctx, d); err != nil {
			c.logger.Warn("delete orphaned device failed", "device", d.ID, "server_id", d.ServerID, "err", err)
			errs = append(errs, err)
			continue
		}
		c.logger.Info("orphaned device deleted", "device", d.ID, "server_id", d.ServerID)
	}

	err = errors.Join(errs...)
	c.state.RecordResult(err)
	if err != nil {
		c.logger.Error("persist devices failed", "mode", c.store.Mode(), "err", err)
		c.state.SetNotice(state.LevelError, "Could not save devices: "+storage.Message(errs[len(errs)-1]))
	}
	return err
}

// mergeServerIDs copies server ids onto canvas devices by client id and
// returns the saved devices that are no longer on the canvas.
func (c *Controller) mergeServerIDs(saved []device.Device) []device.Device {
	var orphans []device.Device
	c.state.Mutate(func(s *state.Snapshot) {
		for _, d := range saved {
			if !d.HasServerID() {
				continue
			}
			i := s.DeviceIndex(d.ID)
			if i < 0 {
				orphans = append(orphans, d)
				continue
			}
			s.Devices[i].ServerID = d.ServerID
		}
	})
	return orphans
}
