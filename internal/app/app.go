package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/five82/homesim/internal/config"
	"github.com/five82/homesim/internal/device"
	"github.com/five82/homesim/internal/logging"
	"github.com/five82/homesim/internal/prefs"
	"github.com/five82/homesim/internal/simulator"
	"github.com/five82/homesim/internal/state"
	"github.com/five82/homesim/internal/storage"
	"github.com/five82/homesim/internal/storage/local"
	"github.com/five82/homesim/internal/storage/remote"
	"github.com/five82/homesim/internal/ui"
)

// Options configure the homesim application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses ~/.config/homesim/prefs.toml
	Storage    string // overrides the configured storage mode when set
	Import     string // JSON file of presets to import instead of running the UI
	Export     string // file to write presets to instead of running the UI
	Out        io.Writer
}

// Run loads configuration, builds the storage adapter and controller, and
// either runs the TUI or performs a one-shot import/export.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.Storage != "" {
		mode, err := storage.ParseMode(opts.Storage)
		if err != nil {
			return err
		}
		cfg.Storage = mode
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	logger, closeLog, err := logging.Open(cfg.Log, cfg.VerboseAPI)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer func() { _ = closeLog() }()

	store, err := NewStore(cfg, logger)
	if err != nil {
		return err
	}
	controller := simulator.New(store, &state.Store{}, logger)
	logger.Info("homesim starting", "mode", cfg.Storage, "data_dir", cfg.DataDir, "api_base", cfg.APIBase)

	// Load failures surface as a notice in the UI.
	_ = controller.Load(ctx)

	switch {
	case opts.Import != "":
		return importPresets(ctx, controller, opts.Import, out)
	case opts.Export != "":
		return exportPresets(controller, opts.Export, out)
	}

	return ui.Run(ui.Options{
		Context:    ctx,
		Controller: controller,
		Prefs:      prefs.Load(opts.PrefsPath),
		PrefsPath:  opts.PrefsPath,
		LogPath:    cfg.Log.Path,
		Logger:     logger,
	})
}

// NewStore returns the storage adapter selected by cfg.Storage.
func NewStore(cfg config.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Storage {
	case storage.ModeRemote:
		store, err := remote.New(remote.Options{
			BaseURL:           cfg.APIBase,
			UseCredentials:    cfg.UseCredentials,
			SessionToken:      cfg.SessionToken,
			Verbose:           cfg.VerboseAPI,
			Timeout:           cfg.RequestTimeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Logger:            logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init remote store: %w", err)
		}
		return store, nil
	case storage.ModeLocal, "":
		return local.New(cfg.DataDir, logger), nil
	default:
		return nil, fmt.Errorf("unknown storage mode %q", cfg.Storage)
	}
}

func importPresets(ctx context.Context, c *simulator.Controller, path string, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}
	var presets []device.Preset
	if err := json.Unmarshal(data, &presets); err != nil {
		return fmt.Errorf("decode import file: %w", err)
	}
	n, err := c.ImportPresets(ctx, presets)
	fmt.Fprintf(out, "imported %d of %d presets into %s storage\n", n, len(presets), c.Mode())
	if err != nil && storage.Classify(err) != storage.KindNotPersisted {
		return fmt.Errorf("import presets: %w", err)
	}
	if err != nil {
		fmt.Fprintf(out, "warning: %s\n", storage.Message(err))
	}
	return nil
}

func exportPresets(c *simulator.Controller, path string, out io.Writer) error {
	presets := c.ExportPresets()
	data, err := json.MarshalIndent(presets, "", "  ")
	if err != nil {
		return fmt.Errorf("encode presets: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export dir: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	fmt.Fprintf(out, "exported %d presets from %s storage to %s\n", len(presets), c.Mode(), path)
	return nil
}
