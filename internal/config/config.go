package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/homesim/internal/storage"
)

// Config is the homesim runtime configuration.
type Config struct {
	Storage           storage.Mode
	DataDir           string
	APIBase           string
	UseCredentials    bool
	SessionToken      string
	VerboseAPI        bool
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	Log               LogConfig
}

// LogConfig controls the application log file.
type LogConfig struct {
	Path   string
	Level  string
	Format string
}

// Environment variables that override the file.
const (
	EnvStorage        = "HOMESIM_STORAGE"
	EnvAPIBase        = "HOMESIM_API_BASE"
	EnvUseCredentials = "HOMESIM_USE_CREDENTIALS"
	EnvVerboseAPI     = "HOMESIM_VERBOSE_API"
	EnvSessionToken   = "HOMESIM_SESSION_TOKEN"
)

const (
	defaultConfigPath        = "~/.config/homesim/config.toml"
	defaultDataDir           = "~/.local/share/homesim"
	defaultLogPath           = "~/.local/state/homesim/homesim.log"
	defaultAPIBase           = "http://localhost:8000/api/"
	defaultRequestTimeout    = 10 * time.Second
	defaultRequestsPerSecond = 20
	defaultLogLevel          = "info"
	defaultLogFormat         = "text"
)

type rawConfig struct {
	Storage           string  `toml:"storage"`
	DataDir           string  `toml:"data_dir"`
	APIBase           string  `toml:"api_base"`
	UseCredentials    bool    `toml:"use_credentials"`
	SessionToken      string  `toml:"session_token"`
	VerboseAPI        bool    `toml:"verbose_api"`
	RequestTimeout    string  `toml:"request_timeout"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Log               struct {
		Path   string `toml:"path"`
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Storage:           storage.ModeLocal,
		DataDir:           mustExpand(defaultDataDir),
		APIBase:           defaultAPIBase,
		RequestTimeout:    defaultRequestTimeout,
		RequestsPerSecond: defaultRequestsPerSecond,
		Log: LogConfig{
			Path:   mustExpand(defaultLogPath),
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}

// Load reads the config file at path (or the default location), then applies
// a .env file from the working directory and HOMESIM_* environment overrides.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	if err := loadFile(resolved, &cfg); err != nil {
		return Config{}, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	mode, err := storage.ParseMode(raw.Storage)
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	cfg.Storage = mode

	if dir := strings.TrimSpace(raw.DataDir); dir != "" {
		cfg.DataDir = mustExpand(dir)
	}
	if base := strings.TrimSpace(raw.APIBase); base != "" {
		cfg.APIBase = base
	}
	cfg.UseCredentials = raw.UseCredentials
	cfg.SessionToken = strings.TrimSpace(raw.SessionToken)
	cfg.VerboseAPI = raw.VerboseAPI

	if timeout := strings.TrimSpace(raw.RequestTimeout); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil || d <= 0 {
			return fmt.Errorf("parse config: invalid request_timeout %q", raw.RequestTimeout)
		}
		cfg.RequestTimeout = d
	}
	if raw.RequestsPerSecond != 0 {
		cfg.RequestsPerSecond = raw.RequestsPerSecond
	}

	if p := strings.TrimSpace(raw.Log.Path); p != "" {
		cfg.Log.Path = mustExpand(p)
	}
	if level := strings.ToLower(strings.TrimSpace(raw.Log.Level)); level != "" {
		cfg.Log.Level = level
	}
	if format := strings.ToLower(strings.TrimSpace(raw.Log.Format)); format != "" {
		cfg.Log.Format = format
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v, ok := lookupEnv(EnvStorage); ok {
		mode, err := storage.ParseMode(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvStorage, err)
		}
		cfg.Storage = mode
	}
	if v, ok := lookupEnv(EnvAPIBase); ok {
		cfg.APIBase = v
	}
	if v, ok := lookupEnv(EnvSessionToken); ok {
		cfg.SessionToken = v
	}
	for name, dest := range map[string]*bool{
		EnvUseCredentials: &cfg.UseCredentials,
		EnvVerboseAPI:     &cfg.VerboseAPI,
	} {
		v, ok := lookupEnv(name)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: invalid boolean %q", name, v)
		}
		*dest = b
	}
	return nil
}

func lookupEnv(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
