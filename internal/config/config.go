package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ConfigPaths holds all relevant paths for the application.
type ConfigPaths struct {
	BaseDir    string `json:"base_dir" yaml:"base_dir"`       // base directory for config files
	DataDir    string `json:"data_dir" yaml:"data_dir"`       // directory for application data
	SocketDir  string `json:"socket_dir" yaml:"socket_dir"`   // directory for endpoint sockets
	DBFile     string `json:"db_file" yaml:"db_file"`         // path to the history database
	ConfigFile string `json:"config_file" yaml:"config_file"` // path to the active config file
}

// Config holds all application configuration.
type Config struct {
	// Stable identity for this installation
	DeviceID string `json:"device_id" yaml:"device_id"`

	// Logging configuration
	Log LogConfig `json:"log" yaml:"log"`

	// History options
	History HistoryConfig `json:"history" yaml:"history"`

	// IPC timeouts
	Timeouts TimeoutConfig `json:"timeouts" yaml:"timeouts"`

	// System paths, resolved at load time
	SystemPaths ConfigPaths `json:"system_paths" yaml:"system_paths"`
}

// LogConfig holds logging-related configuration.
type LogConfig struct {
	Level string `json:"level" yaml:"level"` // debug, info, warn, error
}

// HistoryConfig holds history-related configuration.
type HistoryConfig struct {
	MaxItems      int      `json:"max_items" yaml:"max_items"`
	FormatsToHash []string `json:"formats_to_hash" yaml:"formats_to_hash"`
}

// TimeoutConfig holds the IPC timing knobs, in milliseconds.
type TimeoutConfig struct {
	ConnectMS  int64 `json:"connect_ms" yaml:"connect_ms"`
	ReadPollMS int64 `json:"read_poll_ms" yaml:"read_poll_ms"`
}

// ConnectTimeout returns the singleton-detection connect timeout.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Timeouts.ConnectMS) * time.Millisecond
}

// ReadPoll returns the per-poll read timeout.
func (c *Config) ReadPoll() time.Duration {
	return time.Duration(c.Timeouts.ReadPollMS) * time.Millisecond
}

// GetConfigPaths returns the platform-specific configuration paths.
func GetConfigPaths() (*ConfigPaths, error) {
	baseDir := os.Getenv("CLIPD_CONFIG_DIR")
	if baseDir == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}
		switch runtime.GOOS {
		case "windows":
			baseDir = filepath.Join(configDir, "Clipd")
		case "darwin":
			baseDir = filepath.Join(configDir, "com.clipdot.clipd")
		default:
			baseDir = filepath.Join(configDir, "clipd")
		}
	}

	socketDir := os.Getenv("XDG_RUNTIME_DIR")
	if socketDir == "" {
		socketDir = os.TempDir()
	}

	dataDir := filepath.Join(baseDir, "data")
	paths := &ConfigPaths{
		BaseDir:    baseDir,
		DataDir:    dataDir,
		SocketDir:  socketDir,
		DBFile:     filepath.Join(dataDir, "history.db"),
		ConfigFile: filepath.Join(baseDir, "config.yaml"),
	}

	for _, dir := range []string{paths.BaseDir, paths.DataDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return paths, nil
}

// Default returns a configuration with every field at its default.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		History: HistoryConfig{
			MaxItems:      100,
			FormatsToHash: []string{"text/plain"},
		},
		Timeouts: TimeoutConfig{
			ConnectMS:  2000,
			ReadPollMS: 1000,
		},
	}
}

// Load reads the active config file, filling defaults for anything
// unset. A missing file yields the defaults; a fresh DeviceID is
// generated and persisted on first run.
func Load() (*Config, error) {
	paths, err := GetConfigPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config paths: %w", err)
	}

	cfg := Default()
	data, err := os.ReadFile(paths.ConfigFile)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", paths.ConfigFile, err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.SystemPaths = *paths
	cfg.applyDefaults()

	if cfg.DeviceID == "" {
		cfg.DeviceID = uuid.NewString()
		if err := cfg.Save(); err != nil {
			return nil, fmt.Errorf("failed to persist generated device id: %w", err)
		}
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.History.MaxItems <= 0 {
		c.History.MaxItems = def.History.MaxItems
	}
	if len(c.History.FormatsToHash) == 0 {
		c.History.FormatsToHash = def.History.FormatsToHash
	}
	if c.Timeouts.ConnectMS <= 0 {
		c.Timeouts.ConnectMS = def.Timeouts.ConnectMS
	}
	if c.Timeouts.ReadPollMS <= 0 {
		c.Timeouts.ReadPollMS = def.Timeouts.ReadPollMS
	}
}

// Save writes the configuration to the active config file.
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(c.SystemPaths.ConfigFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
