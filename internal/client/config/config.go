// Package config loads the client CLI's settings: a small JSON file for
// the durable per-vault settings (server URL, device id, sync interval,
// conflict strategy, exclude patterns) plus a .env file (via
// github.com/joho/godotenv) for the device token secret, matching the
// reference architecture's lighter-weight client config convention
// (JSON file on disk, distinct from the server's viper-based layering).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/vaultsync/vaultsync/internal/utils"
)

// ConflictStrategy is a per-client conflict-resolution policy.
type ConflictStrategy string

const (
	StrategyAsk           ConflictStrategy = "ask"
	StrategyThreeWayMerge ConflictStrategy = "three-way-merge"
	StrategyKeepLocal     ConflictStrategy = "keep-local"
	StrategyKeepRemote    ConflictStrategy = "keep-remote"
)

var (
	home, _            = os.UserHomeDir()
	DefaultConfigPath  = filepath.Join(home, ".vaultsync", "config.json")
	DefaultEnvPath     = filepath.Join(home, ".vaultsync", ".env")
	DefaultLogFilePath = filepath.Join(home, ".vaultsync", "vaultsync.log")
	DefaultSyncSeconds = 60
)

// Config is the full set of durable client settings for one vault.
type Config struct {
	Path             string           `json:"-"`
	VaultDir         string           `json:"vault_dir"`
	ServerURL        string           `json:"server_url"`
	DeviceID         string           `json:"device_id"`
	SyncIntervalSecs int              `json:"sync_interval_seconds"`
	ConflictStrategy ConflictStrategy `json:"conflict_strategy"`
	ExcludePatterns  []string         `json:"exclude_patterns"`

	// DeviceToken is never persisted to the config file; it is loaded
	// from the environment (directly, or via a .env file).
	DeviceToken string `json:"-"`
}

// Validate checks that every setting required to run a sync cycle is
// present and well-formed.
func (c *Config) Validate() error {
	if c.VaultDir == "" {
		return fmt.Errorf("vault_dir is required")
	}
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}
	if c.DeviceID == "" {
		return fmt.Errorf("device_id is required")
	}
	if c.DeviceToken == "" {
		return fmt.Errorf("device token is required (set VAULTSYNC_DEVICE_TOKEN)")
	}
	switch c.ConflictStrategy {
	case StrategyAsk, StrategyThreeWayMerge, StrategyKeepLocal, StrategyKeepRemote:
	default:
		return fmt.Errorf("unknown conflict_strategy %q", c.ConflictStrategy)
	}
	return nil
}

// Save writes the config (minus the device token) to path as JSON.
func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Load reads the JSON config at path, applying defaults for any unset
// field, then overlays the device token from the environment (loading
// envPath via godotenv first, if it exists).
func Load(path, envPath string) (*Config, error) {
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	cfg := &Config{
		SyncIntervalSecs: DefaultSyncSeconds,
		ConflictStrategy: StrategyThreeWayMerge,
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}

	cfg.Path = path
	cfg.DeviceToken = os.Getenv("VAULTSYNC_DEVICE_TOKEN")

	return cfg, nil
}
