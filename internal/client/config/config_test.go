package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate_RequiresCoreFields(t *testing.T) {
	cfg := &Config{
		VaultDir:         "/tmp/vault",
		ServerURL:        "http://127.0.0.1:8080",
		DeviceID:         "device-1",
		DeviceToken:      "tok",
		ConflictStrategy: StrategyThreeWayMerge,
	}
	require.NoError(t, cfg.Validate())

	missing := *cfg
	missing.DeviceToken = ""
	assert.Error(t, missing.Validate())

	badStrategy := *cfg
	badStrategy.ConflictStrategy = "not-a-strategy"
	assert.Error(t, badStrategy.Validate())
}

func TestConfig_SaveAndLoad_Roundtrip(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.json")
	envPath := filepath.Join(tmp, ".env")

	require.NoError(t, os.WriteFile(envPath, []byte("VAULTSYNC_DEVICE_TOKEN=secret-token\n"), 0o600))

	cfg := &Config{
		VaultDir:         tmp,
		ServerURL:        "http://127.0.0.1:8080",
		DeviceID:         "device-1",
		SyncIntervalSecs: 30,
		ConflictStrategy: StrategyKeepRemote,
		ExcludePatterns:  []string{"*.tmp"},
	}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path, envPath)
	require.NoError(t, err)

	assert.Equal(t, cfg.VaultDir, loaded.VaultDir)
	assert.Equal(t, cfg.ServerURL, loaded.ServerURL)
	assert.Equal(t, cfg.DeviceID, loaded.DeviceID)
	assert.Equal(t, cfg.ConflictStrategy, loaded.ConflictStrategy)
	assert.Equal(t, cfg.ExcludePatterns, loaded.ExcludePatterns)
	assert.Equal(t, "secret-token", loaded.DeviceToken)
	assert.Equal(t, path, loaded.Path)
}

func TestConfig_Load_DefaultsSyncIntervalAndStrategy(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"vault_dir":"`+tmp+`","server_url":"http://x","device_id":"d1"}`), 0o600))

	loaded, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, DefaultSyncSeconds, loaded.SyncIntervalSecs)
	assert.Equal(t, StrategyThreeWayMerge, loaded.ConflictStrategy)
}
