package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/denisbrodbeck/machineid"
	"github.com/spf13/cobra"

	"github.com/vaultsync/vaultsync/internal/client/config"
	"github.com/vaultsync/vaultsync/internal/utils"
)

func init() {
	rootCmd.AddCommand(newInitCmd())
}

func newInitCmd() *cobra.Command {
	var (
		vaultDir string
		server   string
		deviceID string
		token    string
		strategy string
		interval int
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a vault config and device token file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if vaultDir == "" {
				return fmt.Errorf("--vault is required")
			}
			if server == "" {
				return fmt.Errorf("--server is required")
			}
			if deviceID == "" {
				generated, err := machineid.ProtectedID("vaultsync")
				if err != nil {
					return fmt.Errorf("--device-id not given and machine id could not be derived: %w", err)
				}
				deviceID = generated
			}
			if token == "" {
				return fmt.Errorf("--token is required")
			}

			absVault, err := filepath.Abs(vaultDir)
			if err != nil {
				return fmt.Errorf("resolve vault dir: %w", err)
			}
			if err := os.MkdirAll(absVault, 0o755); err != nil {
				return fmt.Errorf("create vault dir: %w", err)
			}

			cfg := &config.Config{
				VaultDir:         absVault,
				ServerURL:        server,
				DeviceID:         deviceID,
				SyncIntervalSecs: interval,
				ConflictStrategy: config.ConflictStrategy(strategy),
				ExcludePatterns:  []string{".vaultsync/**", ".vaultsync.lock", ".git/**"},
			}
			probe := *cfg
			probe.DeviceToken = token
			if err := probe.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			if err := cfg.Save(configPath); err != nil {
				return fmt.Errorf("write config %q: %w", configPath, err)
			}

			if err := writeEnvToken(envPath, token); err != nil {
				return fmt.Errorf("write device token %q: %w", envPath, err)
			}

			fmt.Printf("vault initialized: %s\nconfig: %s\ntoken: %s\n", absVault, configPath, envPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&vaultDir, "vault", "", "path to the local vault directory")
	cmd.Flags().StringVar(&server, "server", "", "manifest service base URL")
	cmd.Flags().StringVar(&deviceID, "device-id", "", "this device's id (derived from the machine id if omitted)")
	cmd.Flags().StringVar(&token, "token", "", "device token issued by the manifest service operator")
	cmd.Flags().StringVar(&strategy, "conflict-strategy", string(config.StrategyThreeWayMerge), "ask | three-way-merge | keep-local | keep-remote")
	cmd.Flags().IntVar(&interval, "interval", config.DefaultSyncSeconds, "daemon sync interval in seconds")

	return cmd
}

// writeEnvToken writes (or replaces) the device token in a .env file,
// kept separate from config.json so the token never lands in the
// config a vault directory might get backed up or shared alongside.
func writeEnvToken(path, token string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}
	content := fmt.Sprintf("VAULTSYNC_DEVICE_TOKEN=%s\n", token)
	return os.WriteFile(path, []byte(content), 0o600)
}
