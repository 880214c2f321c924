package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/vaultsync/vaultsync/internal/client/config"
	"github.com/vaultsync/vaultsync/internal/client/engine"
	"github.com/vaultsync/vaultsync/internal/client/prompt"
	"github.com/vaultsync/vaultsync/internal/client/sdk"
	"github.com/vaultsync/vaultsync/internal/client/state"
	"github.com/vaultsync/vaultsync/internal/client/vaultadapter"
	"github.com/vaultsync/vaultsync/internal/utils"
	"github.com/vaultsync/vaultsync/internal/vaultmodel"
	"github.com/vaultsync/vaultsync/internal/xferqueue"
)

func init() {
	rootCmd.AddCommand(newSyncCmd())
}

func newSyncCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle against the manifest service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			slog.Info("sync starting", "vault", cfg.VaultDir, "device", cfg.DeviceID, "token", utils.MaskSecret(cfg.DeviceToken))

			lock := flock.New(filepath.Join(cfg.VaultDir, ".vaultsync.lock"))
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("lock vault %q: %w", cfg.VaultDir, err)
			}
			if !locked {
				return fmt.Errorf("vault %q is already syncing", cfg.VaultDir)
			}
			defer lock.Unlock()

			vault, err := vaultadapter.New(cfg.VaultDir)
			if err != nil {
				return fmt.Errorf("open vault %q: %w", cfg.VaultDir, err)
			}

			store, err := state.Open(stateDBPath(cfg.Path))
			if err != nil {
				return fmt.Errorf("open state store: %w", err)
			}

			ctx := cmd.Context()
			queue := xferqueue.New(ctx)
			defer queue.Close()

			client := sdk.New(cfg.ServerURL, cfg.DeviceToken)
			eng := engine.New(cfg, vault, client, store, queue, resolverFor(cfg))

			return eng.Sync(ctx, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "ignore the cached base manifest and reconcile against a full remote scan")
	return cmd
}

// stateDBPath derives the sqlite state database path from the config
// file's own location, so each vault config gets its own state store.
func stateDBPath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "state.db")
}

// resolverFor wraps the terminal conflict prompt for the "ask" strategy,
// adapting prompt.Resolution to engine.Resolution. nil for every other
// strategy, since the engine never calls Resolve unless it needs to.
func resolverFor(cfg *config.Config) engine.Resolver {
	if cfg.ConflictStrategy != config.StrategyAsk {
		return nil
	}
	p := prompt.New()
	return engine.ResolverFunc(func(conflict vaultmodel.ConflictEntry, localText, remoteText string) (engine.Resolution, error) {
		resolution, err := p.Resolve(conflict, localText, remoteText)
		if err != nil {
			return engine.ResolveKeepLocal, err
		}
		switch resolution {
		case prompt.ResolveKeepLocal:
			return engine.ResolveKeepLocal, nil
		case prompt.ResolveKeepRemote:
			return engine.ResolveKeepRemote, nil
		case prompt.ResolveMerge:
			return engine.ResolveMerge, nil
		default:
			return engine.ResolveKeepLocal, nil
		}
	})
}
