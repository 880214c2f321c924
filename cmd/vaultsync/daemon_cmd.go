package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/vaultsync/vaultsync/internal/client/engine"
	"github.com/vaultsync/vaultsync/internal/client/sdk"
	"github.com/vaultsync/vaultsync/internal/client/state"
	"github.com/vaultsync/vaultsync/internal/client/vaultadapter"
	"github.com/vaultsync/vaultsync/internal/client/watcher"
	"github.com/vaultsync/vaultsync/internal/utils"
	"github.com/vaultsync/vaultsync/internal/xferqueue"
)

func init() {
	rootCmd.AddCommand(newDaemonCmd())
}

func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run continuously, syncing on an interval and on local file changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			lock := flock.New(filepath.Join(cfg.VaultDir, ".vaultsync.lock"))
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("lock vault %q: %w", cfg.VaultDir, err)
			}
			if !locked {
				return fmt.Errorf("vault %q is already syncing (another daemon holds the lock)", cfg.VaultDir)
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

			runSync := func(ctx context.Context) {
				if err := eng.Sync(ctx, false); err != nil {
					slog.Error("sync cycle failed", "error", err)
				}
			}

			watch := watcher.New(cfg.VaultDir, 0, runSync)
			if err := watch.Start(ctx); err != nil {
				return fmt.Errorf("start file watcher: %w", err)
			}
			defer watch.Stop()

			interval := time.Duration(cfg.SyncIntervalSecs) * time.Second
			slog.Info("daemon starting", "vault", cfg.VaultDir, "interval", interval,
				"device", cfg.DeviceID, "token", utils.MaskSecret(cfg.DeviceToken))

			// A zero interval means manual/watcher-only sync: time.NewTicker
			// panics on a non-positive duration, so a nil channel (which
			// never fires) stands in for the ticker's case instead.
			var tickerC <-chan time.Time
			if interval > 0 {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				tickerC = ticker.C
			} else {
				slog.Info("sync interval is 0, relying on file watcher only")
			}

			runSync(ctx)
			for {
				select {
				case <-ctx.Done():
					slog.Info("daemon stopping")
					return nil
				case <-tickerC:
					runSync(ctx)
				}
			}
		},
	}

	return cmd
}
