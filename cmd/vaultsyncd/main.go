// Command vaultsyncd runs the Manifest Service: the thin authenticated
// HTTP front for the object store that mediates every client's sync
// cycle.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaultsync/vaultsync/internal/auth"
	"github.com/vaultsync/vaultsync/internal/server/httpapi"
	"github.com/vaultsync/vaultsync/internal/server/manifeststore"
	"github.com/vaultsync/vaultsync/internal/server/objectstore"
	"github.com/vaultsync/vaultsync/internal/server/serverconfig"
	"github.com/vaultsync/vaultsync/internal/version"
)

var configFile string

func main() {
	root := &cobra.Command{
		Use:     "vaultsyncd",
		Short:   "the vault sync Manifest Service",
		Version: version.Version,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a config file")

	root.AddCommand(serveCmd(), tokenCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the Manifest Service HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := serverconfig.Load(configFile)
			if err != nil {
				return err
			}
			serverconfig.SetupLogging(cfg.Environment)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			objects, err := objectstore.New(ctx, objectstore.Config{
				BucketName: cfg.BucketName,
				Region:     cfg.Region,
				Endpoint:   cfg.Endpoint,
				AccessKey:  cfg.AccessKey,
				SecretKey:  cfg.SecretKey,
			})
			if err != nil {
				return fmt.Errorf("connect object store: %w", err)
			}

			manifests := manifeststore.New(objects)

			router := httpapi.NewRouter(httpapi.Config{
				DeviceSecret:    []byte(cfg.DeviceSecret),
				AdminSigningKey: []byte(cfg.AdminSigningKey),
				RateLimit:       cfg.RateLimit,
				Development:     cfg.Environment == "development",
			}, objects, manifests)

			srv := &http.Server{
				Addr:              cfg.Addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			go func() {
				slog.Info("manifest service listening", "addr", cfg.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					slog.Error("server exited", "error", err)
				}
			}()

			<-ctx.Done()
			slog.Info("shutting down")

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "manage admin tokens",
	}
	cmd.AddCommand(tokenIssueCmd())
	return cmd
}

func tokenIssueCmd() *cobra.Command {
	var operator string
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "issue a short-lived operator admin token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := serverconfig.Load(configFile)
			if err != nil {
				return err
			}
			token, err := auth.IssueAdminToken([]byte(cfg.AdminSigningKey), operator)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&operator, "operator", "", "operator identity to embed in the token")
	cmd.MarkFlagRequired("operator")
	return cmd
}
