// Command vaultsync is the client CLI: it drives one vault's sync
// cycles against a Manifest Service, either as a one-shot invocation or
// as a background daemon watching the vault for changes. Grounded on
// the reference architecture's cmd/client layout (a small rootCmd in
// main.go, one file per subcommand, each registering itself via init()).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/vaultsync/vaultsync/internal/client/config"
	"github.com/vaultsync/vaultsync/internal/utils"
	"github.com/vaultsync/vaultsync/internal/version"
)

var configPath string
var envPath string

var rootCmd = &cobra.Command{
	Use:     "vaultsync",
	Short:   "VaultSync client CLI",
	Version: version.Detailed(),
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "vault config file")
	rootCmd.PersistentFlags().StringVar(&envPath, "env", config.DefaultEnvPath, "device token .env file")
}

func main() {
	setupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogging fans every log record out to both stdout (colorized via
// tint when attached to a terminal) and a rolling plain-text log file,
// grounded on the reference architecture's own cmd/client/main.go dual
// handler setup.
func setupLogging() {
	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: "15:04:05",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})

	if err := os.MkdirAll(filepath.Dir(config.DefaultLogFilePath), 0o755); err != nil {
		slog.SetDefault(slog.New(stdoutHandler))
		slog.Warn("could not create log directory, logging to stdout only", "error", err)
		return
	}
	logFile, err := os.OpenFile(config.DefaultLogFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		slog.SetDefault(slog.New(stdoutHandler))
		slog.Warn("could not open log file, logging to stdout only", "path", config.DefaultLogFilePath, "error", err)
		return
	}

	interceptor := utils.NewLogInterceptor(logFile)
	fileHandler := slog.NewTextHandler(interceptor, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})

	slog.SetDefault(slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler)))
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath, envPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %q: %w", configPath, err)
	}
	return cfg, nil
}
