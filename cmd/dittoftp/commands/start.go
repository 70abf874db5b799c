package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittoftp/internal/logger"
	"github.com/marmos91/dittoftp/pkg/config"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the DittoFTP server",
	Long: `Start the DittoFTP server in the foreground with the specified configuration.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/dittoftp/config.yaml.

Examples:
  # Start with the default config
  dittoftp start

  # Start with custom config file
  dittoftp start --config /etc/dittoftp/config.yaml

  # Start with environment variable overrides
  DITTOFTP_LOGGING_LEVEL=DEBUG dittoftp start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting DittoFTP", "version", Version, "commit", Commit)
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))

	rt, err := config.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize runtime: %w", err)
	}
	defer func() { _ = rt.Close() }()

	srv, err := rt.NewServer(cfg)
	if err != nil {
		return err
	}

	if rt.Metrics.Server != nil {
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("Metrics collection disabled")
	}

	if users := rt.Authenticator.AllowedUsers(); users != nil {
		logger.Info("Login allow-list active", logger.KeyCount, len(users))
	}

	logger.Info("Server is running. Press Ctrl+C to stop.")

	err = srv.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server error", logger.KeyError, err)
		return err
	}

	logger.Info("Server stopped gracefully")
	return nil
}
