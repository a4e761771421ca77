package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/fileshare/internal/logger"
	"github.com/marmos91/fileshare/pkg/api"
	"github.com/marmos91/fileshare/pkg/blob"
	"github.com/marmos91/fileshare/pkg/config"
	"github.com/marmos91/fileshare/pkg/metrics"
	"github.com/marmos91/fileshare/pkg/server"
	"github.com/marmos91/fileshare/pkg/store"
)

var pidFile string

var startCmd = &cobra.Command{
	Use:   "start [port]",
	Short: "Start the fileshare server",
	Long: `Start the fileshare server with the specified configuration.

An optional positional port argument overrides the configured TCP port.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/fileshare/config.yaml. When no
configuration file exists, built-in defaults are used.

Examples:
  # Start with defaults (port 8080)
  fileshared start

  # Start on a specific port
  fileshared start 9000

  # Start with custom config file
  fileshared start --config /etc/fileshare/config.yaml

  # Start with environment variable overrides
  FILESHARE_LOGGING_LEVEL=DEBUG fileshared start`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (optional)")
}

func runStart(cmd *cobra.Command, args []string) error {
	// An explicit --config that points nowhere is a user error, not a
	// reason to fall back to defaults silently.
	var cfg *config.Config
	var err error
	if file := GetConfigFile(); file != "" {
		cfg, err = config.MustLoad(file)
	} else {
		cfg, err = config.Load("")
	}
	if err != nil {
		return err
	}

	if len(args) == 1 {
		port, err := strconv.Atoi(args[0])
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("invalid port: %s", args[0])
		}
		cfg.Server.Port = port
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("configuration loaded", "source", configSource(GetConfigFile()))

	st, err := store.New(store.Config{Path: cfg.Database.Path})
	if err != nil {
		return fmt.Errorf("failed to open metadata store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("metadata store close error", logger.Err(err))
		}
	}()
	logger.Info("metadata store ready", logger.Path(cfg.Database.Path))

	blobs, err := blob.NewWithPath(cfg.Blob.Path)
	if err != nil {
		return fmt.Errorf("failed to open blob store: %w", err)
	}
	defer func() {
		if err := blobs.Close(); err != nil {
			logger.Error("blob store close error", logger.Err(err))
		}
	}()
	logger.Info("blob store ready", logger.Path(cfg.Blob.Path))

	// Metrics are only collected when the ops endpoint can expose them.
	var serverMetrics *metrics.ServerMetrics
	var opsServer *api.Server
	if cfg.Ops.Enabled {
		registry := metrics.NewRegistry()
		serverMetrics = metrics.NewServerMetrics(registry)
		opsServer = api.NewServer(cfg.Ops.Port, registry, map[string]api.HealthChecker{
			"metadata": st,
			"blob":     blobs,
		}, st)
		logger.Info("ops endpoint enabled", "port", cfg.Ops.Port)
	}

	srv := server.New(cfg.Server, server.NewEngine(st, blobs, serverMetrics))

	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	if opsServer != nil {
		go func() {
			if err := opsServer.Start(ctx); err != nil {
				logger.Error("ops server error", logger.Err(err))
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("server is running, press Ctrl+C to stop")

	select {
	case sig := <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received", "signal", sig.String())
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("server shutdown error", logger.Err(err))
			return err
		}
		logger.Info("server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("server error", logger.Err(err))
			return err
		}
		logger.Info("server stopped")
	}

	return nil
}

// configSource describes where the configuration came from.
func configSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.DefaultConfigPath()
	}
	return "defaults"
}
