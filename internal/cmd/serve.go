package cmd

import (
	"context"
	"os"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/gstcheck/gstcheck/internal/appid"
	"github.com/gstcheck/gstcheck/internal/core/engine"
	apperrors "github.com/gstcheck/gstcheck/internal/errors"
	"github.com/gstcheck/gstcheck/internal/metrics"
	"github.com/gstcheck/gstcheck/internal/observability"
	"github.com/gstcheck/gstcheck/internal/server"
	"github.com/gstcheck/gstcheck/internal/server/handlers"
	"github.com/gstcheck/gstcheck/internal/server/jobs"
	servermw "github.com/gstcheck/gstcheck/internal/server/middleware"
)

// batchQueueCapacity bounds pending uploaded batches.
const batchQueueCapacity = 16

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API: single lookups, quota inspection, and asynchronous
batch uploads sharing one rate window.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config file reload (logged; restart to apply)`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "server host (default from config)")
	serveCmd.Flags().IntP("port", "p", 0, "server port (default from config)")
	serveCmd.Flags().StringP("environment", "e", "", "lookup environment: sandbox or production")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(flagOverrides(cmd, map[string]string{
		"host":        "server.host",
		"port":        "server.port",
		"environment": "environment",
	}))
	if err != nil {
		return err
	}

	if err := observability.InitServerLogger(observability.ServerLoggerOptions{
		Service:     appid.BinaryName,
		Level:       cfg.Logging.Level,
		Environment: cfg.Environment,
		Namespace:   appid.BinaryName,
	}); err != nil {
		return apperrors.WrapConfigInvalid(cmd.Context(), err, "logger initialization failed")
	}
	logger := observability.ServerLogger

	if cfg.Metrics.Enabled {
		if err := observability.InitMetrics(appid.BinaryName, cfg.Metrics.Port); err != nil {
			logger.Error("Failed to initialize metrics", zap.Error(err))
			return apperrors.WrapInternal(cmd.Context(), err, "metrics initialization failed")
		}
	}

	deps, err := newBatchDeps(cfg)
	if err != nil {
		return err
	}

	queue := jobs.NewQueue(&engine.Runner{
		Limiter: deps.limiter,
		Client:  deps.lookuper,
		Logger:  logger,
	}, batchQueueCapacity, logger)
	queue.Start()

	srv := server.New(server.Options{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Throttle: servermw.ThrottleConfig{
			RPS:   cfg.Throttle.RPS,
			Burst: cfg.Throttle.Burst,
		},
		Limiter:  deps.limiter,
		Lookuper: deps.lookuper,
		Queue:    queue,
		Build: handlers.BuildInfo{
			Version:   versionInfo.Version,
			Commit:    versionInfo.Commit,
			BuildDate: versionInfo.BuildDate,
		},
		Environment: cfg.Environment,
		AdminToken:  os.Getenv(appid.EnvPrefix + "ADMIN_TOKEN"),
	})
	metrics.SetServerStartTime(time.Now().Unix())

	logger.Info("Initializing server",
		zap.String("service", appid.BinaryName),
		zap.String("version", versionInfo.Version),
		zap.String("environment", cfg.Environment),
		zap.String("addr", srv.Addr()),
		zap.Bool("metrics_enabled", cfg.Metrics.Enabled),
		zap.Int("metrics_port", observability.GetMetricsPort()))

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	// Handlers run LIFO: HTTP first, then the queue, metrics, and the logger.
	signals.OnShutdown(func(ctx context.Context) error {
		if err := logger.Sync(); err != nil {
			logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
		}
		return nil
	})
	signals.OnShutdown(func(ctx context.Context) error {
		if err := observability.StopMetrics(); err != nil {
			logger.Warn("Metrics exporter stop failed", zap.Error(err))
		}
		return nil
	})
	signals.OnShutdown(func(ctx context.Context) error {
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		if err := queue.Shutdown(shutdownCtx); err != nil {
			return apperrors.WrapInternal(ctx, err, "batch queue shutdown failed")
		}
		logger.Info("Batch queue stopped")
		return nil
	})
	signals.OnShutdown(func(ctx context.Context) error {
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return apperrors.WrapInternal(ctx, err, "server shutdown failed")
		}
		logger.Info("HTTP server stopped gracefully")
		return nil
	})

	signals.OnReload(func(ctx context.Context) error {
		logger.Info("Received SIGHUP: re-reading config file")
		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				logger.Info("No config file found - using defaults and environment variables")
				return nil
			}
			logger.Error("Failed to reload config file",
				zap.String("file", viper.ConfigFileUsed()),
				zap.Error(err))
			return apperrors.WrapConfigInvalid(ctx, err, "config reload failed")
		}
		logger.Info("Configuration re-read; restart to apply listener, quota, or credential changes",
			zap.String("file", viper.ConfigFileUsed()))
		return nil
	})

	if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
		Window:  2 * time.Second,
		Message: "Press Ctrl+C again within 2 seconds to force quit",
	}); err != nil {
		logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
	}

	errChan := make(chan error, 2)
	go func() {
		// Start returns nil once Shutdown completes.
		errChan <- srv.Start()
	}()
	go func() {
		if err := signals.Listen(cmd.Context()); err != nil {
			logger.Error("Signal handler error", zap.Error(err))
			errChan <- err
		}
	}()

	if err := <-errChan; err != nil {
		return apperrors.WrapInternal(cmd.Context(), err, "server error")
	}
	return nil
}
