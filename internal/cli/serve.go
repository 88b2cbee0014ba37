package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/insightd/internal/api/handlers"
	"github.com/cloo-solutions/insightd/internal/config"
	"github.com/cloo-solutions/insightd/internal/jobs"
	"github.com/cloo-solutions/insightd/internal/registry"
	"github.com/cloo-solutions/insightd/internal/server"
	"github.com/cloo-solutions/insightd/internal/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scan daemon",
		Long: `Run tier scan cycles on their cron schedules and serve the HTTP API.

The registry and routing rules are reloaded when their files change.`,
		RunE: runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip ledger migrations on startup")
	cmd.Flags().Bool("no-schedule", false, "Serve the API without cron-triggered cycles")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	sampleRate := 0.1
	if cfg.Environment == "development" {
		sampleRate = 1.0
	}
	shutdownTelemetry, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		Release:          cmd.Root().Version,
		TracesSampleRate: sampleRate,
		Debug:            cfg.Debug,
	}, logger)
	if err != nil {
		logger.Warn("telemetry init failed, continuing without tracing", zap.Error(err))
	} else {
		defer shutdownTelemetry()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	app, err := buildApp(ctx, cfg, logger, buildOptions{migrate: !noMigrate})
	if err != nil {
		return err
	}
	defer app.Close()

	if creators, err := app.Registry.Load(ctx); err != nil {
		logger.Warn("creator registry not loadable yet", zap.String("path", cfg.RegistryPath), zap.Error(err))
	} else {
		logger.Info("creator registry loaded", zap.Int("creators", len(creators)))
	}

	targets := map[string]registry.Reloader{cfg.RegistryPath: app.Registry}
	if app.Rules != nil {
		targets[app.Rules.Path()] = app.Rules
	}
	watcher, err := registry.NewWatcher(logger.Named("watch"), 0, targets)
	if err != nil {
		return err
	}
	go watcher.Run(ctx)

	var worker *jobs.Worker
	if noSchedule, _ := cmd.Flags().GetBool("no-schedule"); !noSchedule {
		worker, err = jobs.NewWorker(app.Scheduler, cfg.CronSpecs(), logger.Named("jobs"))
		if err != nil {
			return err
		}
		go worker.Start(ctx)
	}

	// A nil *CycleRepository must not reach the handler as a non-nil interface.
	var ledger handlers.CycleLedger
	if app.Ledger != nil {
		ledger = app.Ledger
	}

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: server.NewRouter(server.RouterConfig{
			CycleHandler: handlers.NewCycleHandler(ctx, app.Scheduler, ledger),
			Metrics:      app.Metrics.Handler(),
			Logger:       logger.Named("http"),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}
	logger.Info("shutting down")

	if worker != nil {
		worker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	app.Scheduler.Wait()
	logger.Info("server exited")
	return nil
}
