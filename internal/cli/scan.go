package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/cloo-solutions/insightd/internal/config"
	"github.com/cloo-solutions/insightd/internal/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ScanCmd returns the scan command
func ScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one scan cycle in the foreground",
		Long: `Run one scan cycle and print its summary.

Without --tier every creator in the registry is scanned.`,
		Args: cobra.NoArgs,
		RunE: runScan,
	}

	cmd.Flags().StringP("tier", "t", "", "Only scan creators of this tier (critical, high, medium, low)")

	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	tierFlag, _ := cmd.Flags().GetString("tier")
	tier, err := parseTier(tierFlag)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	shutdownTelemetry, err := telemetry.Init(telemetry.Config{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
		Release:     cmd.Root().Version,
	}, logger)
	if err == nil {
		defer shutdownTelemetry()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, logger, buildOptions{migrate: true})
	if err != nil {
		return err
	}
	defer app.Close()

	summary, err := app.Scheduler.RunCycle(ctx, tier)
	if summary != nil {
		if jsonOutput(cmd) {
			if werr := writeJSON(cmd, summary); werr != nil {
				return werr
			}
		} else {
			fmt.Fprint(cmd.OutOrStdout(), renderCycleSummary(summary))
		}
	}
	if err != nil {
		logger.Error("scan cycle failed", zap.Error(err))
		return err
	}
	return nil
}
