package cli

import (
	"errors"
	"fmt"

	"github.com/cloo-solutions/insightd/internal/config"
	"github.com/cloo-solutions/insightd/internal/database"
	"github.com/cloo-solutions/insightd/internal/repository"
	"github.com/spf13/cobra"
)

// HistoryCmd returns the history command
func HistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [cycle-id]",
		Short: "Show recent scan cycles from the ledger",
		Long: `List recent scan cycles, newest first. With a cycle id, show that cycle
and every item outcome it recorded.

Requires DATABASE_URL.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistory,
	}

	cmd.Flags().IntP("limit", "n", 20, "Number of cycles to list")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.HasDatabase() {
		return errors.New("DATABASE_URL is required for the scan ledger")
	}

	ctx := cmd.Context()
	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL, MaxConns: 2})
	if err != nil {
		return err
	}
	defer pool.Close()
	ledger := repository.NewCycleRepository(pool)

	if len(args) == 1 {
		summary, err := ledger.GetByID(ctx, args[0])
		if err != nil {
			return err
		}
		if summary.Items, err = ledger.Outcomes(ctx, summary.ID); err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return writeJSON(cmd, summary)
		}
		fmt.Fprint(cmd.OutOrStdout(), renderCycleSummary(summary))
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	cycles, err := ledger.List(ctx, limit)
	if err != nil {
		return err
	}
	if jsonOutput(cmd) {
		return writeJSON(cmd, cycles)
	}
	if len(cycles) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No scan cycles recorded")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderHistory(cycles))
	return nil
}
