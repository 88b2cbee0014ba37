package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/cloo-solutions/insightd/internal/database"
	"github.com/cloo-solutions/insightd/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply scan ledger migrations",
		Args:  cobra.NoArgs,
		RunE:  runMigrate,
	}

	cmd.Flags().String("database-url", "", "Postgres URL (overrides DATABASE_URL)")
	cmd.Flags().Bool("list", false, "List embedded migrations without applying them")

	return cmd
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if list, _ := cmd.Flags().GetBool("list"); list {
		names, err := database.Migrations()
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	}

	_ = godotenv.Load()
	url, _ := cmd.Flags().GetString("database-url")
	if url == "" {
		url = os.Getenv("INSIGHT_DATABASE_URL")
	}
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		return errors.New("DATABASE_URL is required")
	}

	logger, err := logging.New(logging.Options{Level: os.Getenv("LOG_LEVEL")})
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	version, err := database.Migrate(url, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ledger schema at version %d\n", version)
	return nil
}
