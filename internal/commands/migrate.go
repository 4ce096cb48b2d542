package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/financetracker/finance-tracker-go/internal/config"
	"github.com/financetracker/finance-tracker-go/internal/infra/sqlite"

	"github.com/spf13/cobra"
)

func newMigrateCommand(envFile *string) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQLite schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			if dbPath == "" {
				if cfg.DataBackend != config.BackendSQLite {
					return fmt.Errorf("migrate only applies to the sqlite backend, got %q", cfg.DataBackend)
				}
				dbPath = cfg.SQLiteDBPath
			}
			return runMigrate(cmd, dbPath)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "database path (defaults to SQLITE_DB_PATH)")

	return cmd
}

func runMigrate(cmd *cobra.Command, dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("creating db directory: %w", err)
	}
	if err := sqlite.Migrate(dbPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Database at %s is up to date.\n", dbPath)
	return nil
}
