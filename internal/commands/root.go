package commands

import (
	"fmt"

	"github.com/financetracker/finance-tracker-go/internal/buildinfo"
	"github.com/financetracker/finance-tracker-go/internal/config"

	"github.com/spf13/cobra"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:     "tracker",
		Short:   "Personal finance tracker API",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file read before the environment")

	rootCmd.AddCommand(newServeCommand(&envFile))
	rootCmd.AddCommand(newMigrateCommand(&envFile))

	return rootCmd
}

// loadConfig reads envFile (if present) into the environment and then
// builds the configuration from it.
func loadConfig(envFile string) (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}
	return config.Load(), nil
}
