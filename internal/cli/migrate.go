package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, backend, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer backend.Close()

		// Open already migrates gorm drivers and postgres with RunMigrations.
		if cfg.Database.Driver == config.DriverPostgres && !cfg.Database.Postgres.RunMigrations {
			if err := backend.Migrate(cmd.Context()); err != nil {
				return err
			}
		}
		logger.Info("migrations applied", zap.String("database", cfg.Database.Driver))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
