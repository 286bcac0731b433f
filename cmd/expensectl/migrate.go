package main

import (
	"github.com/spf13/cobra"

	"github.com/garyjia/expense-approval/internal/container"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		dbCfg := cfg.ToContainerConfig().Database
		bundle, err := container.ProvideDatabase(&dbCfg, logger)
		if err != nil {
			return err
		}
		defer bundle.Database.Close()

		logger.Info("Database is up to date")
		return nil
	},
}
