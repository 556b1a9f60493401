package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/bright/uploader/internal/db"
)

func newMigrateCmd() *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the upload ledger migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required to migrate")
			}
			if down {
				return db.Rollback(cfg.DatabaseURL)
			}
			return db.Migrate(cfg.DatabaseURL)
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back the most recent migration")
	return cmd
}
