package main

import (
	"github.com/spf13/cobra"

	"github.com/parlo-ai/parlo/internal/config"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Migrate(cmd.Context()); err != nil {
				return err
			}
			newLogger().Info("migrations applied", "db", cfg.DB.Path)
			return nil
		},
	}
}
