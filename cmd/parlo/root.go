package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/parlo-ai/parlo/internal/config"
	"github.com/parlo-ai/parlo/internal/logging"
	"github.com/parlo-ai/parlo/internal/store"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "parlo",
		Short:         "Parlo drives multi-tenant customer conversations through configurable workflows",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newSeedCmd())
	return root
}

func newLogger() *slog.Logger {
	inner := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(logging.NewCorrelationHandler(inner))
}

func openStore(cfg *config.Config) (*store.LibSQLStore, error) {
	return store.NewLibSQLStore(cfg.DB.Path)
}
