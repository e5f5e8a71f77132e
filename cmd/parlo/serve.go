package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/parlo-ai/parlo/internal/ai"
	"github.com/parlo-ai/parlo/internal/config"
	"github.com/parlo-ai/parlo/internal/conversation"
	"github.com/parlo-ai/parlo/internal/engine"
	parlomcp "github.com/parlo-ai/parlo/internal/mcp"
	"github.com/parlo-ai/parlo/internal/scheduler"
	"github.com/parlo-ai/parlo/internal/server"
)

func newServeCmd() *cobra.Command {
	var withMCP bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (and optionally the MCP stdio server)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger()

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := st.Migrate(ctx); err != nil {
				return err
			}

			gateway := ai.NewOpenAIGateway(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.ExtractionModel, logger)
			bank, err := ai.NewMemoryBank(gateway, logger)
			if err != nil {
				return err
			}
			registry := engine.NewRegistry(engine.Deps{
				Store:   st,
				Gateway: gateway,
				Memory:  bank,
				Logger:  logger,
			})
			orch := conversation.NewOrchestrator(st, engine.New(registry, logger), logger)

			if cfg.Scheduler.Enabled {
				sweeper, err := scheduler.NewSweeper(st, cfg.Scheduler.CronSpec, cfg.Scheduler.IdleTimeout, logger)
				if err != nil {
					return err
				}
				if err := sweeper.Start(ctx); err != nil {
					return err
				}
				defer sweeper.Stop()
			}

			if withMCP || cfg.MCP.Enabled {
				mcpSrv := parlomcp.NewServer(parlomcp.ServerDeps{
					Orchestrator: orch,
					Store:        st,
					Logger:       logger,
				})
				go func() {
					if err := mcpSrv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
						logger.Error("mcp server stopped", "error", err)
					}
				}()
			}

			srv := server.New(st, orch, logger)
			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start(cfg.Server.Addr)
			}()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().BoolVar(&withMCP, "mcp", false, "also serve MCP tools on stdio")
	return cmd
}
