// Package server exposes the HTTP surface: the turn endpoint, workflow
// management, and conversation history, all scoped to a resolved tenant.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/parlo-ai/parlo/internal/conversation"
	"github.com/parlo-ai/parlo/internal/store"
)

// Server wraps the echo instance and its collaborators.
type Server struct {
	echo         *echo.Echo
	store        store.Store
	orchestrator *conversation.Orchestrator
	logger       *slog.Logger
}

// New builds the HTTP server with routing and middleware in place.
func New(st store.Store, orch *conversation.Orchestrator, logger *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, store: st, orchestrator: orch, logger: logger}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(TenantResolver(st))
	e.HTTPErrorHandler = s.handleError

	e.GET("/healthz", s.health)

	api := e.Group("/api/v1")
	api.POST("/chat", s.postChat)
	api.GET("/workflows", s.listWorkflows)
	api.PUT("/workflows/:id", s.putWorkflow)
	api.GET("/conversations/:id/messages", s.listConversationMessages)

	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routing tree; used by tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleError converts uncaught errors into the generic server error
// shape. Client-facing validation errors are produced by the handlers
// themselves; anything arriving here is unexpected and gets logged.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	if he, ok := err.(*echo.HTTPError); ok {
		_ = c.JSON(he.Code, map[string]any{"error": he.Message})
		return
	}
	s.logger.ErrorContext(c.Request().Context(), "unhandled request error",
		"method", c.Request().Method, "path", c.Path(), "error", err)
	_ = c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
}
