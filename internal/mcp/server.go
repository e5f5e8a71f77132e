// Package mcp exposes the conversation engine to agent clients over the
// Model Context Protocol, using the stdio transport.
package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/parlo-ai/parlo/internal/conversation"
	"github.com/parlo-ai/parlo/internal/store"
)

// ServerDeps holds the dependencies for creating a Server.
type ServerDeps struct {
	Orchestrator *conversation.Orchestrator
	Store        store.Store
	Logger       *slog.Logger
}

// Server wraps an MCP server with conversation tool handlers.
type Server struct {
	orchestrator *conversation.Orchestrator
	store        store.Store
	logger       *slog.Logger
	mcpServer    *server.MCPServer
}

// NewServer creates a Server with the three conversation tools registered.
func NewServer(deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &Server{
		orchestrator: deps.Orchestrator,
		store:        deps.Store,
		logger:       logger,
	}

	mcpSrv := server.NewMCPServer(
		"parlo",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Parlo drives multi-tenant customer conversations through configurable workflows. Use chat.send to submit a customer message, conversation.history to read a transcript, and workflow.list to inspect a tenant's workflows."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or
// stdin closes.
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying server for testing or custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: chatSendTool(), Handler: s.handleChatSend},
		{Tool: conversationHistoryTool(), Handler: s.handleConversationHistory},
		{Tool: workflowListTool(), Handler: s.handleWorkflowList},
	}
}

func chatSendTool() mcp.Tool {
	return mcp.NewTool("chat.send",
		mcp.WithDescription("Send a customer message into a tenant's conversation and get the workflow's reply"),
		mcp.WithString("subdomain", mcp.Required(), mcp.Description("Tenant subdomain")),
		mcp.WithString("message", mcp.Required(), mcp.Description("The customer message text")),
		mcp.WithString("conversation_id", mcp.Description("Existing conversation to continue (omit to start a new one)")),
	)
}

func conversationHistoryTool() mcp.Tool {
	return mcp.NewTool("conversation.history",
		mcp.WithDescription("Read a conversation's message history"),
		mcp.WithString("subdomain", mcp.Required(), mcp.Description("Tenant subdomain")),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation to read")),
	)
}

func workflowListTool() mcp.Tool {
	return mcp.NewTool("workflow.list",
		mcp.WithDescription("List a tenant's workflows"),
		mcp.WithString("subdomain", mcp.Required(), mcp.Description("Tenant subdomain")),
	)
}
