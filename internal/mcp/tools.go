package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/parlo-ai/parlo/internal/store"
)

func (s *Server) resolveTenant(ctx context.Context, req mcp.CallToolRequest) (*store.Tenant, *mcp.CallToolResult) {
	subdomain, err := req.RequireString("subdomain")
	if err != nil {
		return nil, mcp.NewToolResultError("subdomain is required")
	}
	tenant, err := s.store.GetTenantBySubdomain(ctx, subdomain)
	if err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("tenant lookup failed: %v", err))
	}
	return tenant, nil
}

func (s *Server) handleChatSend(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tenant, errResult := s.resolveTenant(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	message, err := req.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError("message is required"), nil
	}
	conversationID := req.GetString("conversation_id", "")

	result, turnErr := s.orchestrator.ProcessTurn(ctx, tenant, conversationID, message)
	if turnErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("turn failed: %v", turnErr)), nil
	}

	payload := map[string]any{
		"conversation_id": result.ConversationID,
		"halted":          result.Halted || !result.Replied,
	}
	if result.Replied {
		payload["reply"] = result.Reply
	}
	return marshalResult(payload)
}

func (s *Server) handleConversationHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tenant, errResult := s.resolveTenant(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	conversationID, err := req.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError("conversation_id is required"), nil
	}
	if _, convErr := s.store.GetConversation(ctx, tenant.ID, conversationID); convErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("conversation lookup failed: %v", convErr)), nil
	}
	messages, listErr := s.store.ListMessages(ctx, conversationID)
	if listErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("history query failed: %v", listErr)), nil
	}
	return marshalResult(map[string]any{"messages": messages})
}

func (s *Server) handleWorkflowList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tenant, errResult := s.resolveTenant(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	workflows, err := s.store.ListWorkflows(ctx, tenant.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("workflow query failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"workflows": workflows})
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}
