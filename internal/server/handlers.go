package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/parlo-ai/parlo/internal/store"
	"github.com/parlo-ai/parlo/pkg/schema"
)

type chatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

type chatResponse struct {
	ConversationID string  `json:"conversation_id"`
	Reply          *string `json:"reply"`
	Halted         bool    `json:"halted"`
}

// postChat processes one conversation turn. Empty messages and unresolved
// tenants are client errors; anything unexpected surfaces as a generic
// server error via the error handler, with no partial persistence of the
// turn's context.
func (s *Server) postChat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "Malformed request body"})
	}
	if strings.TrimSpace(req.Message) == "" {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "Message cannot be empty"})
	}
	tenant := currentTenant(c)
	if tenant == nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "Tenant not resolved"})
	}

	result, err := s.orchestrator.ProcessTurn(c.Request().Context(), tenant, req.ConversationID, req.Message)
	if err != nil {
		if schema.CodeOf(err) == schema.ErrCodeValidation {
			return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "Message cannot be empty"})
		}
		return err
	}

	resp := chatResponse{ConversationID: result.ConversationID, Halted: result.Halted || !result.Replied}
	if result.Replied {
		resp.Reply = &result.Reply
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) listWorkflows(c echo.Context) error {
	tenant := currentTenant(c)
	if tenant == nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "Tenant not resolved"})
	}
	workflows, err := s.store.ListWorkflows(c.Request().Context(), tenant.ID)
	if err != nil {
		return err
	}
	if workflows == nil {
		workflows = []*store.Workflow{}
	}
	return c.JSON(http.StatusOK, map[string]any{"workflows": workflows})
}

type workflowRequest struct {
	Name    string          `json:"name"`
	Steps   json.RawMessage `json:"steps"`
	Enabled bool            `json:"enabled"`
}

// putWorkflow creates or replaces a workflow definition. Steps are
// validated for shape only; malformed step semantics fail at execution
// time by design.
func (s *Server) putWorkflow(c echo.Context) error {
	tenant := currentTenant(c)
	if tenant == nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "Tenant not resolved"})
	}
	var req workflowRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "Malformed request body"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "Workflow name is required"})
	}
	if _, err := schema.ParseSteps(req.Steps); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "Steps must be a JSON array of step objects"})
	}

	id := c.Param("id")
	if id == "" {
		id = uuid.NewString()
	}
	workflow := &store.Workflow{
		ID:        id,
		TenantID:  tenant.ID,
		Name:      req.Name,
		Steps:     req.Steps,
		Enabled:   req.Enabled,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateWorkflow(c.Request().Context(), workflow); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, workflow)
}

func (s *Server) listConversationMessages(c echo.Context) error {
	tenant := currentTenant(c)
	if tenant == nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "Tenant not resolved"})
	}
	id := c.Param("id")
	if _, err := s.store.GetConversation(c.Request().Context(), tenant.ID, id); err != nil {
		if schema.CodeOf(err) == schema.ErrCodeNotFound {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Conversation not found"})
		}
		return err
	}
	messages, err := s.store.ListMessages(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if messages == nil {
		messages = []*store.Message{}
	}
	return c.JSON(http.StatusOK, map[string]any{"messages": messages})
}
