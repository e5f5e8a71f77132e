package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlo-ai/parlo/internal/ai"
	"github.com/parlo-ai/parlo/internal/conversation"
	"github.com/parlo-ai/parlo/internal/engine"
	"github.com/parlo-ai/parlo/internal/store"
	"github.com/parlo-ai/parlo/pkg/schema"
)

type mockStore struct {
	store.Store // embed for unimplemented methods

	tenants       map[string]*store.Tenant
	conversations map[string]*store.Conversation
	messages      map[string][]*store.Message
	workflows     []*store.Workflow
}

func newMockStore() *mockStore {
	return &mockStore{
		tenants:       map[string]*store.Tenant{},
		conversations: map[string]*store.Conversation{},
		messages:      map[string][]*store.Message{},
	}
}

func (m *mockStore) GetTenantBySubdomain(_ context.Context, subdomain string) (*store.Tenant, error) {
	if t, ok := m.tenants[subdomain]; ok {
		return t, nil
	}
	return nil, schema.NewError(schema.ErrCodeNotFound, "tenant not found")
}

func (m *mockStore) CreateConversation(_ context.Context, c *store.Conversation) error {
	m.conversations[c.ID] = c
	return nil
}

func (m *mockStore) GetConversation(_ context.Context, tenantID, id string) (*store.Conversation, error) {
	c, ok := m.conversations[id]
	if !ok || c.TenantID != tenantID {
		return nil, schema.NewError(schema.ErrCodeNotFound, "conversation not found")
	}
	return c, nil
}

func (m *mockStore) UpdateConversationContext(_ context.Context, id string, raw json.RawMessage) error {
	if c, ok := m.conversations[id]; ok {
		c.WorkflowContext = raw
	}
	return nil
}

func (m *mockStore) AppendMessage(_ context.Context, msg *store.Message) error {
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], msg)
	return nil
}

func (m *mockStore) ListMessages(_ context.Context, conversationID string) ([]*store.Message, error) {
	return m.messages[conversationID], nil
}

func (m *mockStore) FindEnabledWorkflowByName(_ context.Context, tenantID, name string) (*store.Workflow, error) {
	for _, w := range m.workflows {
		if w.TenantID == tenantID && w.Name == name && w.Enabled {
			return w, nil
		}
	}
	return nil, schema.NewError(schema.ErrCodeNotFound, "workflow not found")
}

func (m *mockStore) FirstEnabledWorkflow(_ context.Context, tenantID string) (*store.Workflow, error) {
	for _, w := range m.workflows {
		if w.TenantID == tenantID && w.Enabled {
			return w, nil
		}
	}
	return nil, schema.NewError(schema.ErrCodeNotFound, "workflow not found")
}

func (m *mockStore) ListWorkflows(_ context.Context, tenantID string) ([]*store.Workflow, error) {
	var out []*store.Workflow
	for _, w := range m.workflows {
		if w.TenantID == tenantID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *mockStore) AppendEvent(_ context.Context, _ *store.Event) error { return nil }

type mockGateway struct{}

func (mockGateway) Call(context.Context, ai.CallRequest) (string, error) { return "", nil }

func newTestServer(t *testing.T, ms *mockStore) *Server {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	bank, err := ai.NewMemoryBank(mockGateway{}, logger)
	require.NoError(t, err)
	reg := engine.NewRegistry(engine.Deps{Store: ms, Gateway: mockGateway{}, Memory: bank, Logger: logger})
	orch := conversation.NewOrchestrator(ms, engine.New(reg, logger), logger)
	return NewServer(ServerDeps{Orchestrator: orch, Store: ms, Logger: logger})
}

func buildRequest(toolName string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: args,
		},
	}
}

func textContent(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	return mcp.GetTextFromContent(result.Content[0])
}

func seedTenant(ms *mockStore) {
	ms.tenants["acme"] = &store.Tenant{ID: "tenant-1", Name: "Acme Salon", Subdomain: "acme"}
	ms.workflows = append(ms.workflows, &store.Workflow{
		ID: "wf-1", TenantID: "tenant-1", Name: "Booking Workflow", Enabled: true,
		Steps: json.RawMessage(`[{"type": "ask", "question": "What is your name?"}]`),
	})
}

func TestChatSendTool(t *testing.T) {
	ms := newMockStore()
	seedTenant(ms)
	s := newTestServer(t, ms)

	result, err := s.handleChatSend(context.Background(), buildRequest("chat.send", map[string]any{
		"subdomain": "acme",
		"message":   "hello",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var payload struct {
		ConversationID string `json:"conversation_id"`
		Reply          string `json:"reply"`
		Halted         bool   `json:"halted"`
	}
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &payload))
	assert.NotEmpty(t, payload.ConversationID)
	assert.Equal(t, "What is your name?", payload.Reply)
	assert.True(t, payload.Halted)
}

func TestChatSendToolMissingArgs(t *testing.T) {
	s := newTestServer(t, newMockStore())

	result, err := s.handleChatSend(context.Background(), buildRequest("chat.send", map[string]any{
		"message": "hello",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestChatSendToolUnknownTenant(t *testing.T) {
	s := newTestServer(t, newMockStore())

	result, err := s.handleChatSend(context.Background(), buildRequest("chat.send", map[string]any{
		"subdomain": "ghost",
		"message":   "hello",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestConversationHistoryTool(t *testing.T) {
	ms := newMockStore()
	seedTenant(ms)
	ms.conversations["conv-1"] = &store.Conversation{ID: "conv-1", TenantID: "tenant-1"}
	ms.messages["conv-1"] = []*store.Message{
		{ID: "m1", ConversationID: "conv-1", Role: store.RoleUser, Content: "hi"},
	}
	s := newTestServer(t, ms)

	result, err := s.handleConversationHistory(context.Background(), buildRequest("conversation.history", map[string]any{
		"subdomain":       "acme",
		"conversation_id": "conv-1",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, textContent(t, result), `"content":"hi"`)
}

func TestWorkflowListTool(t *testing.T) {
	ms := newMockStore()
	seedTenant(ms)
	s := newTestServer(t, ms)

	result, err := s.handleWorkflowList(context.Background(), buildRequest("workflow.list", map[string]any{
		"subdomain": "acme",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, textContent(t, result), "Booking Workflow")
}
