package engine

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parlo-ai/parlo/internal/ai"
	"github.com/parlo-ai/parlo/internal/store"
	"github.com/parlo-ai/parlo/pkg/schema"
)

// fakeStore implements the subset of store.Store the handlers touch.
// Unimplemented methods panic via the embedded nil interface.
type fakeStore struct {
	store.Store

	conversations   map[string]*store.Conversation
	messages        map[string][]*store.Message
	leads           []*store.Lead
	bookings        []*store.Booking
	templates       map[string]*store.PromptTemplate
	templatesByName map[string]*store.PromptTemplate
	tenantTemplates map[string]*store.TenantTemplate

	createLeadErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		conversations:   map[string]*store.Conversation{},
		messages:        map[string][]*store.Message{},
		templates:       map[string]*store.PromptTemplate{},
		templatesByName: map[string]*store.PromptTemplate{},
		tenantTemplates: map[string]*store.TenantTemplate{},
	}
}

func (f *fakeStore) GetConversation(_ context.Context, tenantID, id string) (*store.Conversation, error) {
	c, ok := f.conversations[id]
	if !ok || c.TenantID != tenantID {
		return nil, schema.NewError(schema.ErrCodeNotFound, "conversation not found")
	}
	return c, nil
}

func (f *fakeStore) ListMessages(_ context.Context, conversationID string) ([]*store.Message, error) {
	return f.messages[conversationID], nil
}

func (f *fakeStore) CreateLead(_ context.Context, l *store.Lead) error {
	if f.createLeadErr != nil {
		return f.createLeadErr
	}
	f.leads = append(f.leads, l)
	return nil
}

func (f *fakeStore) CreateBooking(_ context.Context, b *store.Booking) error {
	f.bookings = append(f.bookings, b)
	return nil
}

func (f *fakeStore) GetPromptTemplate(_ context.Context, id string) (*store.PromptTemplate, error) {
	if t, ok := f.templates[id]; ok {
		return t, nil
	}
	return nil, schema.NewError(schema.ErrCodeNotFound, "prompt template not found")
}

func (f *fakeStore) GetPromptTemplateByName(_ context.Context, name string) (*store.PromptTemplate, error) {
	if t, ok := f.templatesByName[name]; ok {
		return t, nil
	}
	return nil, schema.NewError(schema.ErrCodeNotFound, "prompt template not found")
}

func (f *fakeStore) GetTenantTemplate(_ context.Context, tenantID, templateID string) (*store.TenantTemplate, error) {
	if tt, ok := f.tenantTemplates[tenantID+"/"+templateID]; ok {
		return tt, nil
	}
	return nil, schema.NewError(schema.ErrCodeNotFound, "tenant template not found")
}

// fakeGateway scripts language-model replies in call order.
type fakeGateway struct {
	replies []string
	err     error
	calls   []ai.CallRequest
}

func (g *fakeGateway) Call(_ context.Context, req ai.CallRequest) (string, error) {
	g.calls = append(g.calls, req)
	if g.err != nil {
		return "", g.err
	}
	if len(g.replies) == 0 {
		return "", nil
	}
	reply := g.replies[0]
	if len(g.replies) > 1 {
		g.replies = g.replies[1:]
	}
	return reply, nil
}

func newTestDeps(t *testing.T, st *fakeStore, gw *fakeGateway) Deps {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	bank, err := ai.NewMemoryBank(gw, logger)
	require.NoError(t, err)
	return Deps{Store: st, Gateway: gw, Memory: bank, Logger: logger}
}

func newTestEngine(t *testing.T, deps Deps) *Engine {
	t.Helper()
	return New(NewRegistry(deps), deps.Logger)
}

func testCustomer(tenantID string) *store.Customer {
	return &store.Customer{ID: "cust-1", TenantID: tenantID, Name: "Ada"}
}
