// Package conversation is the per-turn entry point: it owns the message
// history and the persisted execution context, selects the workflow, and
// delegates step execution to the engine.
package conversation

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/parlo-ai/parlo/internal/engine"
	"github.com/parlo-ai/parlo/internal/logging"
	"github.com/parlo-ai/parlo/internal/store"
	"github.com/parlo-ai/parlo/pkg/schema"
)

// Workflow selection priority. A tenant's "Chat Workflow" wins, then
// "Booking Workflow", then whatever enabled workflow comes first.
const (
	chatWorkflowName    = "Chat Workflow"
	bookingWorkflowName = "Booking Workflow"
)

// EventConversationTurn is recorded once per processed turn.
const EventConversationTurn = "conversation.turn"

// TurnResult is the outcome of one processed turn.
type TurnResult struct {
	ConversationID string
	Reply          string
	Replied        bool
	Halted         bool
}

// Orchestrator drives one conversation turn end to end. It is the only
// component that mutates a conversation's history or persisted context.
type Orchestrator struct {
	store  store.Store
	engine *engine.Engine
	logger *slog.Logger
}

// NewOrchestrator wires the per-turn driver.
func NewOrchestrator(st store.Store, eng *engine.Engine, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{store: st, engine: eng, logger: logger}
}

// ProcessTurn appends the user message, resumes the execution context,
// runs the selected workflow, persists the updated context, and appends
// the assistant reply when one was produced. On an unexpected engine
// failure nothing from the turn is persisted beyond the user message.
func (o *Orchestrator) ProcessTurn(ctx context.Context, tenant *store.Tenant, conversationID, message string) (*TurnResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "message cannot be empty")
	}

	ctx = logging.WithTenantID(ctx, tenant.ID)

	conv, err := o.findOrCreateConversation(ctx, tenant, conversationID)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithConversationID(ctx, conv.ID)

	if err := o.store.AppendMessage(ctx, &store.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           store.RoleUser,
		Content:        message,
	}); err != nil {
		return nil, err
	}

	ec, err := engine.UnmarshalContext(conv.WorkflowContext)
	if err != nil {
		return nil, err
	}
	ec.TenantID = tenant.ID
	ec.SetConversationID(conv.ID)
	if conv.CustomerID != "" {
		customer, err := o.store.GetCustomer(ctx, tenant.ID, conv.CustomerID)
		if err != nil && schema.CodeOf(err) != schema.ErrCodeNotFound {
			return nil, err
		}
		ec.Customer = customer
	}

	workflow, err := o.selectWorkflow(ctx, tenant.ID)
	if err != nil {
		return nil, err
	}
	steps, err := schema.ParseSteps(workflow.Steps)
	if err != nil {
		return nil, err
	}

	outcome, err := o.engine.Execute(ctx, steps, ec)
	if err != nil {
		return nil, err
	}

	raw, err := engine.MarshalContext(ec)
	if err != nil {
		return nil, err
	}
	if err := o.store.UpdateConversationContext(ctx, conv.ID, raw); err != nil {
		return nil, err
	}

	if outcome.Replied && outcome.Reply != "" {
		if err := o.store.AppendMessage(ctx, &store.Message{
			ID:             uuid.NewString(),
			ConversationID: conv.ID,
			Role:           store.RoleAssistant,
			Content:        outcome.Reply,
		}); err != nil {
			return nil, err
		}
	}

	o.recordTurn(ctx, tenant.ID, conv.ID, workflow.ID, outcome)

	return &TurnResult{
		ConversationID: conv.ID,
		Reply:          outcome.Reply,
		Replied:        outcome.Replied,
		Halted:         outcome.Halted,
	}, nil
}

func (o *Orchestrator) findOrCreateConversation(ctx context.Context, tenant *store.Tenant, conversationID string) (*store.Conversation, error) {
	if conversationID != "" {
		return o.store.GetConversation(ctx, tenant.ID, conversationID)
	}
	conv := &store.Conversation{
		ID:              uuid.NewString(),
		TenantID:        tenant.ID,
		Status:          store.ConversationActive,
		WorkflowContext: json.RawMessage(`{}`),
	}
	if err := o.store.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (o *Orchestrator) selectWorkflow(ctx context.Context, tenantID string) (*store.Workflow, error) {
	for _, name := range []string{chatWorkflowName, bookingWorkflowName} {
		wf, err := o.store.FindEnabledWorkflowByName(ctx, tenantID, name)
		if err == nil {
			return wf, nil
		}
		if schema.CodeOf(err) != schema.ErrCodeNotFound {
			return nil, err
		}
	}
	wf, err := o.store.FirstEnabledWorkflow(ctx, tenantID)
	if err != nil {
		if schema.CodeOf(err) == schema.ErrCodeNotFound {
			return nil, schema.NewErrorf(schema.ErrCodeNotFound, "no enabled workflow for tenant %s", tenantID)
		}
		return nil, err
	}
	return wf, nil
}

// recordTurn appends the turn event. Event recording is best effort; a
// failure is logged, never surfaced to the caller.
func (o *Orchestrator) recordTurn(ctx context.Context, tenantID, conversationID, workflowID string, outcome engine.Outcome) {
	payload, err := json.Marshal(map[string]any{
		"conversation_id": conversationID,
		"workflow_id":     workflowID,
		"replied":         outcome.Replied,
		"halted":          outcome.Halted,
	})
	if err != nil {
		return
	}
	if err := o.store.AppendEvent(ctx, &store.Event{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		EventType: EventConversationTurn,
		Payload:   payload,
	}); err != nil {
		o.logger.WarnContext(ctx, "failed to record turn event", "error", err)
	}
}
