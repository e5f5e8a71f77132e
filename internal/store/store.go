package store

import (
	"context"
	"encoding/json"
	"time"
)

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// Tenants
	CreateTenant(ctx context.Context, t *Tenant) error
	GetTenant(ctx context.Context, id string) (*Tenant, error)
	GetTenantBySubdomain(ctx context.Context, subdomain string) (*Tenant, error)

	// Customers
	CreateCustomer(ctx context.Context, c *Customer) error
	GetCustomer(ctx context.Context, tenantID, id string) (*Customer, error)

	// Conversations
	CreateConversation(ctx context.Context, c *Conversation) error
	GetConversation(ctx context.Context, tenantID, id string) (*Conversation, error)
	UpdateConversationContext(ctx context.Context, id string, workflowContext json.RawMessage) error
	CloseIdleConversations(ctx context.Context, idleBefore time.Time) (int64, error)

	// Messages (append-only)
	AppendMessage(ctx context.Context, m *Message) error
	ListMessages(ctx context.Context, conversationID string) ([]*Message, error)

	// Workflows
	CreateWorkflow(ctx context.Context, w *Workflow) error
	GetWorkflow(ctx context.Context, tenantID, id string) (*Workflow, error)
	FindEnabledWorkflowByName(ctx context.Context, tenantID, name string) (*Workflow, error)
	FirstEnabledWorkflow(ctx context.Context, tenantID string) (*Workflow, error)
	ListWorkflows(ctx context.Context, tenantID string) ([]*Workflow, error)

	// Leads and bookings
	CreateLead(ctx context.Context, l *Lead) error
	GetLead(ctx context.Context, tenantID, id string) (*Lead, error)
	CreateBooking(ctx context.Context, b *Booking) error
	GetBooking(ctx context.Context, tenantID, id string) (*Booking, error)

	// Prompt templates
	CreatePromptTemplate(ctx context.Context, t *PromptTemplate) error
	GetPromptTemplate(ctx context.Context, id string) (*PromptTemplate, error)
	GetPromptTemplateByName(ctx context.Context, name string) (*PromptTemplate, error)
	UpsertTenantTemplate(ctx context.Context, tt *TenantTemplate) error
	GetTenantTemplate(ctx context.Context, tenantID, templateID string) (*TenantTemplate, error)

	// Events (append-only)
	AppendEvent(ctx context.Context, e *Event) error
	ListEvents(ctx context.Context, tenantID, eventType string, limit int) ([]*Event, error)

	// Maintenance
	Migrate(ctx context.Context) error

	// Lifecycle
	Close() error
}
