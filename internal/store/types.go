package store

import (
	"encoding/json"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Conversation statuses.
const (
	ConversationActive = "active"
	ConversationClosed = "closed"
)

// Tenant is an isolated customer-facing business account. Every domain
// entity below is scoped to exactly one tenant.
type Tenant struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Subdomain string          `json:"subdomain"`
	Settings  json.RawMessage `json:"settings,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Customer is an end user of a tenant.
type Customer struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Conversation owns an append-only message history and the persisted
// execution context blob. Both are mutated only by the orchestrator.
type Conversation struct {
	ID              string          `json:"id"`
	TenantID        string          `json:"tenant_id"`
	CustomerID      string          `json:"customer_id,omitempty"`
	Status          string          `json:"status"`
	WorkflowContext json.RawMessage `json:"workflow_context,omitempty"`
	LastMessageAt   *time.Time      `json:"last_message_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Message is one entry in a conversation's history.
type Message struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	Role           string          `json:"role"`
	Content        string          `json:"content"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Workflow is a tenant-owned, named, ordered list of step definitions.
// Steps are stored as a JSON array and parsed at execution time.
type Workflow struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"tenant_id"`
	Name      string          `json:"name"`
	Steps     json.RawMessage `json:"steps"`
	Enabled   bool            `json:"enabled"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Lead is a captured contact-form style record.
type Lead struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	CustomerID string    `json:"customer_id"`
	FormType   string    `json:"form_type"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// Booking is an appointment record collected through a workflow.
type Booking struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id"`
	CustomerID  string          `json:"customer_id"`
	ServiceType string          `json:"service_type"`
	Date        *time.Time      `json:"date,omitempty"`
	Status      string          `json:"status"`
	Notes       string          `json:"notes,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// PromptTemplate is a global (tenant-independent) base system prompt.
type PromptTemplate struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	BasePrompt string    `json:"base_prompt"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TenantTemplate carries per-tenant overrides for a prompt template.
// The "system_prompt" override key is appended to the base prompt.
type TenantTemplate struct {
	ID         string          `json:"id"`
	TenantID   string          `json:"tenant_id"`
	TemplateID string          `json:"template_id"`
	Overrides  json.RawMessage `json:"overrides,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Event is an append-only tenant-scoped domain event.
type Event struct {
	ID         string          `json:"id"`
	TenantID   string          `json:"tenant_id"`
	EventType  string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}
