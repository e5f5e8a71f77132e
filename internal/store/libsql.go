// Package store implements persistence for tenants, conversations,
// workflows, and the records workflows create, backed by libSQL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/parlo-ai/parlo/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB for advanced usage.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// --- Tenants ---

func (s *LibSQLStore) CreateTenant(ctx context.Context, t *Tenant) error {
	settings, err := nullableJSON(t.Settings)
	if err != nil {
		return fmt.Errorf("marshal tenant settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tenants (id, name, subdomain, settings, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Subdomain, settings, timeOrNow(t.CreatedAt), timeOrNow(t.UpdatedAt),
	)
	return err
}

func (s *LibSQLStore) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	return s.scanTenant(s.db.QueryRowContext(ctx,
		`SELECT id, name, subdomain, settings, created_at, updated_at FROM tenants WHERE id = ?`, id), id)
}

func (s *LibSQLStore) GetTenantBySubdomain(ctx context.Context, subdomain string) (*Tenant, error) {
	return s.scanTenant(s.db.QueryRowContext(ctx,
		`SELECT id, name, subdomain, settings, created_at, updated_at FROM tenants WHERE subdomain = ?`, subdomain), subdomain)
}

func (s *LibSQLStore) scanTenant(row *sql.Row, key string) (*Tenant, error) {
	t := &Tenant{}
	var settings sql.NullString
	err := row.Scan(&t.ID, &t.Name, &t.Subdomain, &settings, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("tenant", key)
	}
	if err != nil {
		return nil, err
	}
	t.Settings = jsonOrNil(settings)
	return t, nil
}

// --- Customers ---

func (s *LibSQLStore) CreateCustomer(ctx context.Context, c *Customer) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO customers (id, tenant_id, name, email, phone, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.TenantID, c.Name, c.Email, nullStr(c.Phone), timeOrNow(c.CreatedAt), timeOrNow(c.UpdatedAt),
	)
	return err
}

func (s *LibSQLStore) GetCustomer(ctx context.Context, tenantID, id string) (*Customer, error) {
	c := &Customer{}
	var phone sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, name, email, phone, created_at, updated_at
		 FROM customers WHERE tenant_id = ? AND id = ?`, tenantID, id,
	).Scan(&c.ID, &c.TenantID, &c.Name, &c.Email, &phone, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("customer", id)
	}
	if err != nil {
		return nil, err
	}
	c.Phone = phone.String
	return c, nil
}

// --- Conversations ---

func (s *LibSQLStore) CreateConversation(ctx context.Context, c *Conversation) error {
	wfCtx, err := nullableJSON(c.WorkflowContext)
	if err != nil {
		return fmt.Errorf("marshal workflow context: %w", err)
	}
	if c.Status == "" {
		c.Status = ConversationActive
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, tenant_id, customer_id, status, workflow_context, last_message_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.TenantID, nullStr(c.CustomerID), c.Status, wfCtx, nullTime(c.LastMessageAt),
		timeOrNow(c.CreatedAt), timeOrNow(c.UpdatedAt),
	)
	return err
}

func (s *LibSQLStore) GetConversation(ctx context.Context, tenantID, id string) (*Conversation, error) {
	c := &Conversation{}
	var customerID, wfCtx sql.NullString
	var lastMessageAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, customer_id, status, workflow_context, last_message_at, created_at, updated_at
		 FROM conversations WHERE tenant_id = ? AND id = ?`, tenantID, id,
	).Scan(&c.ID, &c.TenantID, &customerID, &c.Status, &wfCtx, &lastMessageAt, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("conversation", id)
	}
	if err != nil {
		return nil, err
	}
	c.CustomerID = customerID.String
	c.WorkflowContext = jsonOrNil(wfCtx)
	if lastMessageAt.Valid {
		c.LastMessageAt = &lastMessageAt.Time
	}
	return c, nil
}

func (s *LibSQLStore) UpdateConversationContext(ctx context.Context, id string, workflowContext json.RawMessage) error {
	wfCtx, err := nullableJSON(workflowContext)
	if err != nil {
		return fmt.Errorf("marshal workflow context: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET workflow_context = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		wfCtx, id,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "conversation", id)
}

func (s *LibSQLStore) CloseIdleConversations(ctx context.Context, idleBefore time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE status = ? AND last_message_at IS NOT NULL AND last_message_at < ?`,
		ConversationClosed, ConversationActive, idleBefore,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Messages ---

func (s *LibSQLStore) AppendMessage(ctx context.Context, m *Message) error {
	metadata, err := nullableJSON(m.Metadata)
	if err != nil {
		return fmt.Errorf("marshal message metadata: %w", err)
	}
	createdAt := timeOrNow(m.CreatedAt)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.Role, m.Content, metadata, createdAt,
	)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE conversations SET last_message_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		createdAt, m.ConversationID,
	)
	return err
}

func (s *LibSQLStore) ListMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, metadata, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY created_at, id`, conversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		m := &Message{}
		var metadata sql.NullString
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &metadata, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Metadata = jsonOrNil(metadata)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// --- Workflows ---

func (s *LibSQLStore) CreateWorkflow(ctx context.Context, w *Workflow) error {
	steps := w.Steps
	if len(steps) == 0 {
		steps = json.RawMessage("[]")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workflows (id, tenant_id, name, steps, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name=excluded.name, steps=excluded.steps,
		   enabled=excluded.enabled, updated_at=CURRENT_TIMESTAMP`,
		w.ID, w.TenantID, w.Name, string(steps), boolInt(w.Enabled),
		timeOrNow(w.CreatedAt), timeOrNow(w.UpdatedAt),
	)
	return err
}

func (s *LibSQLStore) GetWorkflow(ctx context.Context, tenantID, id string) (*Workflow, error) {
	return s.scanWorkflow(s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, name, steps, enabled, created_at, updated_at
		 FROM workflows WHERE tenant_id = ? AND id = ?`, tenantID, id), id)
}

func (s *LibSQLStore) FindEnabledWorkflowByName(ctx context.Context, tenantID, name string) (*Workflow, error) {
	return s.scanWorkflow(s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, name, steps, enabled, created_at, updated_at
		 FROM workflows WHERE tenant_id = ? AND name = ? AND enabled = 1
		 ORDER BY created_at LIMIT 1`, tenantID, name), name)
}

func (s *LibSQLStore) FirstEnabledWorkflow(ctx context.Context, tenantID string) (*Workflow, error) {
	return s.scanWorkflow(s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, name, steps, enabled, created_at, updated_at
		 FROM workflows WHERE tenant_id = ? AND enabled = 1
		 ORDER BY created_at LIMIT 1`, tenantID), tenantID)
}

func (s *LibSQLStore) ListWorkflows(ctx context.Context, tenantID string) ([]*Workflow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, name, steps, enabled, created_at, updated_at
		 FROM workflows WHERE tenant_id = ? ORDER BY created_at`, tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []*Workflow
	for rows.Next() {
		w := &Workflow{}
		var steps string
		var enabled int
		if err := rows.Scan(&w.ID, &w.TenantID, &w.Name, &steps, &enabled, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		w.Steps = json.RawMessage(steps)
		w.Enabled = enabled != 0
		workflows = append(workflows, w)
	}
	return workflows, rows.Err()
}

func (s *LibSQLStore) scanWorkflow(row *sql.Row, key string) (*Workflow, error) {
	w := &Workflow{}
	var steps string
	var enabled int
	err := row.Scan(&w.ID, &w.TenantID, &w.Name, &steps, &enabled, &w.CreatedAt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("workflow", key)
	}
	if err != nil {
		return nil, err
	}
	w.Steps = json.RawMessage(steps)
	w.Enabled = enabled != 0
	return w, nil
}

// --- Leads and bookings ---

func (s *LibSQLStore) CreateLead(ctx context.Context, l *Lead) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (id, tenant_id, customer_id, form_type, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		l.ID, l.TenantID, l.CustomerID, l.FormType, l.Status, timeOrNow(l.CreatedAt),
	)
	return err
}

func (s *LibSQLStore) GetLead(ctx context.Context, tenantID, id string) (*Lead, error) {
	l := &Lead{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, customer_id, form_type, status, created_at
		 FROM leads WHERE tenant_id = ? AND id = ?`, tenantID, id,
	).Scan(&l.ID, &l.TenantID, &l.CustomerID, &l.FormType, &l.Status, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("lead", id)
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (s *LibSQLStore) CreateBooking(ctx context.Context, b *Booking) error {
	metadata, err := nullableJSON(b.Metadata)
	if err != nil {
		return fmt.Errorf("marshal booking metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO bookings (id, tenant_id, customer_id, service_type, date, status, notes, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.TenantID, b.CustomerID, b.ServiceType, nullTime(b.Date), b.Status,
		nullStr(b.Notes), metadata, timeOrNow(b.CreatedAt),
	)
	return err
}

func (s *LibSQLStore) GetBooking(ctx context.Context, tenantID, id string) (*Booking, error) {
	b := &Booking{}
	var date sql.NullTime
	var notes, metadata sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, customer_id, service_type, date, status, notes, metadata, created_at
		 FROM bookings WHERE tenant_id = ? AND id = ?`, tenantID, id,
	).Scan(&b.ID, &b.TenantID, &b.CustomerID, &b.ServiceType, &date, &b.Status, &notes, &metadata, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("booking", id)
	}
	if err != nil {
		return nil, err
	}
	if date.Valid {
		b.Date = &date.Time
	}
	b.Notes = notes.String
	b.Metadata = jsonOrNil(metadata)
	return b, nil
}

// --- Prompt templates ---

func (s *LibSQLStore) CreatePromptTemplate(ctx context.Context, t *PromptTemplate) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prompt_templates (id, name, base_prompt, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET base_prompt=excluded.base_prompt, updated_at=CURRENT_TIMESTAMP`,
		t.ID, t.Name, t.BasePrompt, timeOrNow(t.CreatedAt), timeOrNow(t.UpdatedAt),
	)
	return err
}

func (s *LibSQLStore) GetPromptTemplate(ctx context.Context, id string) (*PromptTemplate, error) {
	return s.scanPromptTemplate(s.db.QueryRowContext(ctx,
		`SELECT id, name, base_prompt, created_at, updated_at FROM prompt_templates WHERE id = ?`, id), id)
}

func (s *LibSQLStore) GetPromptTemplateByName(ctx context.Context, name string) (*PromptTemplate, error) {
	return s.scanPromptTemplate(s.db.QueryRowContext(ctx,
		`SELECT id, name, base_prompt, created_at, updated_at FROM prompt_templates WHERE name = ?`, name), name)
}

func (s *LibSQLStore) scanPromptTemplate(row *sql.Row, key string) (*PromptTemplate, error) {
	t := &PromptTemplate{}
	err := row.Scan(&t.ID, &t.Name, &t.BasePrompt, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("prompt template", key)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *LibSQLStore) UpsertTenantTemplate(ctx context.Context, tt *TenantTemplate) error {
	overrides, err := nullableJSON(tt.Overrides)
	if err != nil {
		return fmt.Errorf("marshal tenant template overrides: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tenant_templates (id, tenant_id, template_id, overrides, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(tenant_id, template_id) DO UPDATE SET overrides=excluded.overrides`,
		tt.ID, tt.TenantID, tt.TemplateID, overrides, timeOrNow(tt.CreatedAt),
	)
	return err
}

func (s *LibSQLStore) GetTenantTemplate(ctx context.Context, tenantID, templateID string) (*TenantTemplate, error) {
	tt := &TenantTemplate{}
	var overrides sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, template_id, overrides, created_at
		 FROM tenant_templates WHERE tenant_id = ? AND template_id = ?`, tenantID, templateID,
	).Scan(&tt.ID, &tt.TenantID, &tt.TemplateID, &overrides, &tt.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("tenant template", templateID)
	}
	if err != nil {
		return nil, err
	}
	tt.Overrides = jsonOrNil(overrides)
	return tt, nil
}

// --- Events ---

func (s *LibSQLStore) AppendEvent(ctx context.Context, e *Event) error {
	payload, err := nullableJSON(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (id, tenant_id, event_type, payload, occurred_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.TenantID, e.EventType, payload, timeOrNow(e.OccurredAt),
	)
	return err
}

func (s *LibSQLStore) ListEvents(ctx context.Context, tenantID, eventType string, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, tenant_id, event_type, payload, occurred_at
		 FROM events WHERE tenant_id = ?`
	args := []any{tenantID}
	if eventType != "" {
		query += ` AND event_type = ?`
		args = append(args, eventType)
	}
	query += ` ORDER BY occurred_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		var payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TenantID, &e.EventType, &payload, &e.OccurredAt); err != nil {
			return nil, err
		}
		e.Payload = jsonOrNil(payload)
		events = append(events, e)
	}
	return events, rows.Err()
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.Error {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func jsonOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

func nullableJSON(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("invalid JSON")
	}
	return string(raw), nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
