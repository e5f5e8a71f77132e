// Package engine implements the resumable workflow execution engine: the
// per-turn driver loop, the step handlers, and the execution context that
// round-trips through the conversation's persisted blob between turns.
package engine

import (
	"encoding/json"

	"github.com/parlo-ai/parlo/internal/store"
	"github.com/parlo-ai/parlo/pkg/schema"
)

// Reserved variable keys. They are promoted to named fields on ExecContext
// but keep their historical names in the persisted record so existing
// conversation blobs and {{context.*}} placeholders keep working.
const (
	keyLastQuestion      = "last_question"
	keyHaltedAt          = "halted_at"
	keyMemory            = "memory"
	keyConversationID    = "conversation_id"
	keyHalted            = "halted"
	keyLastSavedRecordID = "last_saved_record_id"
)

// ExecContext is the unit of cross-turn continuity for one conversation.
// Reserved keys live as typed fields; everything else goes into the
// generic variable map. The customer reference and tenant ID are transient
// and must be re-attached after deserialization.
type ExecContext struct {
	vars    map[string]any
	cursor  int
	errs    []string
	outputs []any

	lastQuestion      string
	haltedAt          int // step index of the last halt, -1 when none
	memory            map[string]any
	conversationID    string
	halted            bool
	lastSavedRecordID string

	// Transient, never serialized.
	Customer *store.Customer
	TenantID string
}

// NewExecContext returns an empty context with the cursor at zero.
func NewExecContext() *ExecContext {
	return &ExecContext{
		vars:     map[string]any{},
		haltedAt: -1,
	}
}

// Get reads a variable. Reserved keys are routed to their named fields;
// unset values read as nil.
func (c *ExecContext) Get(key string) any {
	switch key {
	case keyLastQuestion:
		if c.lastQuestion == "" {
			return nil
		}
		return c.lastQuestion
	case keyHaltedAt:
		if c.haltedAt < 0 {
			return nil
		}
		return c.haltedAt
	case keyMemory:
		if len(c.memory) == 0 {
			return nil
		}
		return c.memory
	case keyConversationID:
		if c.conversationID == "" {
			return nil
		}
		return c.conversationID
	case keyHalted:
		if !c.halted {
			return nil
		}
		return true
	case keyLastSavedRecordID:
		if c.lastSavedRecordID == "" {
			return nil
		}
		return c.lastSavedRecordID
	default:
		return c.vars[key]
	}
}

// Set writes a variable, routing reserved keys to their named fields.
func (c *ExecContext) Set(key string, value any) {
	switch key {
	case keyLastQuestion:
		c.lastQuestion, _ = value.(string)
	case keyHaltedAt:
		c.haltedAt = intFromAny(value, -1)
	case keyMemory:
		m, _ := value.(map[string]any)
		c.memory = m
	case keyConversationID:
		c.conversationID, _ = value.(string)
	case keyHalted:
		c.halted, _ = value.(bool)
	case keyLastSavedRecordID:
		c.lastSavedRecordID, _ = value.(string)
	default:
		c.vars[key] = value
	}
}

// Named accessors for the promoted fields.

func (c *ExecContext) LastQuestion() string     { return c.lastQuestion }
func (c *ExecContext) SetLastQuestion(q string) { c.lastQuestion = q }

func (c *ExecContext) HaltedAt() int         { return c.haltedAt }
func (c *ExecContext) SetHaltedAt(index int) { c.haltedAt = index }
func (c *ExecContext) ClearHaltMarkers() {
	c.lastQuestion = ""
	c.haltedAt = -1
	c.halted = false
}

func (c *ExecContext) Memory() map[string]any     { return c.memory }
func (c *ExecContext) SetMemory(m map[string]any) { c.memory = m }

func (c *ExecContext) ConversationID() string      { return c.conversationID }
func (c *ExecContext) SetConversationID(id string) { c.conversationID = id }

func (c *ExecContext) LastSavedRecordID() string      { return c.lastSavedRecordID }
func (c *ExecContext) SetLastSavedRecordID(id string) { c.lastSavedRecordID = id }

// CurrentStepIndex reports the step cursor. The cursor never decreases
// within a conversation's lifetime.
func (c *ExecContext) CurrentStepIndex() int { return c.cursor }

// AdvanceStep moves the cursor forward by one.
func (c *ExecContext) AdvanceStep() { c.cursor++ }

// advanceTo moves the cursor forward to index; it never moves backward.
func (c *ExecContext) advanceTo(index int) {
	if index > c.cursor {
		c.cursor = index
	}
}

// Halt marks the context as waiting on user input.
func (c *ExecContext) Halt() { c.halted = true }

// Halted reports whether the context is waiting on user input.
func (c *ExecContext) Halted() bool { return c.halted }

// AppendError accumulates a recoverable step error.
func (c *ExecContext) AppendError(msg string) { c.errs = append(c.errs, msg) }

// Errors returns the accumulated error strings in order.
func (c *ExecContext) Errors() []string { return c.errs }

// AppendOutput accumulates a step output record.
func (c *ExecContext) AppendOutput(out any) { c.outputs = append(c.outputs, out) }

// Outputs returns the accumulated outputs in order.
func (c *ExecContext) Outputs() []any { return c.outputs }

// State snapshots the full variable map with reserved fields folded back
// under their historical keys. The snapshot is what AI calls see as
// auxiliary context and what ToRecord persists.
func (c *ExecContext) State() map[string]any {
	state := make(map[string]any, len(c.vars)+6)
	for k, v := range c.vars {
		state[k] = v
	}
	if c.lastQuestion != "" {
		state[keyLastQuestion] = c.lastQuestion
	}
	if c.haltedAt >= 0 {
		state[keyHaltedAt] = c.haltedAt
	}
	if len(c.memory) > 0 {
		state[keyMemory] = c.memory
	}
	if c.conversationID != "" {
		state[keyConversationID] = c.conversationID
	}
	if c.halted {
		state[keyHalted] = true
	}
	if c.lastSavedRecordID != "" {
		state[keyLastSavedRecordID] = c.lastSavedRecordID
	}
	return state
}

// ToRecord serializes the context into its wire shape. The transient
// customer reference and tenant ID are never serialized.
func (c *ExecContext) ToRecord() *schema.ContextRecord {
	errs := c.errs
	if errs == nil {
		errs = []string{}
	}
	outputs := c.outputs
	if outputs == nil {
		outputs = []any{}
	}
	return &schema.ContextRecord{
		State:            c.State(),
		CurrentStepIndex: c.cursor,
		Errors:           errs,
		Outputs:          outputs,
	}
}

// FromRecord rebuilds a context from its wire shape, lifting reserved keys
// out of the state map into their named fields. Callers re-attach the
// customer reference and tenant ID afterwards.
func FromRecord(rec *schema.ContextRecord) *ExecContext {
	c := NewExecContext()
	if rec == nil {
		return c
	}
	for k, v := range rec.State {
		switch k {
		case keyLastQuestion:
			c.lastQuestion, _ = v.(string)
		case keyHaltedAt:
			c.haltedAt = intFromAny(v, -1)
		case keyMemory:
			if m, ok := v.(map[string]any); ok {
				c.memory = m
			}
		case keyConversationID:
			c.conversationID, _ = v.(string)
		case keyHalted:
			c.halted, _ = v.(bool)
		case keyLastSavedRecordID:
			c.lastSavedRecordID, _ = v.(string)
		default:
			c.vars[k] = v
		}
	}
	c.cursor = rec.CurrentStepIndex
	if len(rec.Errors) > 0 {
		c.errs = append([]string(nil), rec.Errors...)
	}
	if len(rec.Outputs) > 0 {
		c.outputs = append([]any(nil), rec.Outputs...)
	}
	return c
}

// MarshalContext serializes the context to its persisted JSON blob.
func MarshalContext(c *ExecContext) (json.RawMessage, error) {
	raw, err := json.Marshal(c.ToRecord())
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeExecution, "marshal execution context").WithCause(err)
	}
	return raw, nil
}

// UnmarshalContext rebuilds a context from a persisted blob. An empty blob
// yields a fresh context.
func UnmarshalContext(raw json.RawMessage) (*ExecContext, error) {
	if len(raw) == 0 {
		return NewExecContext(), nil
	}
	var rec schema.ContextRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, schema.NewError(schema.ErrCodeExecution, "unmarshal execution context").WithCause(err)
	}
	return FromRecord(&rec), nil
}

// intFromAny coerces JSON-decoded numbers, which arrive as float64.
func intFromAny(v any, fallback int) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return fallback
	}
}
