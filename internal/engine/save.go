package engine

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parlo-ai/parlo/internal/ai"
	"github.com/parlo-ai/parlo/internal/store"
	"github.com/parlo-ai/parlo/pkg/schema"
)

// SaveHandler persists a booking or lead from resolved step fields.
// An unrecognized model kind is recorded in the context error list and
// skipped; a missing customer skips record creation silently. Store
// failures propagate as unexpected errors.
type SaveHandler struct {
	deps Deps
}

func (h *SaveHandler) Execute(ctx context.Context, ec *ExecContext, step schema.StepDefinition) (Result, error) {
	fields := h.resolveFields(ec, step.Fields)

	switch strings.ToLower(step.Model) {
	case "booking":
		return h.saveBooking(ctx, ec, fields)
	case "lead":
		return h.saveLead(ctx, ec, fields)
	default:
		ec.AppendError("Unknown model: " + step.Model)
		return Continue(), nil
	}
}

// resolveFields substitutes {{context.path}} placeholders in string field
// values; non-string values pass through untouched.
func (h *SaveHandler) resolveFields(ec *ExecContext, fields map[string]any) map[string]any {
	resolved := make(map[string]any, len(fields))
	for key, value := range fields {
		if s, ok := value.(string); ok {
			resolved[key] = ai.ResolvePlaceholders(s, ec)
		} else {
			resolved[key] = value
		}
	}
	return resolved
}

func (h *SaveHandler) saveBooking(ctx context.Context, ec *ExecContext, fields map[string]any) (Result, error) {
	if ec.Customer == nil || ec.TenantID == "" {
		return Continue(), nil
	}
	booking := &store.Booking{
		ID:          uuid.NewString(),
		TenantID:    ec.TenantID,
		CustomerID:  ec.Customer.ID,
		ServiceType: stringField(fields, "service_type", "consultation"),
		Date:        parseDate(stringField(fields, "date", "")),
		Status:      stringField(fields, "status", "pending"),
		Notes:       stringField(fields, "notes", ""),
		Metadata:    rawField(fields, "metadata"),
	}
	if err := h.deps.Store.CreateBooking(ctx, booking); err != nil {
		return Continue(), schema.NewError(schema.ErrCodeExecution, "save step: create booking").WithCause(err)
	}
	ec.SetLastSavedRecordID(booking.ID)
	ec.AppendOutput(map[string]any{"model": "booking", "id": booking.ID})
	return Continue(), nil
}

func (h *SaveHandler) saveLead(ctx context.Context, ec *ExecContext, fields map[string]any) (Result, error) {
	if ec.Customer == nil || ec.TenantID == "" {
		return Continue(), nil
	}
	lead := &store.Lead{
		ID:         uuid.NewString(),
		TenantID:   ec.TenantID,
		CustomerID: ec.Customer.ID,
		FormType:   stringField(fields, "form_type", "contact"),
		Status:     stringField(fields, "status", "new"),
	}
	if err := h.deps.Store.CreateLead(ctx, lead); err != nil {
		return Continue(), schema.NewError(schema.ErrCodeExecution, "save step: create lead").WithCause(err)
	}
	ec.SetLastSavedRecordID(lead.ID)
	ec.AppendOutput(map[string]any{"model": "lead", "id": lead.ID})
	return Continue(), nil
}

func stringField(fields map[string]any, key, fallback string) string {
	if s, ok := fields[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func rawField(fields map[string]any, key string) json.RawMessage {
	v, ok := fields[key]
	if !ok || v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}

// parseDate accepts ISO dates; anything else yields no date rather than
// failing the step.
func parseDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}
