package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	tenantIDKey ctxKey = iota
	conversationIDKey
	stepTypeKey
)

// WithTenantID returns a context with the tenant ID set.
func WithTenantID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, tenantIDKey, id)
}

// WithConversationID returns a context with the conversation ID set.
func WithConversationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, conversationIDKey, id)
}

// WithStepType returns a context with the executing step type set.
func WithStepType(ctx context.Context, stepType string) context.Context {
	return context.WithValue(ctx, stepTypeKey, stepType)
}

// TenantID extracts the tenant ID from the context, or "" if absent.
func TenantID(ctx context.Context) string {
	v, _ := ctx.Value(tenantIDKey).(string)
	return v
}

// ConversationID extracts the conversation ID from the context, or "" if absent.
func ConversationID(ctx context.Context) string {
	v, _ := ctx.Value(conversationIDKey).(string)
	return v
}

// StepType extracts the executing step type from the context, or "" if absent.
func StepType(ctx context.Context) string {
	v, _ := ctx.Value(stepTypeKey).(string)
	return v
}

// CorrelationHandler wraps an slog.Handler, automatically injecting
// correlation IDs from the context into every log record.
// Use with slog.New(NewCorrelationHandler(inner)) so callers can use
// logger.InfoContext(ctx, ...) and IDs appear automatically.
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps the given handler with automatic correlation ID injection.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	if v := TenantID(ctx); v != "" {
		r.AddAttrs(slog.String("tenant_id", v))
	}
	if v := ConversationID(ctx); v != "" {
		r.AddAttrs(slog.String("conversation_id", v))
	}
	if v := StepType(ctx); v != "" {
		r.AddAttrs(slog.String("step_type", v))
	}
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}
