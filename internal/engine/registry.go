package engine

import (
	"context"
	"log/slog"

	"github.com/parlo-ai/parlo/internal/logging"
	"github.com/parlo-ai/parlo/pkg/schema"
)

// Registry is an immutable step-type-to-handler table, built once at
// process start and passed by reference. There is no registration API
// after construction, so tests can never leak handlers into each other.
type Registry struct {
	handlers map[schema.StepType]Handler
}

// NewRegistry builds the table of built-in handlers. The reserved types
// (notify, calendar_sync, branch, wait, event_log) resolve to an explicit
// no-op handler until real ones exist.
func NewRegistry(deps Deps) *Registry {
	noop := &NoopHandler{logger: deps.Logger}
	return &Registry{handlers: map[schema.StepType]Handler{
		schema.StepTypeAsk:      &AskHandler{},
		schema.StepTypeAi:       &AiHandler{deps: deps},
		schema.StepTypeSave:     &SaveHandler{deps: deps},
		schema.StepTypeChat:     &ChatHandler{deps: deps},
		schema.StepTypeResponse: &ResponseHandler{},

		schema.StepTypeNotify:       noop,
		schema.StepTypeCalendarSync: noop,
		schema.StepTypeBranch:       noop,
		schema.StepTypeWait:         noop,
		schema.StepTypeEventLog:     noop,
	}}
}

// Resolve returns the handler for a step type. Unknown types report
// !ok and execute as no-ops in the driver loop.
func (r *Registry) Resolve(t schema.StepType) (Handler, bool) {
	h, ok := r.handlers[t]
	return h, ok
}

// NoopHandler continues silently. It backs the reserved step types and
// any unknown tag encountered in a stored workflow.
type NoopHandler struct {
	logger *slog.Logger
}

func (h *NoopHandler) Execute(ctx context.Context, _ *ExecContext, step schema.StepDefinition) (Result, error) {
	h.logger.DebugContext(logging.WithStepType(ctx, string(step.Type)), "step type has no handler, skipping")
	return Continue(), nil
}
