package engine

import (
	"context"

	"github.com/parlo-ai/parlo/internal/ai"
	"github.com/parlo-ai/parlo/pkg/schema"
)

// ResponseHandler renders the step's message template against the context
// and returns it as the terminal reply for the turn.
type ResponseHandler struct{}

func (h *ResponseHandler) Execute(_ context.Context, ec *ExecContext, step schema.StepDefinition) (Result, error) {
	return Reply(ai.ResolvePlaceholders(step.Message, ec)), nil
}
