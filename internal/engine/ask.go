package engine

import (
	"context"

	"github.com/parlo-ai/parlo/pkg/schema"
)

// AskHandler records the step's question as the pending question and
// halts the turn. It never fails.
type AskHandler struct{}

func (h *AskHandler) Execute(_ context.Context, ec *ExecContext, step schema.StepDefinition) (Result, error) {
	ec.SetLastQuestion(step.Question)
	return Halt(), nil
}
