package engine

import (
	"context"
	"log/slog"

	"github.com/parlo-ai/parlo/internal/logging"
	"github.com/parlo-ai/parlo/pkg/schema"
)

// Outcome is what one engine turn produced.
type Outcome struct {
	// Reply is the assistant text for this turn; meaningful only when
	// Replied is true.
	Reply string
	// Replied distinguishes an empty reply from no reply at all.
	Replied bool
	// Halted reports the turn ended waiting on user input.
	Halted bool
}

// Engine drives one workflow turn: resume from the saved cursor, execute
// handlers in order, and decide whether to halt, continue, or reply.
// It is stateless; all cross-turn state lives in the ExecContext.
type Engine struct {
	registry *Registry
	logger   *slog.Logger
}

// New creates an engine over an immutable handler registry.
func New(registry *Registry, logger *slog.Logger) *Engine {
	return &Engine{registry: registry, logger: logger}
}

// Execute runs one turn over the step list.
//
// Resumption: when the previous turn halted on a question, the context
// carries both the pending question and the index it halted at. If the
// cursor still points at that index, the user's new message is the answer,
// so execution starts one past it and the halt markers are cleared. The
// halt index is stored explicitly rather than inferred from the cursor, so
// an ask step resumes correctly at any position in the list.
//
// Per-step protocol: a reply from a chat step returns without moving the
// cursor, so the same chat step re-executes every turn as the
// conversational tail. A reply from any other step commits the cursor to
// that step's index and returns. A halt records its index and returns the
// pending question. A silent step advances the cursor and iteration
// continues.
func (e *Engine) Execute(ctx context.Context, steps []schema.StepDefinition, ec *ExecContext) (Outcome, error) {
	start := ec.CurrentStepIndex()
	if start >= len(steps) {
		return Outcome{}, nil
	}

	if ec.LastQuestion() != "" && ec.HaltedAt() == start {
		start = ec.HaltedAt() + 1
		ec.ClearHaltMarkers()
	}

	for i := start; i < len(steps); i++ {
		step := steps[i]
		stepCtx := logging.WithStepType(ctx, string(step.Type))

		handler, ok := e.registry.Resolve(step.Type)
		if !ok {
			e.logger.DebugContext(stepCtx, "unknown step type, skipping", "index", i)
			ec.advanceTo(i + 1)
			continue
		}

		result, err := handler.Execute(stepCtx, ec, step)
		if err != nil {
			return Outcome{}, err
		}

		switch result.Kind {
		case ResultReply:
			if step.Type == schema.StepTypeChat {
				return Outcome{Reply: result.Reply, Replied: true}, nil
			}
			ec.advanceTo(i)
			return Outcome{Reply: result.Reply, Replied: true}, nil
		case ResultHalt:
			ec.SetHaltedAt(i)
			ec.Halt()
			if q := ec.LastQuestion(); q != "" {
				return Outcome{Reply: q, Replied: true, Halted: true}, nil
			}
			return Outcome{Halted: true}, nil
		default:
			ec.advanceTo(i + 1)
		}
	}
	return Outcome{}, nil
}
