package engine

import (
	"context"
	"log/slog"

	"github.com/parlo-ai/parlo/internal/ai"
	"github.com/parlo-ai/parlo/internal/store"
	"github.com/parlo-ai/parlo/pkg/schema"
)

// ResultKind is the closed set of things a step execution can mean to the
// driver loop.
type ResultKind int

const (
	// ResultContinue means the step finished silently; move to the next.
	ResultContinue ResultKind = iota
	// ResultReply means the step produced a terminal reply for this turn.
	ResultReply
	// ResultHalt means the step is waiting on user input.
	ResultHalt
)

// Result is what a handler returns to the engine. Side effects (context
// mutation, record creation, error accumulation) are applied before the
// handler returns.
type Result struct {
	Kind  ResultKind
	Reply string
}

// Continue returns a silent-continue result.
func Continue() Result { return Result{Kind: ResultContinue} }

// Reply returns a terminal-reply result.
func Reply(text string) Result { return Result{Kind: ResultReply, Reply: text} }

// Halt returns a waiting-on-user result.
func Halt() Result { return Result{Kind: ResultHalt} }

// Handler executes one step against the execution context.
// An error return means an unexpected failure; recoverable conditions are
// recorded in the context and returned as Continue instead.
type Handler interface {
	Execute(ctx context.Context, ec *ExecContext, step schema.StepDefinition) (Result, error)
}

// Deps carries the collaborators handlers share. All fields must be
// non-nil; Logger may be a discard logger in tests.
type Deps struct {
	Store   store.Store
	Gateway ai.Gateway
	Memory  *ai.MemoryBank
	Logger  *slog.Logger
}
