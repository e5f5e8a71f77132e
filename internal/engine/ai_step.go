package engine

import (
	"context"
	"errors"

	"github.com/parlo-ai/parlo/internal/ai"
	"github.com/parlo-ai/parlo/internal/store"
	"github.com/parlo-ai/parlo/pkg/schema"
)

// AiHandler renders a system prompt from templates, calls the language
// model with the step's instruction, and stores both the raw reply and,
// when the reply parses to a non-empty JSON object, the structured value.
// A failed call leaves the variables unset and continues.
type AiHandler struct {
	deps Deps
}

func (h *AiHandler) Execute(ctx context.Context, ec *ExecContext, step schema.StepDefinition) (Result, error) {
	template := h.resolveTemplate(ctx, step)
	override := h.resolveOverride(ctx, ec, template)

	systemPrompt := ai.BuildSystemPrompt(template, override, ec)

	raw, err := h.deps.Gateway.Call(ctx, ai.CallRequest{
		Instruction:  step.Instruction,
		SystemPrompt: systemPrompt,
		Context:      ec.State(),
	})
	if err != nil {
		h.deps.Logger.WarnContext(ctx, "ai step call failed, leaving variable unset",
			"variable", step.Variable, "error", err)
		return Continue(), nil
	}

	// The raw text is kept alongside any structured value; the frontend
	// and debugging both need it.
	ec.Set(step.Variable+"_raw", raw)

	if structured, ok := ai.ExtractJSONObject(raw); ok && len(structured) > 0 {
		ec.Set(step.Variable, structured)
	} else {
		ec.Set(step.Variable, raw)
	}
	return Continue(), nil
}

// resolveTemplate prefers the step's configured template, falling back to
// the global "default" template. A missing template is recoverable: the
// prompt builder substitutes its generic fallback.
func (h *AiHandler) resolveTemplate(ctx context.Context, step schema.StepDefinition) *store.PromptTemplate {
	var (
		template *store.PromptTemplate
		err      error
	)
	if step.TemplateID != "" {
		template, err = h.deps.Store.GetPromptTemplate(ctx, step.TemplateID)
	} else {
		template, err = h.deps.Store.GetPromptTemplateByName(ctx, "default")
	}
	if err != nil {
		if schema.CodeOf(err) != schema.ErrCodeNotFound {
			h.deps.Logger.WarnContext(ctx, "prompt template lookup failed", "error", err)
		}
		return nil
	}
	return template
}

func (h *AiHandler) resolveOverride(ctx context.Context, ec *ExecContext, template *store.PromptTemplate) *store.TenantTemplate {
	if template == nil || ec.Customer == nil || ec.TenantID == "" {
		return nil
	}
	override, err := h.deps.Store.GetTenantTemplate(ctx, ec.TenantID, template.ID)
	if err != nil {
		var serr *schema.Error
		if !errors.As(err, &serr) || serr.Code != schema.ErrCodeNotFound {
			h.deps.Logger.WarnContext(ctx, "tenant template lookup failed", "error", err)
		}
		return nil
	}
	return override
}
