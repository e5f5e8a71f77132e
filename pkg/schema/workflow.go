package schema

import "encoding/json"

// StepType enumerates the kinds of steps in a workflow.
// The five built-in types have handlers; the remaining tags are reserved
// and currently execute as no-ops.
type StepType string

const (
	StepTypeAsk      StepType = "ask"
	StepTypeAi       StepType = "ai"
	StepTypeSave     StepType = "save"
	StepTypeChat     StepType = "chat"
	StepTypeResponse StepType = "response"

	// Reserved for future handlers.
	StepTypeNotify       StepType = "notify"
	StepTypeCalendarSync StepType = "calendar_sync"
	StepTypeBranch       StepType = "branch"
	StepTypeWait         StepType = "wait"
	StepTypeEventLog     StepType = "event_log"
)

// StepDefinition is one declarative unit of work in a workflow.
// It is a tagged record: Type selects the handler, the remaining fields
// are type-specific. Malformed definitions are not rejected up front;
// they fail (or no-op) at execution time.
type StepDefinition struct {
	Type StepType `json:"type"`

	// ask
	Question string `json:"question,omitempty"`

	// ask, ai
	Variable string `json:"variable,omitempty"`

	// ai
	Instruction string `json:"instruction,omitempty"`
	TemplateID  string `json:"template_id,omitempty"`

	// save
	Model  string         `json:"model,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`

	// chat
	SystemPrompt string `json:"system_prompt,omitempty"`

	// response
	Message string `json:"message,omitempty"`
}

// ParseSteps decodes a persisted step array.
func ParseSteps(raw json.RawMessage) ([]StepDefinition, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var steps []StepDefinition
	if err := json.Unmarshal(raw, &steps); err != nil {
		return nil, NewErrorf(ErrCodeValidation, "parse workflow steps: %s", err.Error()).WithCause(err)
	}
	return steps, nil
}
