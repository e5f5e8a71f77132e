package schema

// ContextRecord is the wire form of an execution context, persisted as a
// JSON blob on the owning conversation. Reserved engine keys (pending
// question, memory, halt markers) travel inside State.
type ContextRecord struct {
	State            map[string]any `json:"state"`
	CurrentStepIndex int            `json:"current_step_index"`
	Errors           []string       `json:"errors"`
	Outputs          []any          `json:"outputs"`
}
