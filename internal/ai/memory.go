package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// memoryKeys is the closed set of fields the extraction prompt asks for,
// in display order.
var memoryKeys = []string{
	"customer_name",
	"preferred_date",
	"preferred_time",
	"service_type",
	"status",
	"notes",
}

const extractionSystemPrompt = "Extract structured information from conversations. Return only valid JSON."

const memorySchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "customer_name": {"type": "string"},
    "preferred_date": {"type": "string"},
    "preferred_time": {"type": "string"},
    "service_type": {"type": "string"},
    "status": {"type": "string"},
    "notes": {"type": "string"}
  },
  "additionalProperties": false
}`

// MemoryBank extracts and maintains structured memory of a conversation.
// Instead of replaying the full transcript on every model call, only the
// key facts are kept and merged turn over turn.
type MemoryBank struct {
	gateway Gateway
	schema  *jsonschema.Schema
	logger  *slog.Logger
}

// NewMemoryBank compiles the extraction schema once and wires the gateway.
func NewMemoryBank(gateway Gateway, logger *slog.Logger) (*MemoryBank, error) {
	compiler := jsonschema.NewCompiler()
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(memorySchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parse memory schema: %w", err)
	}
	const url = "memory://extraction-schema.json"
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("register memory schema: %w", err)
	}
	sch, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile memory schema: %w", err)
	}
	return &MemoryBank{gateway: gateway, schema: sch, logger: logger}, nil
}

// ExtractMemory pulls key facts from the recent transcript. Only the last
// 10 messages are sent to keep token cost bounded. Any failure degrades to
// an empty map; memory is an optimization, never a hard dependency.
func (m *MemoryBank) ExtractMemory(ctx context.Context, messages []ChatMessage) map[string]any {
	if len(messages) == 0 {
		return map[string]any{}
	}
	recent := messages
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}

	var transcript strings.Builder
	for i, msg := range recent {
		if i > 0 {
			transcript.WriteByte('\n')
		}
		speaker := "Assistant"
		if msg.Role == "user" {
			speaker = "User"
		}
		fmt.Fprintf(&transcript, "%s: %s", speaker, msg.Content)
	}

	prompt := fmt.Sprintf(`Extract ONLY key information from this conversation as JSON:
{
  "customer_name": "name if mentioned",
  "preferred_date": "date if mentioned",
  "preferred_time": "time if mentioned",
  "service_type": "service/consultation type if mentioned",
  "status": "current booking status (e.g., 'collecting_info', 'confirmed', etc.)",
  "notes": "any important notes or preferences"
}

Only include fields that were actually mentioned. Return JSON only, no other text.

Conversation:
%s`, transcript.String())

	raw, err := m.gateway.Call(ctx, CallRequest{
		SystemPrompt: extractionSystemPrompt,
		History:      []ChatMessage{{Role: "user", Content: prompt}},
		Extraction:   true,
	})
	if err != nil {
		m.logger.WarnContext(ctx, "memory extraction failed", "error", err)
		return map[string]any{}
	}

	extracted, ok := ExtractJSONObject(raw)
	if !ok {
		m.logger.WarnContext(ctx, "memory extraction returned no parseable object")
		return map[string]any{}
	}
	if err := m.schema.Validate(extracted); err != nil {
		m.logger.WarnContext(ctx, "memory extraction failed schema validation", "error", err)
		return map[string]any{}
	}
	return extracted
}

// MergeMemory folds a fresh extraction into existing memory. Only present,
// meaningful values overwrite; the literal string "null" and empty strings
// are treated as absent so a weak extraction never erases known facts.
func MergeMemory(old, extraction map[string]any) map[string]any {
	merged := make(map[string]any, len(old)+len(extraction))
	for k, v := range old {
		merged[k] = v
	}
	for k, v := range extraction {
		s, isStr := v.(string)
		if isStr && (s == "" || s == "null") {
			continue
		}
		if v == nil {
			continue
		}
		merged[k] = v
	}
	return merged
}

// BuildContextPrompt renders memory as a compact prompt fragment.
func BuildContextPrompt(memory map[string]any) string {
	if len(memory) == 0 {
		return ""
	}
	labels := map[string]string{
		"customer_name":  "Name",
		"preferred_date": "Preferred date",
		"preferred_time": "Preferred time",
		"service_type":   "Service type",
		"status":         "Status",
		"notes":          "Notes",
	}
	var parts []string
	if present(memory["customer_name"]) {
		parts = append(parts, "Customer information:")
	}
	for _, key := range memoryKeys {
		if present(memory[key]) {
			parts = append(parts, fmt.Sprintf("- %s: %v", labels[key], memory[key]))
		}
	}
	return strings.Join(parts, "\n")
}

func present(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}
