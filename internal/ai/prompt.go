package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/parlo-ai/parlo/internal/store"
)

// VarSource exposes workflow variables to placeholder resolution without
// coupling this package to the engine's context type.
type VarSource interface {
	Get(key string) any
}

// DefaultSystemPrompt is used whenever no template is configured.
const DefaultSystemPrompt = "You are an AI assistant for a business. Always respond clearly and concisely."

var placeholderPattern = regexp.MustCompile(`\{\{context\.(.*?)\}\}`)

// BuildSystemPrompt layers the final system prompt: global template base,
// then tenant override appended, then {{context.path}} placeholders filled
// from workflow variables.
func BuildSystemPrompt(template *store.PromptTemplate, override *store.TenantTemplate, vars VarSource) string {
	if template == nil {
		return DefaultSystemPrompt
	}
	prompt := template.BasePrompt
	if override != nil && len(override.Overrides) > 0 {
		var overrides map[string]any
		if err := json.Unmarshal(override.Overrides, &overrides); err == nil {
			if extra, ok := overrides["system_prompt"].(string); ok && extra != "" {
				prompt += "\n\n" + extra
			}
		}
	}
	return ResolvePlaceholders(prompt, vars)
}

// ResolvePlaceholders substitutes {{context.key}} and nested
// {{context.key.subkey}} references. Unresolvable paths render as the
// empty string so a misconfigured template degrades instead of leaking
// placeholder syntax to customers.
func ResolvePlaceholders(text string, vars VarSource) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		path := strings.Split(placeholderPattern.FindStringSubmatch(match)[1], ".")
		return resolvePath(vars, path)
	})
}

func resolvePath(vars VarSource, path []string) string {
	if len(path) == 0 {
		return ""
	}
	value := vars.Get(path[0])
	for _, key := range path[1:] {
		m, ok := value.(map[string]any)
		if !ok {
			value = nil
			break
		}
		value = m[key]
	}
	if value == nil {
		return ""
	}
	return fmt.Sprint(value)
}
