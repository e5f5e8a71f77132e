package ai

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// ExtractJSON locates the first JSON object or array embedded in a model
// reply and parses it. Models wrap payloads in prose or code fences often
// enough that a plain Unmarshal of the raw text is not reliable.
func ExtractJSON(raw string) (any, bool) {
	candidate := locateJSON(raw)
	if candidate == "" {
		return nil, false
	}
	if !gjson.Valid(candidate) {
		return nil, false
	}
	var out any
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		return nil, false
	}
	return out, true
}

// ExtractJSONObject is ExtractJSON narrowed to object payloads.
func ExtractJSONObject(raw string) (map[string]any, bool) {
	v, ok := ExtractJSON(raw)
	if !ok {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

func locateJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	start := -1
	var open, close byte
	for i := 0; i < len(raw); i++ {
		if raw[i] == '{' || raw[i] == '[' {
			start = i
			open = raw[i]
			close = '}'
			if open == '[' {
				close = ']'
			}
			break
		}
	}
	if start < 0 {
		return ""
	}
	end := strings.LastIndexByte(raw, close)
	if end <= start {
		return ""
	}
	return raw[start : end+1]
}
