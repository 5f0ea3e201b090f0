package llm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ParseJSON extracts a JSON object from model output. It strips markdown
// fences, tries a direct parse, then the span from the first '{' to the
// last '}'. Anything unparseable yields an empty map.
func ParseJSON(text string) map[string]any {
	text = stripFences(strings.TrimSpace(text))

	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err == nil && out != nil {
		return out
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		out = nil
		if err := json.Unmarshal([]byte(text[start:end+1]), &out); err == nil && out != nil {
			return out
		}
	}
	return map[string]any{}
}

func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// String returns m[key] as a trimmed string. Numbers and booleans are
// formatted; null and missing keys give "".
func String(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Float returns m[key] as a float64 and whether it was numeric. Numeric
// strings are accepted.
func Float(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

// Int returns m[key] rounded toward zero.
func Int(m map[string]any, key string) (int, bool) {
	f, ok := Float(m, key)
	return int(f), ok
}

// Bool returns m[key] as a *bool, nil when absent or not a boolean.
func Bool(m map[string]any, key string) *bool {
	switch v := m[key].(type) {
	case bool:
		return &v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil
		}
		return &b
	}
	return nil
}

// Strings returns m[key] as a list of non-empty strings. A single string is
// returned as a one-element list.
func Strings(m map[string]any, key string) []string {
	var out []string
	switch v := m[key].(type) {
	case []any:
		for _, item := range v {
			s := strings.TrimSpace(fmt.Sprint(item))
			if item != nil && s != "" {
				out = append(out, s)
			}
		}
	case string:
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Object returns m[key] as a nested object, or an empty map.
func Object(m map[string]any, key string) map[string]any {
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return map[string]any{}
}
