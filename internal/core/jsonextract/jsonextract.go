// Package jsonextract recovers JSON values from untrusted model output.
// Best effort only: direct parse, then code-fence stripping, then a
// brace/bracket-balanced scan. Total failure returns ok=false, never an error.
package jsonextract

import (
	"encoding/json"
	"strings"
)

// Object extracts the first JSON object found in raw.
func Object(raw string) (map[string]any, bool) {
	for _, candidate := range candidates(raw, '{', '}') {
		var out map[string]any
		if err := json.Unmarshal([]byte(candidate), &out); err == nil {
			return out, true
		}
	}
	return nil, false
}

// Array extracts the first JSON array found in raw.
func Array(raw string) ([]any, bool) {
	for _, candidate := range candidates(raw, '[', ']') {
		var out []any
		if err := json.Unmarshal([]byte(candidate), &out); err == nil {
			return out, true
		}
	}
	return nil, false
}

func candidates(raw string, open, close byte) []string {
	trimmed := strings.TrimSpace(raw)
	out := []string{trimmed}
	if fenced := stripFences(trimmed); fenced != trimmed {
		out = append(out, fenced)
	}
	if balanced, ok := balancedSlice(trimmed, open, close); ok {
		out = append(out, balanced)
	}
	return out
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	body := strings.TrimPrefix(s, "```")
	if idx := strings.Index(body, "\n"); idx >= 0 {
		body = body[idx+1:]
	}
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body)
}

// balancedSlice returns the substring from the first opening delimiter to its
// matching close, tracking string literals and escapes.
func balancedSlice(s string, open, close byte) (string, bool) {
	start := strings.IndexByte(s, open)
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
