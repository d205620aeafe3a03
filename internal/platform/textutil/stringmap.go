// Package textutil holds small string helpers shared across the API.
package textutil

import "strings"

// NormalizeStringMap returns a copy of values with keys and values
// whitespace-trimmed. Entries whose trimmed key is empty are dropped, and a
// map with nothing left collapses to nil.
func NormalizeStringMap(values map[string]string) map[string]string {
	var out map[string]string
	for key, value := range values {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if out == nil {
			out = make(map[string]string, len(values))
		}
		out[key] = strings.TrimSpace(value)
	}
	return out
}

// Clip truncates s to at most max runes.
func Clip(s string, max int) string {
	if max <= 0 {
		return ""
	}
	seen := 0
	for i := range s {
		if seen == max {
			return s[:i]
		}
		seen++
	}
	return s
}
