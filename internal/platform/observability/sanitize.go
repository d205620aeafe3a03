package observability

import (
	"strings"
	"unicode"
)

// Log-field ceilings. Routes are bounded by the router's own patterns and
// shopper UIDs by Firebase, so anything longer is hostile input.
const (
	maxRouteLen  = 180
	maxMethodLen = 10
	maxUserIDLen = 64
)

// SanitizeRoute strips control characters from a route label so request
// paths cannot inject log lines or blow up metric cardinality.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return clampField(route, maxRouteLen)
}

// SanitizeMethod bounds an HTTP method label.
func SanitizeMethod(method string) string {
	return clampField(method, maxMethodLen)
}

// SanitizeUserID bounds a shopper identifier before it reaches logs.
func SanitizeUserID(uid string) string {
	return clampField(uid, maxUserIDLen)
}

// clampField drops control runes and truncates to max runes. Log fields
// are single-line labels, so newlines and tabs are stripped too.
func clampField(value string, max int) string {
	var b strings.Builder
	kept := 0
	for _, r := range value {
		if unicode.IsControl(r) {
			continue
		}
		if kept == max {
			break
		}
		b.WriteRune(r)
		kept++
	}
	return b.String()
}
