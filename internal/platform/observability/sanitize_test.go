package observability

import (
	"strings"
	"testing"
)

func TestSanitizeRouteStripsControlRunes(t *testing.T) {
	if got := SanitizeRoute("/v1/orders\n{orderID}\t"); got != "/v1/orders{orderID}" {
		t.Fatalf("route = %q", got)
	}
	if got := SanitizeRoute(""); got != "/" {
		t.Fatalf("empty route = %q, want /", got)
	}
}

func TestSanitizeRouteClampsLength(t *testing.T) {
	got := SanitizeRoute("/v1/" + strings.Repeat("a", 400))
	if len(got) != maxRouteLen {
		t.Fatalf("route length = %d, want %d", len(got), maxRouteLen)
	}
}

func TestSanitizeUserIDClampsLength(t *testing.T) {
	if got := SanitizeUserID(""); got != "" {
		t.Fatalf("empty uid = %q", got)
	}
	got := SanitizeUserID(strings.Repeat("u", 200))
	if len(got) != maxUserIDLen {
		t.Fatalf("uid length = %d, want %d", len(got), maxUserIDLen)
	}
}
