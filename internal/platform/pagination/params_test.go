package pagination

import (
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	params, err := Parse(url.Values{}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.PageSize != DefaultPageSize {
		t.Fatalf("expected default page size %d got %d", DefaultPageSize, params.PageSize)
	}
	if params.PageToken != "" {
		t.Fatalf("expected empty page token got %q", params.PageToken)
	}
}

func TestParsePageSize(t *testing.T) {
	opts := Options{DefaultPageSize: 25, MaxPageSize: 40}
	values := url.Values{}
	values.Set("pageSize", "30")

	params, err := Parse(values, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.PageSize != 30 {
		t.Fatalf("expected page size 30 got %d", params.PageSize)
	}

	values.Set("pageSize", "400")
	params, err = Parse(values, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.PageSize != opts.MaxPageSize {
		t.Fatalf("expected page size clamped to %d got %d", opts.MaxPageSize, params.PageSize)
	}
}

func TestParseInvalidPageSize(t *testing.T) {
	values := url.Values{}
	values.Set("pageSize", "abc")

	if _, err := Parse(values, Options{}); !errors.Is(err, ErrInvalidPageSize) {
		t.Fatalf("expected ErrInvalidPageSize got %v", err)
	}

	values.Set("pageSize", "0")
	if _, err := Parse(values, Options{}); !errors.Is(err, ErrInvalidPageSize) {
		t.Fatalf("expected ErrInvalidPageSize for zero got %v", err)
	}
}

func TestParsePassesTokenThrough(t *testing.T) {
	values := url.Values{}
	values.Set("pageToken", "  opaque-token  ")

	params, err := Parse(values, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.PageToken != "opaque-token" {
		t.Fatalf("expected trimmed token got %q", params.PageToken)
	}
}

func TestFromRequest(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "/?pageSize=20&pageToken=abc", nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}

	params, err := FromRequest(req, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.PageSize != 20 {
		t.Fatalf("expected page size 20 got %d", params.PageSize)
	}
	if params.PageToken != "abc" {
		t.Fatalf("expected page token abc got %q", params.PageToken)
	}
}

func TestMust(t *testing.T) {
	ensured := Must(Params{})
	if ensured.PageSize != DefaultPageSize {
		t.Fatalf("expected default page size %d got %d", DefaultPageSize, ensured.PageSize)
	}

	ensured = Must(Params{PageSize: 15})
	if ensured.PageSize != 15 {
		t.Fatalf("expected page size 15 got %d", ensured.PageSize)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	anchor := time.Date(2026, time.March, 1, 10, 30, 0, 123456789, time.UTC)
	token := EncodeCursor(Cursor{Anchor: anchor, DocID: "ord_01HZX0001"})
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	cursor, err := DecodeCursor(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cursor.Anchor.Equal(anchor) {
		t.Fatalf("expected anchor %v got %v", anchor, cursor.Anchor)
	}
	if cursor.DocID != "ord_01HZX0001" {
		t.Fatalf("expected doc id ord_01HZX0001 got %q", cursor.DocID)
	}
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	cases := []string{"!!!not-base64!!!", "bm8tc2VwYXJhdG9y", "bm90LWEtdGltZXxkb2M"}
	for _, token := range cases {
		if _, err := DecodeCursor(token); !errors.Is(err, ErrInvalidPageToken) {
			t.Fatalf("expected ErrInvalidPageToken for %q got %v", token, err)
		}
	}
}
