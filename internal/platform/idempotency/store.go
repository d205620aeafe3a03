package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// Status is the lifecycle state of a replay record.
type Status string

const (
	// DefaultTTL is how long completed replay records are retained.
	DefaultTTL = 24 * time.Hour
	// StatusPending marks a key that is reserved while its request is still running.
	StatusPending Status = "pending"
	// StatusCompleted marks a key whose response has been stored and can be replayed.
	StatusCompleted Status = "completed"
)

// ReservationState is the outcome of attempting to reserve a key.
type ReservationState int

const (
	// ReservationStateNew means the key was free and the caller owns it now.
	ReservationStateNew ReservationState = iota
	// ReservationStateCompleted means a stored response exists and should be replayed.
	ReservationStateCompleted
	// ReservationStatePending means another request is currently processing this key.
	ReservationStatePending
)

// RecordRef identifies one reservation. Scope is the API area the request
// targeted (checkout, designer, orders...), Key is the client-supplied
// idempotency key, and Owner is the authenticated UID or "anonymous". The
// same key reused by another shopper or against another area is a distinct
// reservation, never a conflict.
type RecordRef struct {
	Scope string
	Key   string
	Owner string
}

// ID returns the stable document identifier for the reference.
func (r RecordRef) ID() string {
	return sha256Hex([]byte(strings.TrimSpace(r.Scope) + "|" + strings.TrimSpace(r.Key) + "|" + strings.TrimSpace(r.Owner)))
}

// Reservation is the result of reserving a key, with the stored record when one exists.
type Reservation struct {
	State  ReservationState
	Record Record
}

// Record is the persisted reservation plus the response captured for replay.
type Record struct {
	Scope           string
	Key             string
	Owner           string
	Fingerprint     string
	Status          Status
	ResponseStatus  int
	ResponseHeaders map[string][]string
	ResponseBody    []byte
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ExpiresAt       time.Time
}

// Response is the HTTP response captured for future replays.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Store persists reservations and replayable responses.
type Store interface {
	Reserve(ctx context.Context, ref RecordRef, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error)
	SaveResponse(ctx context.Context, ref RecordRef, fingerprint string, resp Response, now time.Time, ttl time.Duration) error
	Release(ctx context.Context, ref RecordRef) error
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// ErrFingerprintMismatch is returned when an idempotency key is reused with a
// different request fingerprint.
var ErrFingerprintMismatch = errors.New("idempotency: key reserved for different request fingerprint")

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func expired(expiresAt, now time.Time) bool {
	return !expiresAt.IsZero() && !now.Before(expiresAt)
}

// storableHeaders strips hop-by-hop and volatile headers before persisting,
// so a replayed response never carries a stale Date or Content-Length.
func storableHeaders(header http.Header) map[string][]string {
	if len(header) == 0 {
		return nil
	}
	filtered := make(map[string][]string, len(header))
	for name, values := range header {
		canonical := http.CanonicalHeaderKey(name)
		if volatileHeader(canonical) {
			continue
		}
		filtered[canonical] = append([]string(nil), values...)
	}
	if len(filtered) == 0 {
		return nil
	}
	return filtered
}

func volatileHeader(name string) bool {
	switch strings.ToLower(name) {
	case "content-length", "date", "connection", "keep-alive", "proxy-authenticate", "proxy-authorization", "te", "trailers", "transfer-encoding", "upgrade":
		return true
	default:
		return false
	}
}

func headersFromRecord(values map[string][]string) http.Header {
	header := make(http.Header, len(values))
	for name, vals := range values {
		header[name] = append([]string(nil), vals...)
	}
	return header
}
