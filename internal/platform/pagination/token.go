package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// Cursor marks the last document of a page in a query ordered by
// (createdAt desc, document ID desc).
type Cursor struct {
	Anchor time.Time
	DocID  string
}

// EncodeCursor serialises the cursor into a base64 URL-safe page token.
func EncodeCursor(cursor Cursor) string {
	payload := fmt.Sprintf("%s|%s", cursor.Anchor.UTC().Format(time.RFC3339Nano), cursor.DocID)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// DecodeCursor parses a page token produced by EncodeCursor.
func DecodeCursor(token string) (Cursor, error) {
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	parts := strings.SplitN(string(data), "|", 2)
	if len(parts) != 2 {
		return Cursor{}, fmt.Errorf("%w: malformed payload", ErrInvalidPageToken)
	}
	anchor, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	return Cursor{Anchor: anchor, DocID: parts[1]}, nil
}
