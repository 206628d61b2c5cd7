package utils

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor is a keyset position: the sort timestamp and id of the last row a
// client has seen. The wire form is opaque to clients.
type Cursor struct {
	At time.Time
	ID string
}

func (c Cursor) Encode() string {
	raw := strconv.FormatInt(c.At.UnixNano(), 36) + "~" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func DecodeCursor(s string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}

	ts, id, ok := strings.Cut(string(raw), "~")
	if !ok || id == "" {
		return Cursor{}, ErrInvalidCursor
	}

	nanos, err := strconv.ParseInt(ts, 36, 64)
	if err != nil || nanos <= 0 {
		return Cursor{}, ErrInvalidCursor
	}

	return Cursor{At: time.Unix(0, nanos).UTC(), ID: id}, nil
}
