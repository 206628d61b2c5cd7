package utils

import (
	"errors"
	"testing"
	"time"
)

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.UTC)

	c, err := DecodeCursor(Cursor{At: at, ID: "job-1"}.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.ID != "job-1" || !c.At.Equal(at) {
		t.Fatalf("unexpected cursor %+v", c)
	}
}

func TestDecodeCursor_Invalid(t *testing.T) {
	tests := []string{
		"",
		"%%%",
		"e30",    // no separator
		"MTIzfg", // no id
		"LTF-eA", // negative timestamp
	}
	for _, in := range tests {
		if _, err := DecodeCursor(in); !errors.Is(err, ErrInvalidCursor) {
			t.Fatalf("expected ErrInvalidCursor for %q, got %v", in, err)
		}
	}
}

func TestBuildDashboardCacheKey(t *testing.T) {
	if got := BuildDashboardCacheKey("admin", "u1"); got != "dashboard:v1:admin" {
		t.Fatalf("admin key = %q", got)
	}
	if got := BuildDashboardCacheKey("doctor", "u1"); got != "dashboard:v1:doctor:u1" {
		t.Fatalf("doctor key = %q", got)
	}
}

func TestCanonicalUUID(t *testing.T) {
	const want = "2f1b7a8e-6d55-4c1c-9a52-7f0a3d0c1e11"

	for _, in := range []string{
		want,
		"2F1B7A8E-6D55-4C1C-9A52-7F0A3D0C1E11",
		"{2f1b7a8e-6d55-4c1c-9a52-7f0a3d0c1e11}",
		"urn:uuid:2f1b7a8e-6d55-4c1c-9a52-7f0a3d0c1e11",
		"2f1b7a8e6d554c1c9a527f0a3d0c1e11",
	} {
		got, ok := CanonicalUUID(in)
		if !ok || got != want {
			t.Fatalf("CanonicalUUID(%q) = %q, %v", in, got, ok)
		}
	}

	if _, ok := CanonicalUUID("not-a-uuid"); ok {
		t.Fatal("expected invalid uuid")
	}
}
