package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/medportal/internal/domain/user"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	m := NewManager("test-secret", time.Minute, time.Hour)

	tok, err := m.GenerateAccessToken("u1", "doc@example.com", user.RoleDoctor)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := m.VerifyAccessToken(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if claims.UserID != "u1" || claims.Role != user.RoleDoctor || claims.Email != "doc@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestRefreshTokenIsNotAnAccessToken(t *testing.T) {
	m := NewManager("test-secret", time.Minute, time.Hour)

	rt, err := m.GenerateRefreshToken("u1", "a@b.com", user.RolePatient)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := m.VerifyAccessToken(rt.Raw); !errors.Is(err, ErrInvalidTokenType) {
		t.Fatalf("expected ErrInvalidTokenType, got %v", err)
	}

	claims, err := m.VerifyRefreshToken(rt.Raw)
	if err != nil {
		t.Fatalf("verify refresh: %v", err)
	}
	if claims.JTI != rt.JTI {
		t.Fatalf("jti = %q, want %q", claims.JTI, rt.JTI)
	}
}

func TestExpiredAccessTokenRejected(t *testing.T) {
	m := NewManager("test-secret", time.Minute, time.Hour)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	tok, err := m.GenerateAccessToken("u1", "a@b.com", user.RoleAdmin)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := m.VerifyAccessToken(tok); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestWrongSecretRejected(t *testing.T) {
	a := NewManager("secret-a", time.Minute, time.Hour)
	b := NewManager("secret-b", time.Minute, time.Hour)

	tok, _ := a.GenerateAccessToken("u1", "a@b.com", user.RoleAdmin)

	if _, err := b.VerifyAccessToken(tok); err == nil {
		t.Fatal("expected signature mismatch")
	}
}

func TestHashRefreshTokenDeterministic(t *testing.T) {
	m := NewManager("pepper", time.Minute, time.Hour)

	if m.HashRefreshToken("abc") != m.HashRefreshToken("abc") {
		t.Fatal("hash must be deterministic")
	}
	if m.HashRefreshToken("abc") == m.HashRefreshToken("abd") {
		t.Fatal("different inputs must hash differently")
	}
}
