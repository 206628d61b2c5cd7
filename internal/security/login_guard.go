package security

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/geocoder89/medportal/internal/cache"
)

var ErrLockedOut = errors.New("too many failed login attempts")

const DefaultLockWindow = 15 * time.Minute

// LoginGuard counts failed logins per email and locks the email out once the
// count reaches the configured maximum inside the window.
type LoginGuard struct {
	store  cache.Store
	window time.Duration
}

func NewLoginGuard(store cache.Store, window time.Duration) *LoginGuard {
	if window <= 0 {
		window = DefaultLockWindow
	}
	return &LoginGuard{store: store, window: window}
}

func attemptsKey(email string) string {
	return "login_attempts:" + strings.ToLower(strings.TrimSpace(email))
}

// Check returns ErrLockedOut when email already used up its attempts.
func (g *LoginGuard) Check(ctx context.Context, email string, max int) error {
	b, ok, err := g.store.Get(ctx, attemptsKey(email))
	if err != nil || !ok {
		// a cache outage must not block logins
		return nil
	}

	n, err := strconv.Atoi(string(b))
	if err != nil {
		return nil
	}
	if max > 0 && n >= max {
		return ErrLockedOut
	}
	return nil
}

// Fail records a failed attempt and returns the running count.
func (g *LoginGuard) Fail(ctx context.Context, email string) (int64, error) {
	return g.store.Incr(ctx, attemptsKey(email), g.window)
}

func (g *LoginGuard) Reset(ctx context.Context, email string) error {
	return g.store.Delete(ctx, attemptsKey(email))
}
