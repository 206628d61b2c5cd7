package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
)

// Session tracks who is logged in on top of a Client. It is safe for
// concurrent use.
type Session struct {
	c *Client

	mu      sync.RWMutex
	profile *Profile
}

func NewSession(c *Client) *Session {
	return &Session{c: c}
}

func (s *Session) Client() *Client { return s.c }

type authResponse struct {
	Tokens
	User User `json:"user"`
}

func (s *Session) Login(ctx context.Context, email, password string) (*Profile, error) {
	var out authResponse
	err := s.c.do(ctx, http.MethodPost, "/auth/login/", nil, map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	return s.start(ctx, out)
}

func (s *Session) Register(ctx context.Context, in RegisterInput) (*Profile, error) {
	if in.Password2 == "" {
		in.Password2 = in.Password
	}

	var out authResponse
	if err := s.c.do(ctx, http.MethodPost, "/auth/register/", nil, in, &out); err != nil {
		return nil, err
	}
	return s.start(ctx, out)
}

func (s *Session) start(ctx context.Context, out authResponse) (*Profile, error) {
	if err := s.c.tokens.Save(out.Tokens); err != nil {
		return nil, err
	}

	p, err := s.RefreshUser(ctx)
	if err != nil {
		// the login itself worked; fall back to the bare user
		s.c.log.DebugContext(ctx, "client_profile_load_failed", "err", err)
		p = &Profile{User: out.User}
		s.set(p)
	}
	return p, nil
}

// Logout revokes the refresh token on the server and always clears local state.
func (s *Session) Logout(ctx context.Context) error {
	t, err := s.c.tokens.Load()
	if err != nil {
		return err
	}

	var serverErr error
	if t.Refresh != "" {
		serverErr = s.c.do(ctx, http.MethodPost, "/auth/logout/", nil, map[string]string{"refresh": t.Refresh}, nil)
	}

	s.set(nil)
	if err := s.c.tokens.Clear(); err != nil {
		return err
	}
	return serverErr
}

// RefreshUser reloads the profile of the logged-in user.
func (s *Session) RefreshUser(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := s.c.do(ctx, http.MethodGet, "/auth/profile/", nil, nil, &p); err != nil {
		if errors.Is(err, ErrSessionExpired) {
			s.set(nil)
		}
		return nil, err
	}
	s.set(&p)
	return &p, nil
}

func (s *Session) UpdateProfile(ctx context.Context, in ProfileUpdate) (*Profile, error) {
	var p Profile
	if err := s.c.do(ctx, http.MethodPut, "/auth/profile/", nil, in, &p); err != nil {
		return nil, err
	}
	s.set(&p)
	return &p, nil
}

func (s *Session) ChangePassword(ctx context.Context, current, next string) error {
	err := s.c.do(ctx, http.MethodPost, "/auth/change-password/", nil, map[string]string{
		"current_password": current,
		"new_password":     next,
	}, nil)
	if err != nil {
		return err
	}
	// every refresh token was revoked server side
	s.set(nil)
	return s.c.tokens.Clear()
}

// Restore picks up a session from the token store. It returns (nil, nil) when
// nothing is stored and clears the tokens when they no longer work.
func (s *Session) Restore(ctx context.Context) (*Profile, error) {
	t, err := s.c.tokens.Load()
	if err != nil {
		return nil, err
	}
	if t.Empty() {
		return nil, nil
	}

	p, err := s.RefreshUser(ctx)
	if err != nil {
		s.set(nil)
		_ = s.c.tokens.Clear()
		return nil, err
	}
	return p, nil
}

// CurrentUser returns a copy of the logged-in user, or nil.
func (s *Session) CurrentUser() *Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return nil
	}
	cp := *s.profile
	return &cp
}

// HasRole reports whether the current user holds one of roles. No roles, or
// no user, is false.
func (s *Session) HasRole(roles ...Role) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return false
	}
	for _, r := range roles {
		if s.profile.Role == r {
			return true
		}
	}
	return false
}

// Require is the route guard: ErrNotAuthenticated without a user,
// ErrForbidden when roles are given and none match.
func (s *Session) Require(roles ...Role) error {
	if s.CurrentUser() == nil {
		return ErrNotAuthenticated
	}
	if len(roles) > 0 && !s.HasRole(roles...) {
		return ErrForbidden
	}
	return nil
}

func (s *Session) set(p *Profile) {
	s.mu.Lock()
	s.profile = p
	s.mu.Unlock()
}
