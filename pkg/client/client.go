// Package client is a typed Go client for the medportal REST API. It keeps the
// token pair in a TokenStore, attaches the access token to every call and
// transparently refreshes it once when the API answers 401.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	apiPrefix        = "/api/v1"
	defaultUserAgent = "medportal-go-client"
	maxErrorBody     = 64 << 10
)

// requests to these never trigger a refresh
var authPaths = map[string]bool{
	"/auth/login/":         true,
	"/auth/register/":      true,
	"/auth/token/refresh/": true,
	"/auth/logout/":        true,
}

type Client struct {
	baseURL   string
	http      *http.Client
	tokens    TokenStore
	userAgent string
	log       *slog.Logger

	refreshMu sync.Mutex

	Patients  *PatientsService
	Doctors   *DoctorsService
	Mappings  *MappingsService
	Users     *UsersService
	Settings  *SettingsService
	Dashboard *DashboardService
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithTokenStore(s TokenStore) Option {
	return func(c *Client) { c.tokens = s }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New builds a client for the server at baseURL (scheme and host, the /api/v1
// prefix is added per request).
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}

	c := &Client{
		baseURL:   strings.TrimRight(u.String(), "/"),
		http:      &http.Client{Timeout: 15 * time.Second},
		tokens:    NewMemoryTokenStore(),
		userAgent: defaultUserAgent,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.Patients = &PatientsService{c: c}
	c.Doctors = &DoctorsService{c: c}
	c.Mappings = &MappingsService{c: c}
	c.Users = &UsersService{c: c}
	c.Settings = &SettingsService{c: c}
	c.Dashboard = &DashboardService{c: c}

	return c, nil
}

func (c *Client) Tokens() TokenStore { return c.tokens }

func (c *Client) BaseURL() string { return c.baseURL }

// do sends one API call. in is JSON encoded when non-nil; out is decoded from
// a 2xx body when non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	_, err := c.doHeader(ctx, method, path, query, in, out)
	return err
}

// doHeader is do that also hands back the response headers.
func (c *Client) doHeader(ctx context.Context, method, path string, query url.Values, in, out any) (http.Header, error) {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = b
	}

	tokens, err := c.tokens.Load()
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, method, path, query, body, tokens.Access)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && !authPaths[path] && tokens.Refresh != "" {
		drain(resp)

		access, rerr := c.refresh(ctx, tokens.Access)
		if rerr != nil {
			c.log.DebugContext(ctx, "client_refresh_failed", "err", rerr)
			_ = c.tokens.Clear()
			return nil, ErrSessionExpired
		}

		resp, err = c.send(ctx, method, path, query, body, access)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			drain(resp)
			_ = c.tokens.Clear()
			return nil, ErrSessionExpired
		}
	}

	return resp.Header, decodeResponse(resp, out)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body []byte, access string) (*http.Response, error) {
	target := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if access != "" && !authPaths[path] {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// refresh swaps the stored refresh token for a new pair. Concurrent callers
// that failed with the same access token share one refresh.
func (c *Client) refresh(ctx context.Context, staleAccess string) (string, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	current, err := c.tokens.Load()
	if err != nil {
		return "", err
	}
	if current.Access != "" && current.Access != staleAccess {
		return current.Access, nil
	}
	if current.Refresh == "" {
		return "", ErrNotAuthenticated
	}

	var next Tokens
	err = c.do(ctx, http.MethodPost, "/auth/token/refresh/", nil, map[string]string{"refresh": current.Refresh}, &next)
	if err != nil {
		return "", err
	}
	if next.Access == "" {
		return "", fmt.Errorf("refresh returned no access token")
	}
	if next.Refresh == "" {
		next.Refresh = current.Refresh
	}
	if err := c.tokens.Save(next); err != nil {
		return "", err
	}
	return next.Access, nil
}

func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return decodeAPIError(resp.StatusCode, b, resp.Header.Get("X-Request-Id"))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}
