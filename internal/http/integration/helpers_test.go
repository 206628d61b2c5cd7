package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/geocoder89/medportal/internal/config"
	"github.com/geocoder89/medportal/internal/db"
	apphttp "github.com/geocoder89/medportal/internal/http"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "Adm1n-Password!"
	userPassword  = "Sup3r-Secret!pass"
)

type testEnv struct {
	router *gin.Engine
	pool   *pgxpool.Pool
	cfg    config.Config
}

func testConfig() config.Config {
	return config.Config{
		Env:                 "test",
		AdminEmail:          adminEmail,
		AdminPassword:       adminPassword,
		AdminName:           "Test Admin",
		AdminRole:           "admin",
		JWTSecret:           "test-secret-key",
		JWTAccessTTLMinutes: 60,
		JWTRefreshTTLDays:   7,
		MaxBodyBytes:        1 << 20,
		AuthRateLimit:       1000,
	}
}

// setupEnv needs a disposable database in TEST_DB_DSN. Every call wipes it.
func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}

	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	pool, err := db.NewPool(ctx, dsn, db.PoolOptions{AppName: "medportal-test", MaxConns: 4})
	if err != nil {
		t.Fatalf("failed to create pgx pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := db.NewMigrator(pool, db.Migrations()).Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE notification_deliveries, jobs, patient_doctor_mappings,
			patients, doctors, refresh_tokens, users RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
	// the settings row goes with the users cascade
	if _, err := pool.Exec(ctx, `INSERT INTO system_settings (id) VALUES (1) ON CONFLICT (id) DO NOTHING`); err != nil {
		t.Fatalf("seed settings: %v", err)
	}

	cfg := testConfig()
	if _, err := db.EnsureAdminUser(ctx, pool, cfg); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := apphttp.NewRouter(apphttp.RouterDeps{Log: logger, Config: cfg, Pool: pool})

	return &testEnv{router: router, pool: pool, cfg: cfg}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type tokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	User    struct {
		ID   string `json:"id"`
		Role string `json:"role"`
	} `json:"user"`
}

func (e *testEnv) login(t *testing.T, email, password string) tokenPair {
	t.Helper()

	w := e.do(t, http.MethodPost, "/api/v1/auth/login/", map[string]string{
		"email":    email,
		"password": password,
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d body=%s", email, w.Code, w.Body.String())
	}

	var out tokenPair
	mustDecode(t, w, &out)
	return out
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func mustDecode(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response: %v body=%s", err, w.Body.String())
	}
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	mustDecode(t, w, &env)
	return env.Error.Code
}

func refreshCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "refresh_token" {
			return c
		}
	}
	t.Fatalf("no refresh_token cookie in response")
	return nil
}

func patientSignup(email string) map[string]any {
	return map[string]any{
		"email":          email,
		"password":       userPassword,
		"password2":      userPassword,
		"full_name":      "Pat Ient",
		"role":           "patient",
		"contact_number": "08012345678",
		"age":            34,
		"gender":         "female",
	}
}
