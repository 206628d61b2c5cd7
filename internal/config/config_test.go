package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CORS_ORIGINS", "")

	cfg := Load()

	if cfg.Env != "dev" {
		t.Fatalf("env = %q, want dev", cfg.Env)
	}
	if cfg.Port != 8080 {
		t.Fatalf("port = %d, want 8080", cfg.Port)
	}
	if cfg.AccessTTL() != 15*time.Minute {
		t.Fatalf("access ttl = %s", cfg.AccessTTL())
	}
	if cfg.RefreshTTL() != 7*24*time.Hour {
		t.Fatalf("refresh ttl = %s", cfg.RefreshTTL())
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:3000" {
		t.Fatalf("cors origins = %v", cfg.CORSOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "postgres://x:y@db:5432/z")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test ,")
	t.Setenv("ADMIN_EMAIL", "Root@Example.com")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_SAMPLE_RATIO", "0.25")

	cfg := Load()

	if cfg.Port != 9000 {
		t.Fatalf("port = %d", cfg.Port)
	}
	if cfg.DBURL != "postgres://x:y@db:5432/z" {
		t.Fatalf("db url = %q", cfg.DBURL)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.test" {
		t.Fatalf("cors origins = %v", cfg.CORSOrigins)
	}
	if cfg.AdminEmail != "root@example.com" {
		t.Fatalf("admin email = %q", cfg.AdminEmail)
	}
	if !cfg.OTelEnabled {
		t.Fatal("expected otel enabled")
	}
	if cfg.OTelSampleRatio != 0.25 {
		t.Fatalf("sample ratio = %v", cfg.OTelSampleRatio)
	}
}

func TestGetEnvIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "lots")

	if got := getEnvInt("WORKER_CONCURRENCY", 4); got != 4 {
		t.Fatalf("got %d, want 4", got)
	}
}

func TestGetEnvFloatFallsBackOnGarbage(t *testing.T) {
	t.Setenv("OTEL_SAMPLE_RATIO", "half")

	if got := getEnvFloat("OTEL_SAMPLE_RATIO", 1); got != 1 {
		t.Fatalf("got %v, want 1", got)
	}
}
