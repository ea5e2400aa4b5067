package config_test

import (
	"testing"
	"time"

	"github.com/iho/cbledger/internal/infrastructure/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("REDIS_URL", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.StoreDriver != config.StoreMemory {
		t.Fatalf("expected memory store by default, got %s", cfg.StoreDriver)
	}

	if cfg.RedisURL != "" {
		t.Fatalf("expected redis to be disabled by default, got %q", cfg.RedisURL)
	}

	if cfg.HTTPPort != "8080" {
		t.Fatalf("expected default HTTP port 8080, got %s", cfg.HTTPPort)
	}

	if cfg.CacheTTL != 5*time.Minute {
		t.Fatalf("expected default cache ttl 5m, got %s", cfg.CacheTTL)
	}

	if !cfg.ReconcileEnabled() {
		t.Fatalf("expected a default reconciliation schedule")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("REDIS_URL", "redis://example")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DATABASE_TIMEOUT", "45s")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RECONCILE_CRON", "off")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.StoreDriver != config.StorePostgres || cfg.DatabaseURL != "postgres://example" {
		t.Fatalf("unexpected database settings: %s %s", cfg.StoreDriver, cfg.DatabaseURL)
	}

	if cfg.RedisURL != "redis://example" {
		t.Fatalf("expected custom redis URL, got %s", cfg.RedisURL)
	}

	if cfg.HTTPPort != "9090" {
		t.Fatalf("expected HTTP port override, got %s", cfg.HTTPPort)
	}

	if cfg.DatabaseTimeout != 45*time.Second {
		t.Fatalf("expected database timeout override, got %s", cfg.DatabaseTimeout)
	}

	if cfg.RateLimitRPS != 2.5 {
		t.Fatalf("expected rate limit override, got %v", cfg.RateLimitRPS)
	}

	if cfg.ReconcileEnabled() {
		t.Fatalf("expected reconciliation to be disabled, got %q", cfg.ReconcileCron)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	t.Setenv("HTTP_READ_TIMEOUT", "not-a-duration")

	if _, err := config.Load(); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}

func TestLoadUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")

	if _, err := config.Load(); err == nil {
		t.Fatalf("expected error for unknown store driver")
	}
}
