package config

import (
	"testing"
	"time"
)

func TestLoadRequiresAuthSecret(t *testing.T) {
	t.Setenv("CYBRSENS_AUTH_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when CYBRSENS_AUTH_SECRET is unset")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CYBRSENS_AUTH_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("unexpected listen addr: %s", cfg.ListenAddr)
	}
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("unexpected access TTL: %v", cfg.AccessTokenTTL)
	}
	if cfg.RateBurst != 20 || cfg.RatePerSec != 10 {
		t.Fatalf("unexpected rate limits: %d/%d", cfg.RateBurst, cfg.RatePerSec)
	}
}

func TestLoadOverridesAndBadValuesFallBack(t *testing.T) {
	t.Setenv("CYBRSENS_AUTH_SECRET", "test-secret")
	t.Setenv("CYBRSENS_LISTEN_ADDR", ":9090")
	t.Setenv("CYBRSENS_STORE_TIMEOUT", "2s")
	t.Setenv("CYBRSENS_RATE_BURST", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Fatalf("override ignored: %s", cfg.ListenAddr)
	}
	if cfg.StoreTimeout != 2*time.Second {
		t.Fatalf("unexpected store timeout: %v", cfg.StoreTimeout)
	}
	if cfg.RateBurst != 20 {
		t.Fatalf("bad value should fall back to default, got %d", cfg.RateBurst)
	}
}
