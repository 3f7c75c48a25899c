package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JOURNALFLOW_PG_DSN", "postgres://localhost/journalflow")
	t.Setenv("JOURNALFLOW_AUTH_SECRET", "dev-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.GRPCAddr != ":9090" {
		t.Fatalf("unexpected addresses %q %q", cfg.HTTP.Addr, cfg.GRPCAddr)
	}
	if cfg.StoreTimeout != 10*time.Second || cfg.Sweep.Interval != time.Minute {
		t.Fatalf("unexpected timeouts %v %v", cfg.StoreTimeout, cfg.Sweep.Interval)
	}
	if cfg.Database.Driver != "postgres" || cfg.Log.Format != "json" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JOURNALFLOW_STORE", "Memory")
	t.Setenv("JOURNALFLOW_AUTH_SECRET", "dev-secret")
	t.Setenv("JOURNALFLOW_STORE_TIMEOUT", "250ms")
	t.Setenv("JOURNALFLOW_RATE_PER_SEC", "2.5")
	t.Setenv("JOURNALFLOW_CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("JOURNALFLOW_DB_MAX_OPEN_CONNS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Driver != "memory" || cfg.StoreTimeout != 250*time.Millisecond || cfg.Rate.PerSecond != 2.5 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.CORSOrigins)
	}
	if cfg.Database.MaxOpenConns != 50 {
		t.Fatalf("invalid int should fall back to default, got %d", cfg.Database.MaxOpenConns)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("JOURNALFLOW_STORE", "memory")
	t.Setenv("JOURNALFLOW_AUTH_SECRET", "short")

	_, err := Load()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"memory store", "at least 32 bytes"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %q", err, want)
		}
	}
}
