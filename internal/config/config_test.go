package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/jobs")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("expected default http addr :8080, got %q", cfg.HTTPAddr)
	}
	if cfg.PollInterval != 60*time.Second {
		t.Errorf("expected default poll interval 60s, got %v", cfg.PollInterval)
	}
	if cfg.RetentionDays != 30 {
		t.Errorf("expected default retention 30 days, got %d", cfg.RetentionDays)
	}
	if cfg.CleanupSchedule != "0 3 * * *" {
		t.Errorf("expected default cleanup schedule, got %q", cfg.CleanupSchedule)
	}
	if cfg.EventBusBufferSize != 100 {
		t.Errorf("expected default buffer 100, got %d", cfg.EventBusBufferSize)
	}
	if cfg.CertExpiryWindow != 720*time.Hour {
		t.Errorf("expected default expiry window 720h, got %v", cfg.CertExpiryWindow)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/jobs")
	t.Setenv("POLL_INTERVAL", "15s")
	t.Setenv("RECLAIM_ENABLED", "true")
	t.Setenv("RECLAIM_THRESHOLD", "20m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.PollInterval != 15*time.Second {
		t.Errorf("expected 15s poll interval, got %v", cfg.PollInterval)
	}
	if !cfg.ReclaimEnabled || cfg.ReclaimThreshold != 20*time.Minute {
		t.Errorf("expected reclaim enabled with 20m threshold, got %+v", cfg)
	}
}

func TestMaskedJSON(t *testing.T) {
	cfg := Config{
		DatabaseURL:       "postgres://user:hunter2@db:5432/jobs",
		ChangelogAPIToken: "tok_abcdef",
		CertRenewToken:    "tok_xyz",
	}

	data, err := cfg.MaskedJSON()
	if err != nil {
		t.Fatalf("MaskedJSON failed: %v", err)
	}

	out := string(data)
	for _, secret := range []string{"hunter2", "tok_abcdef", "tok_xyz"} {
		if strings.Contains(out, secret) {
			t.Errorf("secret %q leaked into masked output", secret)
		}
	}
	if !strings.Contains(out, "postgres://***") {
		t.Errorf("expected scheme-preserving mask, got %s", out)
	}
}
