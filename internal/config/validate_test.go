package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		DatabaseURL:        "postgres://localhost/jobs",
		PollInterval:       60 * time.Second,
		RetentionDays:      30,
		EventBusBufferSize: 100,
		CleanupSchedule:    "0 3 * * *",
	}
}

func TestValidate_Valid(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:      "missing database url",
			mutate:    func(c *Config) { c.DatabaseURL = "" },
			wantField: "DATABASE_URL",
		},
		{
			name:      "non-positive poll interval",
			mutate:    func(c *Config) { c.PollInterval = 0 },
			wantField: "POLL_INTERVAL",
		},
		{
			name:      "non-positive retention",
			mutate:    func(c *Config) { c.RetentionDays = -1 },
			wantField: "RETENTION_DAYS",
		},
		{
			name:      "non-positive buffer",
			mutate:    func(c *Config) { c.EventBusBufferSize = 0 },
			wantField: "EVENTBUS_BUFFER_SIZE",
		},
		{
			name:      "bad cleanup schedule",
			mutate:    func(c *Config) { c.CleanupSchedule = "whenever" },
			wantField: "CLEANUP_SCHEDULE",
		},
		{
			name: "reclaim threshold below poll interval",
			mutate: func(c *Config) {
				c.ReclaimEnabled = true
				c.ReclaimThreshold = 30 * time.Second
			},
			wantField: "RECLAIM_THRESHOLD",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantField) {
				t.Errorf("expected %s in error, got %q", tt.wantField, err)
			}
		})
	}
}

func TestValidate_CollectsMultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.DatabaseURL = ""
	cfg.PollInterval = 0

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}

	errs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(errs) != 2 {
		t.Errorf("expected 2 errors, got %d: %v", len(errs), errs)
	}
}

func TestValidate_ReclaimDisabledSkipsThresholdCheck(t *testing.T) {
	cfg := validConfig()
	cfg.ReclaimEnabled = false
	cfg.ReclaimThreshold = time.Second

	if err := Validate(cfg); err != nil {
		t.Errorf("disabled reclaim must not validate the threshold, got %v", err)
	}
}
