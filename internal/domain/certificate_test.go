package domain

import (
	"testing"
	"time"
)

func TestCertificate_ExpiresWithin(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		window    time.Duration
		want      bool
	}{
		{name: "well inside window", expiresAt: now.Add(24 * time.Hour), window: 30 * 24 * time.Hour, want: true},
		{name: "already expired", expiresAt: now.Add(-time.Hour), window: 30 * 24 * time.Hour, want: true},
		{name: "exactly at boundary", expiresAt: now.Add(30 * 24 * time.Hour), window: 30 * 24 * time.Hour, want: true},
		{name: "past window", expiresAt: now.Add(31 * 24 * time.Hour), window: 30 * 24 * time.Hour, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Certificate{Domain: "app.example.com", ExpiresAt: tt.expiresAt}
			if got := c.ExpiresWithin(now, tt.window); got != tt.want {
				t.Errorf("ExpiresWithin(%v) = %v, want %v", tt.window, got, tt.want)
			}
		})
	}
}
