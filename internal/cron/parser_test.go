package cron

import (
	"testing"
	"time"
)

func TestParseSchedule(t *testing.T) {
	sched, err := ParseSchedule("0 3 * * *")
	if err != nil {
		t.Fatalf("ParseSchedule failed: %v", err)
	}

	after := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	next := sched.Next(after)
	want := time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected next fire %v, got %v", want, next)
	}
}

func TestParseSchedule_InvalidExpression(t *testing.T) {
	if _, err := ParseSchedule("nope"); err == nil {
		t.Error("expected error for invalid expression")
	}
}

func TestParseSchedule_SecondsFieldRejected(t *testing.T) {
	if _, err := ParseSchedule("0 0 3 * * *"); err == nil {
		t.Error("expected error for six-field expression")
	}
}

func TestParseSchedule_NormalizesToUTC(t *testing.T) {
	sched, err := ParseSchedule("0 3 * * *")
	if err != nil {
		t.Fatalf("ParseSchedule failed: %v", err)
	}

	// 22:30 EDT on June 1 is already past 03:00 UTC on June 2.
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation failed: %v", err)
	}
	after := time.Date(2025, 6, 1, 22, 30, 0, 0, loc)
	next := sched.Next(after).UTC()
	want := time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected next fire %v, got %v", want, next)
	}
}
