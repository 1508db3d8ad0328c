package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/unquietwiki/changerawr-sub003/internal/testutil"
)

func TestBreaker_ClosedUntilThreshold(t *testing.T) {
	cb := New(3, time.Minute)

	cb.RecordFailure("api")
	cb.RecordFailure("api")

	if err := cb.Allow("api"); err != nil {
		t.Errorf("two failures below threshold must stay closed, got %v", err)
	}

	cb.RecordFailure("api")
	if err := cb.Allow("api"); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected open circuit after threshold, got %v", err)
	}
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	cb := New(2, time.Minute)

	cb.RecordFailure("api")
	cb.RecordSuccess("api")
	cb.RecordFailure("api")

	if err := cb.Allow("api"); err != nil {
		t.Errorf("success must reset the failure count, got %v", err)
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	cb := New(1, time.Minute)
	clk := testutil.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	cb.clock = clk.Now

	cb.RecordFailure("api")
	if err := cb.Allow("api"); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected open circuit, got %v", err)
	}

	// After the cooldown a single probe is allowed.
	clk.Advance(time.Minute)
	if err := cb.Allow("api"); err != nil {
		t.Fatalf("expected half-open probe allowed, got %v", err)
	}
	if err := cb.Allow("api"); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second call during probe must be rejected, got %v", err)
	}

	// A successful probe closes the circuit again.
	cb.RecordSuccess("api")
	if err := cb.Allow("api"); err != nil {
		t.Errorf("expected closed circuit after probe success, got %v", err)
	}
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	cb := New(1, time.Minute)
	clk := testutil.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	cb.clock = clk.Now

	cb.RecordFailure("api")
	clk.Advance(time.Minute)
	if err := cb.Allow("api"); err != nil {
		t.Fatalf("expected probe allowed, got %v", err)
	}

	cb.RecordFailure("api")
	clk.Set(time.Date(2025, 6, 1, 12, 1, 1, 0, time.UTC))
	if err := cb.Allow("api"); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("failed probe must reopen the circuit, got %v", err)
	}
}

func TestBreaker_EndpointsAreIndependent(t *testing.T) {
	cb := New(1, time.Minute)

	cb.RecordFailure("down")
	if err := cb.Allow("down"); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected down endpoint open, got %v", err)
	}
	if err := cb.Allow("up"); err != nil {
		t.Errorf("unrelated endpoint must stay closed, got %v", err)
	}
}
