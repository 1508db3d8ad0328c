// Package testutil holds the handful of helpers the package tests share:
// a steppable clock for the injected clock fields, a bounded test context,
// and fixed job identifiers.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FakeClock is a manually advanced clock. Its Now method has the same shape
// as time.Now, so it drops straight into the clock fields the service,
// runner, and breaker expose for tests.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{current: start.UTC()}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the clock forward by d. Negative d moves it back.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// Set pins the clock to an exact instant.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t.UTC()
}

// TestContext returns a context bounded at 5 seconds and tied to the
// test's lifetime, so a deadlocked store or executor fails the test
// instead of hanging the run.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// MustParseUUID turns a literal id into a uuid.UUID, for tests that pin
// job or audit ids. Panics on a malformed literal.
func MustParseUUID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		panic("testutil.MustParseUUID: " + err.Error())
	}
	return id
}

// Logger satisfies the *zap.SugaredLogger constructor arguments without
// emitting anything.
func Logger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
