package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unquietwiki/changerawr-sub003/internal/domain"
)

type mockAuditStore struct {
	mu      sync.Mutex
	records []domain.AuditRecord
}

func (m *mockAuditStore) InsertAuditRecord(ctx context.Context, rec domain.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *mockAuditStore) recorded() []domain.AuditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AuditRecord, len(m.records))
	copy(out, m.records)
	return out
}

type mockAnalytics struct {
	mu     sync.Mutex
	events []domain.JobEvent
}

func (m *mockAnalytics) Record(ctx context.Context, event domain.JobEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *mockAnalytics) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func TestWriter_AuditsCreatedAndCancelledOnly(t *testing.T) {
	store := &mockAuditStore{}
	analytics := &mockAnalytics{}
	writer := New(store, zap.NewNop().Sugar()).WithAnalytics(analytics)

	ch := make(chan domain.JobEvent, 8)
	events := []domain.JobEvent{
		{Kind: domain.EventKindCreated, JobID: uuid.New(), ActorID: "admin-1"},
		{Kind: domain.EventKindCompleted, JobID: uuid.New()},
		{Kind: domain.EventKindRetried, JobID: uuid.New()},
		{Kind: domain.EventKindCancelled, JobID: uuid.New(), ActorID: "admin-2"},
		{Kind: domain.EventKindFailed, JobID: uuid.New()},
	}
	for _, ev := range events {
		ch <- ev
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		writer.Run(ctx, ch)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for analytics.count() < len(events) {
		select {
		case <-deadline:
			t.Fatal("analytics never saw all events")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done

	records := store.recorded()
	if len(records) != 2 {
		t.Fatalf("expected 2 audit rows, got %d", len(records))
	}
	if records[0].Action != domain.EventKindCreated || records[0].ActorID != "admin-1" {
		t.Errorf("unexpected first record %+v", records[0])
	}
	if records[1].Action != domain.EventKindCancelled || records[1].ActorID != "admin-2" {
		t.Errorf("unexpected second record %+v", records[1])
	}
}

func TestWriter_DrainsBufferedEventsOnShutdown(t *testing.T) {
	store := &mockAuditStore{}
	writer := New(store, zap.NewNop().Sugar())

	ch := make(chan domain.JobEvent, 8)
	for i := 0; i < 5; i++ {
		ch <- domain.JobEvent{Kind: domain.EventKindCreated, JobID: uuid.New()}
	}

	// Context is already cancelled; Run must still drain the buffer.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		writer.Run(ctx, ch)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("writer never finished draining")
	}

	if got := len(store.recorded()); got != 5 {
		t.Errorf("expected 5 drained audit rows, got %d", got)
	}
}

func TestWriter_DrainTimeout(t *testing.T) {
	store := &mockAuditStore{}
	writer := New(store, zap.NewNop().Sugar()).WithDrainTimeout(time.Nanosecond)

	ch := make(chan domain.JobEvent, 2)
	ch <- domain.JobEvent{Kind: domain.EventKindCreated}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		writer.Run(ctx, ch)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("writer did not respect drain timeout")
	}
}
