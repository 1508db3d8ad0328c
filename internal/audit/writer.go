// Package audit consumes job lifecycle events from the bus and persists
// attributed audit rows. It also feeds the analytics sink. The channel is
// write-only from the scheduler's point of view; nothing here is read back.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unquietwiki/changerawr-sub003/internal/domain"
)

// Store persists audit records.
type Store interface {
	InsertAuditRecord(ctx context.Context, rec domain.AuditRecord) error
}

// AnalyticsSink records per-type outcome counters. Best-effort: the sink
// handles its own errors and never affects audit correctness.
type AnalyticsSink interface {
	Record(ctx context.Context, event domain.JobEvent)
}

// DefaultDrainTimeout bounds how long shutdown waits for buffered events.
const DefaultDrainTimeout = 30 * time.Second

// Writer drains the event bus, writing audit rows for externally attributed
// actions (creation, cancellation) and analytics for every event.
type Writer struct {
	store        Store
	analytics    AnalyticsSink // optional, nil = disabled
	drainTimeout time.Duration
	logger       *zap.SugaredLogger
}

func New(store Store, logger *zap.SugaredLogger) *Writer {
	return &Writer{
		store:        store,
		drainTimeout: DefaultDrainTimeout,
		logger:       logger.Named("audit"),
	}
}

// WithAnalytics attaches the analytics sink.
func (w *Writer) WithAnalytics(sink AnalyticsSink) *Writer {
	w.analytics = sink
	return w
}

// WithDrainTimeout overrides the shutdown drain timeout.
func (w *Writer) WithDrainTimeout(d time.Duration) *Writer {
	w.drainTimeout = d
	return w
}

// Run processes events until ctx is cancelled, then drains the remaining
// buffer with a timeout.
func (w *Writer) Run(ctx context.Context, ch <-chan domain.JobEvent) {
	for {
		select {
		case <-ctx.Done():
			w.drain(ch)
			return
		case event := <-ch:
			if err := w.process(ctx, event); err != nil {
				w.logger.Errorw("event processing failed", "kind", event.Kind, "job_id", event.JobID, "error", err)
			}
		}
	}
}

// drain processes buffered events after the shutdown signal. Uses a fresh
// context since the main one is already cancelled.
func (w *Writer) drain(ch <-chan domain.JobEvent) {
	drainCtx, cancel := context.WithTimeout(context.Background(), w.drainTimeout)
	defer cancel()

	count := 0
	for {
		select {
		case <-drainCtx.Done():
			w.logger.Warnw("drain timeout", "processed", count)
			return
		case event, ok := <-ch:
			if !ok {
				w.logger.Infow("drain complete", "processed", count)
				return
			}
			if err := w.process(drainCtx, event); err != nil {
				w.logger.Errorw("drain event processing failed", "kind", event.Kind, "error", err)
			}
			count++
		default:
			if count > 0 {
				w.logger.Infow("drain complete", "processed", count)
			}
			return
		}
	}
}

func (w *Writer) process(ctx context.Context, event domain.JobEvent) error {
	if w.analytics != nil {
		w.analytics.Record(ctx, event)
	}

	if !auditable(event.Kind) {
		return nil
	}

	rec := domain.AuditRecord{
		ID:          uuid.New(),
		Action:      event.Kind,
		ActorID:     event.ActorID,
		JobID:       event.JobID,
		JobType:     event.JobType,
		EntityID:    event.EntityID,
		ScheduledAt: event.ScheduledAt,
		CreatedAt:   event.OccurredAt,
	}
	if err := w.store.InsertAuditRecord(ctx, rec); err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// auditable reports whether the event kind gets a persisted audit row.
// Runner-driven transitions are visible through job status instead.
func auditable(kind domain.EventKind) bool {
	return kind == domain.EventKindCreated || kind == domain.EventKindCancelled
}
