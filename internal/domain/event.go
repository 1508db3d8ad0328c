package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventKindCreated   EventKind = "created"
	EventKindCancelled EventKind = "cancelled"
	EventKindCompleted EventKind = "completed"
	EventKindRetried   EventKind = "retried"
	EventKindFailed    EventKind = "failed"
)

// JobEvent is emitted by the scheduler service on every job lifecycle
// transition. It feeds the audit writer and the analytics sink; it is a
// write-only side channel, never read back by the scheduler.
type JobEvent struct {
	Kind EventKind

	JobID    uuid.UUID
	JobType  JobType
	EntityID string

	// ActorID attributes externally triggered events (creation, cancellation).
	// Empty for runner-driven transitions.
	ActorID string

	// ScheduledAt is the job's scheduled time at the moment of the event; for
	// cancellations this is the schedule the job would have run on.
	ScheduledAt time.Time

	// Attempt is the retry count after the transition, meaningful for
	// retried/failed events.
	Attempt int

	ErrorMessage string

	OccurredAt time.Time
}

// AuditRecord is the persisted form of an externally attributed JobEvent.
type AuditRecord struct {
	ID      uuid.UUID
	Action  EventKind
	ActorID string

	JobID       uuid.UUID
	JobType     JobType
	EntityID    string
	ScheduledAt time.Time

	CreatedAt time.Time
}
