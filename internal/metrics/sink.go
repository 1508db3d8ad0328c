package metrics

import "time"

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or
// propagate errors. If the metrics backend is unavailable, implementations
// log warnings and continue.
type Sink interface {
	// Runner metrics
	TickStarted()
	TickCompleted(duration time.Duration, executed int, err error)

	// Service metrics
	JobCreated(jobType string)
	JobCancelled(jobType string)
	ExecutionCompleted(jobType, outcome string, duration time.Duration)
	JobsCleaned(count int64)

	// Reconciler metrics
	JobsReclaimed(count int64)

	// EventBus metrics
	BufferCapacitySet(capacity int)
	BufferSizeUpdate(size int)
	EmitError()
}

// Outcome labels for ExecutionCompleted. Bounded cardinality.
const (
	OutcomeCompleted = "completed"
	OutcomeRetried   = "retried"
	OutcomeFailed    = "failed"
)
