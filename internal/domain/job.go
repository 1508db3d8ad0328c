package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobType tags a ScheduledJob with the executor that runs it.
type JobType string

const (
	JobTypePublishChangelogEntry JobType = "PUBLISH_CHANGELOG_ENTRY"
	JobTypeTelemetrySend         JobType = "TELEMETRY_SEND"
	JobTypeRenewSSLCertificate   JobType = "RENEW_SSL_CERTIFICATE"
)

// KnownJobTypes lists every type an executor can be registered for.
var KnownJobTypes = []JobType{
	JobTypePublishChangelogEntry,
	JobTypeTelemetrySend,
	JobTypeRenewSSLCertificate,
}

// Valid reports whether t is a known job type.
func (t JobType) Valid() bool {
	for _, k := range KnownJobTypes {
		if t == k {
			return true
		}
	}
	return false
}

type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusCancelled JobStatus = "CANCELLED"
)

// Terminal reports whether a job in this status can never run again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// DefaultMaxRetries is applied when a caller does not specify a retry ceiling.
const DefaultMaxRetries = 3

// ScheduledJob is a unit of deferred work. Only the scheduler service mutates
// it after creation; external callers may flip PENDING to CANCELLED.
type ScheduledJob struct {
	ID   uuid.UUID
	Type JobType

	// EntityID identifies the subject of the job. Executors interpret it per
	// their own domain; it may be empty for jobs that act globally.
	EntityID string

	ScheduledAt time.Time
	Status      JobStatus

	RetryCount int
	MaxRetries int

	// ExecutedAt is set only on successful completion.
	ExecutedAt *time.Time

	// ErrorMessage holds the last failure, retained for diagnostics.
	ErrorMessage string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Due reports whether the job is eligible for execution pickup at now.
func (j ScheduledJob) Due(now time.Time) bool {
	return j.Status == JobStatusPending && !j.ScheduledAt.After(now)
}
