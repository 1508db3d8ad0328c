// Package scheduler owns the scheduled-job state machine and the polling
// runner that drives it.
//
// State machine: PENDING → RUNNING → {COMPLETED, PENDING (retry), FAILED};
// PENDING → CANCELLED is the only external transition. RUNNING exists only
// for the duration of one execution attempt.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unquietwiki/changerawr-sub003/internal/domain"
	"github.com/unquietwiki/changerawr-sub003/internal/executor"
)

// ErrJobNotFound is returned by Store lookups for an unknown job id.
var ErrJobNotFound = errors.New("scheduled job not found")

// RetryBackoff is the fixed delay before a failed job becomes due again.
// Deliberately not exponential: these are low-volume administrative jobs
// where burst retry storms are not a realistic risk.
const RetryBackoff = 5 * time.Minute

// Store is the persistence contract the service needs. Claim and cancel are
// conditional single-row updates; the false return on a precondition miss is
// how concurrent claimers lose the race without error.
type Store interface {
	InsertJob(ctx context.Context, job domain.ScheduledJob) error
	GetJobByID(ctx context.Context, id uuid.UUID) (domain.ScheduledJob, error)
	GetDueJobs(ctx context.Context, now time.Time) ([]domain.ScheduledJob, error)
	GetJobsForEntity(ctx context.Context, entityID string, typ *domain.JobType) ([]domain.ScheduledJob, error)
	ClaimJob(ctx context.Context, id uuid.UUID, now time.Time) (domain.ScheduledJob, bool, error)
	CancelJob(ctx context.Context, id uuid.UUID, now time.Time) (domain.ScheduledJob, bool, error)
	CompleteJob(ctx context.Context, id uuid.UUID, executedAt time.Time) error
	RescheduleJob(ctx context.Context, id uuid.UUID, retryCount int, errorMessage string, nextAt, now time.Time) error
	FailJob(ctx context.Context, id uuid.UUID, retryCount int, errorMessage string, now time.Time) error
	DeleteJobsOlderThan(ctx context.Context, cutoff time.Time, statuses []domain.JobStatus) (int64, error)
}

// EventEmitter receives job lifecycle events. Emission is best-effort; a
// full buffer never fails the underlying operation.
type EventEmitter interface {
	Emit(ctx context.Context, event domain.JobEvent) error
}

// MetricsSink records service and runner metrics. All methods are
// fire-and-forget: implementations must not block or propagate errors.
type MetricsSink interface {
	JobCreated(jobType string)
	JobCancelled(jobType string)
	ExecutionCompleted(jobType, outcome string, duration time.Duration)
	JobsCleaned(count int64)
	TickStarted()
	TickCompleted(duration time.Duration, executed int, err error)
}

// Execution outcome labels for ExecutionCompleted.
const (
	OutcomeCompleted = "completed"
	OutcomeRetried   = "retried"
	OutcomeFailed    = "failed"
)

// NewJob describes a job to create. A nil MaxRetries applies the default.
type NewJob struct {
	Type        domain.JobType
	EntityID    string
	ScheduledAt time.Time
	MaxRetries  *int
	ActorID     string
}

// Service implements the job state machine atop the Store and the executor
// registry. It is safe for concurrent use by the runner and external callers.
type Service struct {
	store    Store
	registry *executor.Registry
	events   EventEmitter // optional, nil = disabled
	metrics  MetricsSink  // optional, nil = disabled
	clock    func() time.Time
	logger   *zap.SugaredLogger
}

func NewService(store Store, registry *executor.Registry, logger *zap.SugaredLogger) *Service {
	return &Service{
		store:    store,
		registry: registry,
		clock:    time.Now,
		logger:   logger.Named("service"),
	}
}

// WithEvents attaches the lifecycle event emitter.
func (s *Service) WithEvents(emitter EventEmitter) *Service {
	s.events = emitter
	return s
}

// WithMetrics attaches a metrics sink.
func (s *Service) WithMetrics(sink MetricsSink) *Service {
	s.metrics = sink
	return s
}

// CreateJob inserts a new PENDING job and returns its id. The entity id is
// not validated against the target domain; executors own that at run time.
func (s *Service) CreateJob(ctx context.Context, p NewJob) (uuid.UUID, error) {
	now := s.clock().UTC()

	maxRetries := domain.DefaultMaxRetries
	if p.MaxRetries != nil {
		if *p.MaxRetries < 0 {
			return uuid.Nil, fmt.Errorf("max retries must be >= 0, got %d", *p.MaxRetries)
		}
		maxRetries = *p.MaxRetries
	}

	job := domain.ScheduledJob{
		ID:          uuid.New(),
		Type:        p.Type,
		EntityID:    p.EntityID,
		ScheduledAt: p.ScheduledAt.UTC(),
		Status:      domain.JobStatusPending,
		MaxRetries:  maxRetries,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.InsertJob(ctx, job); err != nil {
		return uuid.Nil, fmt.Errorf("insert job: %w", err)
	}

	s.logger.Infow("job created",
		"job_id", job.ID,
		"type", job.Type,
		"entity_id", job.EntityID,
		"scheduled_at", job.ScheduledAt.Format(time.RFC3339))

	if s.metrics != nil {
		s.metrics.JobCreated(string(job.Type))
	}
	s.emit(ctx, domain.JobEvent{
		Kind:        domain.EventKindCreated,
		JobID:       job.ID,
		JobType:     job.Type,
		EntityID:    job.EntityID,
		ActorID:     p.ActorID,
		ScheduledAt: job.ScheduledAt,
		OccurredAt:  now,
	})

	return job.ID, nil
}

// CancelJob flips a PENDING job to CANCELLED. It returns false, without
// error, when the job is missing or no longer cancellable; cancellation is
// never retried or escalated.
func (s *Service) CancelJob(ctx context.Context, id uuid.UUID, actorID string) (bool, error) {
	now := s.clock().UTC()

	job, ok, err := s.store.CancelJob(ctx, id, now)
	if err != nil {
		return false, fmt.Errorf("cancel job: %w", err)
	}
	if !ok {
		return false, nil
	}

	s.logger.Infow("job cancelled",
		"job_id", id,
		"type", job.Type,
		"actor_id", actorID,
		"was_scheduled_at", job.ScheduledAt.Format(time.RFC3339))

	if s.metrics != nil {
		s.metrics.JobCancelled(string(job.Type))
	}
	s.emit(ctx, domain.JobEvent{
		Kind:        domain.EventKindCancelled,
		JobID:       id,
		JobType:     job.Type,
		EntityID:    job.EntityID,
		ActorID:     actorID,
		ScheduledAt: job.ScheduledAt,
		OccurredAt:  now,
	})

	return true, nil
}

// GetDueJobs is a read-only pass-through to the store's due query, safe to
// call on every poll tick.
func (s *Service) GetDueJobs(ctx context.Context, now time.Time) ([]domain.ScheduledJob, error) {
	return s.store.GetDueJobs(ctx, now)
}

// GetJobsForEntity returns jobs for a subject, newest first, for status
// display. A nil typ returns all types.
func (s *Service) GetJobsForEntity(ctx context.Context, entityID string, typ *domain.JobType) ([]domain.ScheduledJob, error) {
	return s.store.GetJobsForEntity(ctx, entityID, typ)
}

// GetJob returns one job by id.
func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (domain.ScheduledJob, error) {
	return s.store.GetJobByID(ctx, id)
}

// ExecuteJob runs one execution attempt for a PENDING job.
//
// It returns true only when the executor fully succeeded. A false return
// with nil error covers both the lost claim race and a failed attempt;
// executor errors never escape, they become retry/failure transitions.
// Only store-level I/O failures are returned as errors.
func (s *Service) ExecuteJob(ctx context.Context, id uuid.UUID) (bool, error) {
	now := s.clock().UTC()

	// Claim writes RUNNING through before any work happens, so a crash
	// mid-execution leaves the job visibly stuck rather than re-claimable.
	job, claimed, err := s.store.ClaimJob(ctx, id, now)
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	if !claimed {
		return false, nil
	}

	var execErr error
	ex, ok := s.registry.Lookup(job.Type)
	if !ok {
		// Registration bug. Deliberately not special-cased: it flows
		// through the same retry-then-fail path as any executor error.
		execErr = fmt.Errorf("no executor registered for job type %q", job.Type)
	} else {
		execErr = runExecutor(ctx, ex, job.EntityID)
	}

	finishedAt := s.clock().UTC()

	if execErr == nil {
		if err := s.store.CompleteJob(ctx, id, finishedAt); err != nil {
			return false, fmt.Errorf("complete job: %w", err)
		}

		s.logger.Infow("job completed",
			"job_id", id,
			"type", job.Type,
			"duration", finishedAt.Sub(now))

		if s.metrics != nil {
			s.metrics.ExecutionCompleted(string(job.Type), OutcomeCompleted, finishedAt.Sub(now))
		}
		s.emit(ctx, domain.JobEvent{
			Kind:        domain.EventKindCompleted,
			JobID:       id,
			JobType:     job.Type,
			EntityID:    job.EntityID,
			ScheduledAt: job.ScheduledAt,
			Attempt:     job.RetryCount,
			OccurredAt:  finishedAt,
		})
		return true, nil
	}

	retryCount := job.RetryCount + 1
	errorMessage := execErr.Error()

	if job.RetryCount < job.MaxRetries {
		nextAt := finishedAt.Add(RetryBackoff)
		if err := s.store.RescheduleJob(ctx, id, retryCount, errorMessage, nextAt, finishedAt); err != nil {
			return false, fmt.Errorf("reschedule job: %w", err)
		}

		s.logger.Warnw("job attempt failed, rescheduled",
			"job_id", id,
			"type", job.Type,
			"retry_count", retryCount,
			"max_retries", job.MaxRetries,
			"next_at", nextAt.Format(time.RFC3339),
			"error", execErr)

		if s.metrics != nil {
			s.metrics.ExecutionCompleted(string(job.Type), OutcomeRetried, finishedAt.Sub(now))
		}
		s.emit(ctx, domain.JobEvent{
			Kind:         domain.EventKindRetried,
			JobID:        id,
			JobType:      job.Type,
			EntityID:     job.EntityID,
			ScheduledAt:  nextAt,
			Attempt:      retryCount,
			ErrorMessage: errorMessage,
			OccurredAt:   finishedAt,
		})
		return false, nil
	}

	if err := s.store.FailJob(ctx, id, retryCount, errorMessage, finishedAt); err != nil {
		return false, fmt.Errorf("fail job: %w", err)
	}

	s.logger.Errorw("job failed permanently",
		"job_id", id,
		"type", job.Type,
		"retry_count", retryCount,
		"error", execErr)

	if s.metrics != nil {
		s.metrics.ExecutionCompleted(string(job.Type), OutcomeFailed, finishedAt.Sub(now))
	}
	s.emit(ctx, domain.JobEvent{
		Kind:         domain.EventKindFailed,
		JobID:        id,
		JobType:      job.Type,
		EntityID:     job.EntityID,
		ScheduledAt:  job.ScheduledAt,
		Attempt:      retryCount,
		ErrorMessage: errorMessage,
		OccurredAt:   finishedAt,
	})
	return false, nil
}

// DefaultRetentionDays is how long COMPLETED/FAILED jobs are kept.
const DefaultRetentionDays = 30

// CleanupOldJobs purges COMPLETED and FAILED jobs created more than
// olderThanDays ago. PENDING, RUNNING, and CANCELLED jobs are never purged.
func (s *Service) CleanupOldJobs(ctx context.Context, olderThanDays int) (int64, error) {
	if olderThanDays <= 0 {
		olderThanDays = DefaultRetentionDays
	}
	cutoff := s.clock().UTC().AddDate(0, 0, -olderThanDays)

	count, err := s.store.DeleteJobsOlderThan(ctx, cutoff, []domain.JobStatus{
		domain.JobStatusCompleted,
		domain.JobStatusFailed,
	})
	if err != nil {
		return 0, fmt.Errorf("delete old jobs: %w", err)
	}

	if count > 0 {
		s.logger.Infow("old jobs purged", "count", count, "older_than_days", olderThanDays)
	}
	if s.metrics != nil {
		s.metrics.JobsCleaned(count)
	}
	return count, nil
}

func (s *Service) emit(ctx context.Context, event domain.JobEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Emit(ctx, event); err != nil {
		s.logger.Warnw("event emit failed", "kind", event.Kind, "job_id", event.JobID, "error", err)
	}
}

// runExecutor invokes the executor, converting a panic into an error so a
// misbehaving executor lands on the normal failure path.
func runExecutor(ctx context.Context, ex executor.Executor, entityID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panic: %v", r)
		}
	}()
	return ex.Execute(ctx, entityID)
}
