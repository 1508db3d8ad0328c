package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/unquietwiki/changerawr-sub003/internal/api"
	"github.com/unquietwiki/changerawr-sub003/internal/audit"
	"github.com/unquietwiki/changerawr-sub003/internal/certs"
	"github.com/unquietwiki/changerawr-sub003/internal/domain"
	"github.com/unquietwiki/changerawr-sub003/internal/executor"
	"github.com/unquietwiki/changerawr-sub003/internal/reconciler"
	"github.com/unquietwiki/changerawr-sub003/internal/scheduler"
)

// Store persists scheduled jobs, audit records, and the certificate
// inventory in PostgreSQL. All mutation is single-row and guarded by a
// status predicate in the WHERE clause, so concurrent writers race on the
// row update and the loser becomes a no-op.
type Store struct {
	db        *sql.DB
	opTimeout time.Duration
}

// New creates a Store. opTimeout bounds every individual database operation;
// zero disables the per-op deadline.
func New(db *sql.DB, opTimeout time.Duration) *Store {
	return &Store{db: db, opTimeout: opTimeout}
}

func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// InsertJob persists a new job record.
func (s *Store) InsertJob(ctx context.Context, job domain.ScheduledJob) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, queryInsertJob,
		job.ID,
		string(job.Type),
		job.EntityID,
		job.ScheduledAt,
		string(job.Status),
		job.RetryCount,
		job.MaxRetries,
		job.ErrorMessage,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

// GetJobByID returns a job by id, or scheduler.ErrJobNotFound.
func (s *Store) GetJobByID(ctx context.Context, id uuid.UUID) (domain.ScheduledJob, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	job, err := scanJob(s.db.QueryRowContext(ctx, queryGetJobByID, id))
	if err == sql.ErrNoRows {
		return domain.ScheduledJob{}, scheduler.ErrJobNotFound
	}
	return job, err
}

// GetDueJobs returns PENDING jobs with scheduled_at <= now, earliest first.
func (s *Store) GetDueJobs(ctx context.Context, now time.Time) ([]domain.ScheduledJob, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryGetDueJobs, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanJobs(rows)
}

// GetJobsForEntity returns jobs for a subject, newest scheduled_at first.
// A nil typ returns all types.
func (s *Store) GetJobsForEntity(ctx context.Context, entityID string, typ *domain.JobType) ([]domain.ScheduledJob, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var (
		rows *sql.Rows
		err  error
	)
	if typ != nil {
		rows, err = s.db.QueryContext(ctx, queryGetJobsForEntityByType, entityID, string(*typ))
	} else {
		rows, err = s.db.QueryContext(ctx, queryGetJobsForEntity, entityID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanJobs(rows)
}

// ClaimJob atomically transitions a PENDING job to RUNNING and returns the
// claimed row. The second return is false when the job is missing or not
// PENDING; that is the precondition guard against double pickup, not an error.
func (s *Store) ClaimJob(ctx context.Context, id uuid.UUID, now time.Time) (domain.ScheduledJob, bool, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	job, err := scanJob(s.db.QueryRowContext(ctx, queryClaimJob, id, now))
	if err == sql.ErrNoRows {
		return domain.ScheduledJob{}, false, nil
	}
	if err != nil {
		return domain.ScheduledJob{}, false, err
	}
	return job, true, nil
}

// CancelJob atomically transitions a PENDING job to CANCELLED. Returns the
// row as it was scheduled, and false when the job is missing or not PENDING.
func (s *Store) CancelJob(ctx context.Context, id uuid.UUID, now time.Time) (domain.ScheduledJob, bool, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	job, err := scanJob(s.db.QueryRowContext(ctx, queryCancelJob, id, now))
	if err == sql.ErrNoRows {
		return domain.ScheduledJob{}, false, nil
	}
	if err != nil {
		return domain.ScheduledJob{}, false, err
	}
	return job, true, nil
}

// CompleteJob marks a RUNNING job COMPLETED with executed_at set.
func (s *Store) CompleteJob(ctx context.Context, id uuid.UUID, executedAt time.Time) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, queryCompleteJob, id, executedAt)
	return err
}

// RescheduleJob sends a RUNNING job back to PENDING with retry bookkeeping.
func (s *Store) RescheduleJob(ctx context.Context, id uuid.UUID, retryCount int, errorMessage string, nextAt, now time.Time) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, queryRescheduleJob, id, retryCount, errorMessage, nextAt, now)
	return err
}

// FailJob terminally fails a RUNNING job. scheduled_at is left unchanged.
func (s *Store) FailJob(ctx context.Context, id uuid.UUID, retryCount int, errorMessage string, now time.Time) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, queryFailJob, id, retryCount, errorMessage, now)
	return err
}

// DeleteJobsOlderThan purges jobs in the given statuses created before cutoff.
// Returns the number of rows deleted.
func (s *Store) DeleteJobsOlderThan(ctx context.Context, cutoff time.Time, statuses []domain.JobStatus) (int64, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}

	result, err := s.db.ExecContext(ctx, queryDeleteJobsOlderThan, cutoff, pq.Array(names))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// RequeueStaleRunning sends RUNNING jobs whose last update is older than
// olderThan back to PENDING, oldest first, at most limit rows. Retry counts
// are left untouched; a reclaimed attempt did not observably fail.
func (s *Store) RequeueStaleRunning(ctx context.Context, olderThan time.Time, limit int, now time.Time) (int64, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	result, err := s.db.ExecContext(ctx, queryRequeueStaleRunning, olderThan, limit, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountJobsByStatus returns the job population grouped by status.
func (s *Store) CountJobsByStatus(ctx context.Context) (map[domain.JobStatus]int, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryCountJobsByStatus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.JobStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[domain.JobStatus(status)] = n
	}
	return counts, rows.Err()
}

// CountJobsByType returns the job population grouped by type.
func (s *Store) CountJobsByType(ctx context.Context) (map[domain.JobType]int, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryCountJobsByType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.JobType]int)
	for rows.Next() {
		var (
			typ string
			n   int
		)
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		counts[domain.JobType(typ)] = n
	}
	return counts, rows.Err()
}

// InsertAuditRecord appends one audit row. Write-only from this subsystem.
func (s *Store) InsertAuditRecord(ctx context.Context, rec domain.AuditRecord) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, queryInsertAuditRecord,
		rec.ID,
		string(rec.Action),
		rec.ActorID,
		rec.JobID,
		string(rec.JobType),
		rec.EntityID,
		rec.ScheduledAt,
		rec.CreatedAt,
	)
	return err
}

// ExpiringCertificates returns managed certificates expiring by deadline,
// soonest first.
func (s *Store) ExpiringCertificates(ctx context.Context, deadline time.Time) ([]domain.Certificate, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryExpiringCertificates, deadline)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Certificate
	for rows.Next() {
		var cert domain.Certificate
		if err := rows.Scan(&cert.Domain, &cert.IssuedAt, &cert.ExpiresAt); err != nil {
			return nil, err
		}
		result = append(result, cert)
	}
	return result, rows.Err()
}

// MarkRenewed records a successful renewal in the inventory.
func (s *Store) MarkRenewed(ctx context.Context, domainName string, issuedAt, expiresAt time.Time) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, queryTouchCertificate, domainName, issuedAt, expiresAt)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (domain.ScheduledJob, error) {
	var (
		job        domain.ScheduledJob
		typ        string
		status     string
		executedAt sql.NullTime
	)

	err := row.Scan(
		&job.ID,
		&typ,
		&job.EntityID,
		&job.ScheduledAt,
		&status,
		&job.RetryCount,
		&job.MaxRetries,
		&executedAt,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return domain.ScheduledJob{}, err
	}

	job.Type = domain.JobType(typ)
	job.Status = domain.JobStatus(status)
	if executedAt.Valid {
		t := executedAt.Time
		job.ExecutedAt = &t
	}
	return job, nil
}

func scanJobs(rows *sql.Rows) ([]domain.ScheduledJob, error) {
	var result []domain.ScheduledJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Compile-time interface assertions
var (
	_ scheduler.Store     = (*Store)(nil)
	_ audit.Store         = (*Store)(nil)
	_ api.Store           = (*Store)(nil)
	_ reconciler.Store    = (*Store)(nil)
	_ certs.Inventory     = (*Store)(nil)
	_ executor.JobCounter = (*Store)(nil)
)
