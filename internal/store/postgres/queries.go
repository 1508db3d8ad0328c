package postgres

// Table shapes:
//
//	scheduled_jobs (
//	    id            uuid primary key,
//	    type          text not null,
//	    entity_id     text not null default '',
//	    scheduled_at  timestamptz not null,
//	    status        text not null,
//	    retry_count   int not null default 0,
//	    max_retries   int not null default 3,
//	    executed_at   timestamptz,
//	    error_message text not null default '',
//	    created_at    timestamptz not null,
//	    updated_at    timestamptz not null
//	)
//
//	job_audit_log (
//	    id           uuid primary key,
//	    action       text not null,
//	    actor_id     text not null default '',
//	    job_id       uuid not null,
//	    job_type     text not null,
//	    entity_id    text not null default '',
//	    scheduled_at timestamptz not null,
//	    created_at   timestamptz not null
//	)
//
//	managed_certificates (
//	    domain     text primary key,
//	    issued_at  timestamptz not null,
//	    expires_at timestamptz not null
//	)

const jobColumns = `
    id, type, entity_id, scheduled_at, status,
    retry_count, max_retries, executed_at, error_message,
    created_at, updated_at`

const queryInsertJob = `
INSERT INTO scheduled_jobs (id, type, entity_id, scheduled_at, status, retry_count, max_retries, error_message, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

const queryGetJobByID = `
SELECT` + jobColumns + `
FROM scheduled_jobs
WHERE id = $1
`

const queryGetDueJobs = `
SELECT` + jobColumns + `
FROM scheduled_jobs
WHERE status = 'PENDING'
  AND scheduled_at <= $1
ORDER BY scheduled_at ASC
`

const queryGetJobsForEntity = `
SELECT` + jobColumns + `
FROM scheduled_jobs
WHERE entity_id = $1
ORDER BY scheduled_at DESC
`

const queryGetJobsForEntityByType = `
SELECT` + jobColumns + `
FROM scheduled_jobs
WHERE entity_id = $1
  AND type = $2
ORDER BY scheduled_at DESC
`

const queryClaimJob = `
UPDATE scheduled_jobs
SET status = 'RUNNING', updated_at = $2
WHERE id = $1
  AND status = 'PENDING'
RETURNING` + jobColumns + `
`

const queryCancelJob = `
UPDATE scheduled_jobs
SET status = 'CANCELLED', updated_at = $2
WHERE id = $1
  AND status = 'PENDING'
RETURNING` + jobColumns + `
`

const queryCompleteJob = `
UPDATE scheduled_jobs
SET status = 'COMPLETED', executed_at = $2, updated_at = $2
WHERE id = $1
  AND status = 'RUNNING'
`

const queryRescheduleJob = `
UPDATE scheduled_jobs
SET status = 'PENDING', retry_count = $2, error_message = $3, scheduled_at = $4, updated_at = $5
WHERE id = $1
  AND status = 'RUNNING'
`

const queryFailJob = `
UPDATE scheduled_jobs
SET status = 'FAILED', retry_count = $2, error_message = $3, updated_at = $4
WHERE id = $1
  AND status = 'RUNNING'
`

const queryDeleteJobsOlderThan = `
DELETE FROM scheduled_jobs
WHERE created_at < $1
  AND status = ANY($2)
`

const queryRequeueStaleRunning = `
WITH stale AS (
    SELECT id FROM scheduled_jobs
    WHERE status = 'RUNNING'
      AND updated_at < $1
    ORDER BY updated_at ASC
    LIMIT $2
    FOR UPDATE SKIP LOCKED
)
UPDATE scheduled_jobs
SET status = 'PENDING', updated_at = $3
FROM stale
WHERE scheduled_jobs.id = stale.id
`

const queryCountJobsByStatus = `
SELECT status, COUNT(*)
FROM scheduled_jobs
GROUP BY status
`

const queryCountJobsByType = `
SELECT type, COUNT(*)
FROM scheduled_jobs
GROUP BY type
`

const queryInsertAuditRecord = `
INSERT INTO job_audit_log (id, action, actor_id, job_id, job_type, entity_id, scheduled_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

const queryExpiringCertificates = `
SELECT domain, issued_at, expires_at
FROM managed_certificates
WHERE expires_at <= $1
ORDER BY expires_at ASC
`

const queryTouchCertificate = `
UPDATE managed_certificates
SET issued_at = $2, expires_at = $3
WHERE domain = $1
`
