package api

import (
	"time"

	"github.com/unquietwiki/changerawr-sub003/internal/domain"
)

// CreateJobRequest is the POST /jobs body.
type CreateJobRequest struct {
	Type        string    `json:"type"`
	EntityID    string    `json:"entity_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	MaxRetries  *int      `json:"max_retries,omitempty"`
}

// CreateJobResponse carries the new job id.
type CreateJobResponse struct {
	ID string `json:"id"`
}

// JobResponse is the wire form of a scheduled job.
type JobResponse struct {
	ID           string     `json:"id"`
	Type         string     `json:"type"`
	EntityID     string     `json:"entity_id"`
	ScheduledAt  time.Time  `json:"scheduled_at"`
	Status       string     `json:"status"`
	RetryCount   int        `json:"retry_count"`
	MaxRetries   int        `json:"max_retries"`
	ExecutedAt   *time.Time `json:"executed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func toJobResponse(job domain.ScheduledJob) JobResponse {
	return JobResponse{
		ID:           job.ID.String(),
		Type:         string(job.Type),
		EntityID:     job.EntityID,
		ScheduledAt:  job.ScheduledAt,
		Status:       string(job.Status),
		RetryCount:   job.RetryCount,
		MaxRetries:   job.MaxRetries,
		ExecutedAt:   job.ExecutedAt,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
	}
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}
