// Package api exposes the thin admin HTTP surface for creating, cancelling,
// and inspecting scheduled jobs. Authorization is the caller's concern; the
// X-Actor-Id header is used only for audit attribution.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unquietwiki/changerawr-sub003/internal/domain"
	"github.com/unquietwiki/changerawr-sub003/internal/scheduler"
)

// Service is the write surface the handler drives.
type Service interface {
	CreateJob(ctx context.Context, p scheduler.NewJob) (uuid.UUID, error)
	CancelJob(ctx context.Context, id uuid.UUID, actorID string) (bool, error)
}

// Store is the read surface for status display.
type Store interface {
	GetJobByID(ctx context.Context, id uuid.UUID) (domain.ScheduledJob, error)
	GetJobsForEntity(ctx context.Context, entityID string, typ *domain.JobType) ([]domain.ScheduledJob, error)
}

// HealthChecker provides database health status for the /health endpoint.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	service Service
	store   Store
	db      HealthChecker
	logger  *zap.SugaredLogger
}

func NewHandler(service Service, store Store, logger *zap.SugaredLogger) *Handler {
	return &Handler{service: service, store: store, logger: logger.Named("api")}
}

// WithHealthChecker sets the database health checker for verbose /health responses.
func (h *Handler) WithHealthChecker(db HealthChecker) *Handler {
	h.db = db
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case path == "/health" && r.Method == http.MethodGet:
		h.health(w, r)

	case path == "/jobs" && r.Method == http.MethodPost:
		h.createJob(w, r)

	case path == "/jobs" && r.Method == http.MethodGet:
		h.listJobs(w, r)

	case strings.HasPrefix(path, "/jobs/") && r.Method == http.MethodGet:
		h.getJob(w, r)

	case strings.HasPrefix(path, "/jobs/") && r.Method == http.MethodDelete:
		h.cancelJob(w, r)

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || h.db == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Components["database"] = "unhealthy: " + err.Error()
	} else {
		resp.Components["database"] = "healthy"
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, resp)
}

func (h *Handler) createJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	typ := domain.JobType(req.Type)
	if !typ.Valid() {
		writeError(w, http.StatusBadRequest, "unknown job type: "+req.Type)
		return
	}
	if req.ScheduledAt.IsZero() {
		writeError(w, http.StatusBadRequest, "scheduled_at is required")
		return
	}
	if req.MaxRetries != nil && *req.MaxRetries < 0 {
		writeError(w, http.StatusBadRequest, "max_retries must be >= 0")
		return
	}

	id, err := h.service.CreateJob(r.Context(), scheduler.NewJob{
		Type:        typ,
		EntityID:    req.EntityID,
		ScheduledAt: req.ScheduledAt,
		MaxRetries:  req.MaxRetries,
		ActorID:     actorID(r),
	})
	if err != nil {
		h.logger.Errorw("create job failed", "type", req.Type, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	writeJSON(w, http.StatusCreated, CreateJobResponse{ID: id.String()})
}

func (h *Handler) cancelJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobIDFromPath(r.URL.Path)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	cancelled, err := h.service.CancelJob(r.Context(), id, actorID(r))
	if err != nil {
		h.logger.Errorw("cancel job failed", "job_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to cancel job")
		return
	}
	if !cancelled {
		writeError(w, http.StatusConflict, "job not found or not cancellable")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobIDFromPath(r.URL.Path)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	job, err := h.store.GetJobByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		h.logger.Errorw("get job failed", "job_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}

	writeJSON(w, http.StatusOK, toJobResponse(job))
}

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	entityID := r.URL.Query().Get("entity_id")
	if entityID == "" {
		writeError(w, http.StatusBadRequest, "entity_id is required")
		return
	}

	var typ *domain.JobType
	if typStr := r.URL.Query().Get("type"); typStr != "" {
		t := domain.JobType(typStr)
		if !t.Valid() {
			writeError(w, http.StatusBadRequest, "unknown job type: "+typStr)
			return
		}
		typ = &t
	}

	jobs, err := h.store.GetJobsForEntity(r.Context(), entityID, typ)
	if err != nil {
		h.logger.Errorw("list jobs failed", "entity_id", entityID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	resp := make([]JobResponse, 0, len(jobs))
	for _, job := range jobs {
		resp = append(resp, toJobResponse(job))
	}
	writeJSON(w, http.StatusOK, resp)
}

func jobIDFromPath(path string) (uuid.UUID, bool) {
	raw := strings.TrimPrefix(path, "/jobs/")
	if raw == "" || strings.Contains(raw, "/") {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func actorID(r *http.Request) string {
	return r.Header.Get("X-Actor-Id")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
