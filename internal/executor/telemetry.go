package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/unquietwiki/changerawr-sub003/internal/circuitbreaker"
	"github.com/unquietwiki/changerawr-sub003/internal/domain"
)

// Snapshot is the anonymized usage payload sent to the telemetry collector.
// It carries aggregate counts only, never entity ids or job payloads.
type Snapshot struct {
	InstanceID   string         `json:"instance_id"`
	Version      string         `json:"version"`
	JobsByStatus map[string]int `json:"jobs_by_status"`
	JobsByType   map[string]int `json:"jobs_by_type"`
	CollectedAt  time.Time      `json:"collected_at"`
}

// SnapshotSource gathers the current usage snapshot.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Transport delivers a snapshot to the remote collector. Network failures
// must surface as errors so the job retries.
type Transport interface {
	Send(ctx context.Context, snap Snapshot) error
}

// TelemetryExecutor gathers and transmits one usage snapshot. The entity id
// is ignored; telemetry jobs act globally.
type TelemetryExecutor struct {
	source    SnapshotSource
	transport Transport
	logger    *zap.SugaredLogger
}

func NewTelemetryExecutor(source SnapshotSource, transport Transport, logger *zap.SugaredLogger) *TelemetryExecutor {
	return &TelemetryExecutor{source: source, transport: transport, logger: logger.Named("telemetry")}
}

func (e *TelemetryExecutor) Execute(ctx context.Context, entityID string) error {
	snap, err := e.source.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("gather snapshot: %w", err)
	}

	if err := e.transport.Send(ctx, snap); err != nil {
		return fmt.Errorf("send snapshot: %w", err)
	}

	e.logger.Infow("telemetry snapshot sent", "instance_id", snap.InstanceID)
	return nil
}

// JobCounter is the store slice the snapshot source reads from.
type JobCounter interface {
	CountJobsByStatus(ctx context.Context) (map[domain.JobStatus]int, error)
	CountJobsByType(ctx context.Context) (map[domain.JobType]int, error)
}

// StoreSnapshotSource builds snapshots from job table aggregates.
type StoreSnapshotSource struct {
	counter    JobCounter
	instanceID string
	version    string
	clock      func() time.Time
}

func NewStoreSnapshotSource(counter JobCounter, instanceID, version string) *StoreSnapshotSource {
	return &StoreSnapshotSource{
		counter:    counter,
		instanceID: instanceID,
		version:    version,
		clock:      time.Now,
	}
}

func (s *StoreSnapshotSource) Snapshot(ctx context.Context) (Snapshot, error) {
	byStatus, err := s.counter.CountJobsByStatus(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("count by status: %w", err)
	}
	byType, err := s.counter.CountJobsByType(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("count by type: %w", err)
	}

	snap := Snapshot{
		InstanceID:   s.instanceID,
		Version:      s.version,
		JobsByStatus: make(map[string]int, len(byStatus)),
		JobsByType:   make(map[string]int, len(byType)),
		CollectedAt:  s.clock().UTC(),
	}
	for st, n := range byStatus {
		snap.JobsByStatus[string(st)] = n
	}
	for typ, n := range byType {
		snap.JobsByType[string(typ)] = n
	}
	return snap, nil
}

// HTTPCollector posts snapshots as JSON to a collector endpoint.
type HTTPCollector struct {
	client  *http.Client
	url     string
	breaker *circuitbreaker.CircuitBreaker
}

func NewHTTPCollector(url string) *HTTPCollector {
	return &HTTPCollector{
		client: &http.Client{Timeout: defaultAPITimeout},
		url:    url,
	}
}

// WithBreaker guards collector calls with a circuit breaker keyed by URL.
func (c *HTTPCollector) WithBreaker(cb *circuitbreaker.CircuitBreaker) *HTTPCollector {
	c.breaker = cb
	return c
}

func (c *HTTPCollector) Send(ctx context.Context, snap Snapshot) error {
	if c.breaker != nil {
		if err := c.breaker.Allow(c.url); err != nil {
			return fmt.Errorf("collector: %w", err)
		}
	}

	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if c.breaker != nil {
			c.breaker.RecordFailure(c.url)
		}
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if c.breaker != nil {
			c.breaker.RecordFailure(c.url)
		}
		return fmt.Errorf("send request: unexpected status %d", resp.StatusCode)
	}

	if c.breaker != nil {
		c.breaker.RecordSuccess(c.url)
	}
	return nil
}
