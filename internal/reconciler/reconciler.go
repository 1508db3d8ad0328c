// Package reconciler requeues jobs stuck in RUNNING.
//
// A job is stuck when the process crashed mid-execution: the claim wrote
// RUNNING through before the work started, so nothing ever moves it again.
// The reconciler periodically sends RUNNING jobs older than a threshold back
// to PENDING in batches. Retry counts are not incremented on reclaim; the
// interrupted attempt never observably failed.
package reconciler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Store is the requeue contract.
type Store interface {
	RequeueStaleRunning(ctx context.Context, olderThan time.Time, limit int, now time.Time) (int64, error)
}

// MetricsSink records reclaim metrics. Fire-and-forget.
type MetricsSink interface {
	JobsReclaimed(count int64)
}

// Config holds reconciler configuration.
type Config struct {
	// Interval is how often the reconciler runs. Default: 5 minutes.
	Interval time.Duration

	// Threshold is the age after which a RUNNING job counts as stuck. Must
	// comfortably exceed the longest plausible executor run. Default: 15m.
	Threshold time.Duration

	// BatchSize caps requeues per cycle. Default: 100.
	BatchSize int
}

// DefaultConfig returns the default reconciler configuration.
func DefaultConfig() Config {
	return Config{
		Interval:  5 * time.Minute,
		Threshold: 15 * time.Minute,
		BatchSize: 100,
	}
}

// Reconciler detects stuck RUNNING jobs and requeues them.
type Reconciler struct {
	config  Config
	store   Store
	metrics MetricsSink // optional, nil = disabled
	clock   func() time.Time
	logger  *zap.SugaredLogger
}

func New(config Config, store Store, logger *zap.SugaredLogger) *Reconciler {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.Threshold <= 0 {
		config.Threshold = DefaultConfig().Threshold
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	return &Reconciler{
		config: config,
		store:  store,
		clock:  time.Now,
		logger: logger.Named("reconciler"),
	}
}

// WithMetrics attaches a metrics sink.
func (r *Reconciler) WithMetrics(sink MetricsSink) *Reconciler {
	r.metrics = sink
	return r
}

// Run starts the reclaim loop. It blocks until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	r.logger.Infow("reconciler started",
		"interval", r.config.Interval,
		"threshold", r.config.Threshold,
		"batch", r.config.BatchSize)

	// Run immediately on startup, then on ticker.
	r.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Infow("reconciler stopped")
			return
		case <-ticker.C:
			r.runCycle(ctx)
		}
	}
}

func (r *Reconciler) runCycle(ctx context.Context) {
	now := r.clock().UTC()
	olderThan := now.Add(-r.config.Threshold)

	count, err := r.store.RequeueStaleRunning(ctx, olderThan, r.config.BatchSize, now)
	if err != nil {
		// DB error: log and abort cycle. Will retry next interval.
		r.logger.Errorw("stale-running requeue failed", "error", err)
		return
	}

	if count == 0 {
		return
	}

	r.logger.Warnw("stuck RUNNING jobs requeued", "count", count, "older_than", olderThan.Format(time.RFC3339))
	if r.metrics != nil {
		r.metrics.JobsReclaimed(count)
	}
}
