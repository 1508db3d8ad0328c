package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unquietwiki/changerawr-sub003/internal/domain"
)

// JobSource is the slice of the service the runner drives.
type JobSource interface {
	GetDueJobs(ctx context.Context, now time.Time) ([]domain.ScheduledJob, error)
	ExecuteJob(ctx context.Context, id uuid.UUID) (bool, error)
}

// DefaultPollInterval is how often the runner wakes to look for due jobs.
const DefaultPollInterval = 60 * time.Second

// RunnerConfig holds runner configuration.
type RunnerConfig struct {
	// Interval between poll ticks. Default: 60s.
	Interval time.Duration
}

// Runner is the recurring poll loop. Each tick fetches due jobs and executes
// them sequentially in scheduledAt order; ticks never overlap. When a tick
// runs longer than the interval, missed timer fires are dropped, not stacked.
type Runner struct {
	config  RunnerConfig
	jobs    JobSource
	metrics MetricsSink // optional, nil = disabled
	clock   func() time.Time
	logger  *zap.SugaredLogger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

func NewRunner(config RunnerConfig, jobs JobSource, logger *zap.SugaredLogger) *Runner {
	if config.Interval <= 0 {
		config.Interval = DefaultPollInterval
	}
	return &Runner{
		config: config,
		jobs:   jobs,
		clock:  time.Now,
		logger: logger.Named("runner"),
	}
}

// WithMetrics attaches a metrics sink.
func (r *Runner) WithMetrics(sink MetricsSink) *Runner {
	r.metrics = sink
	return r
}

// Start launches the poll loop in its own goroutine. A second Start while
// running is a no-op.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		r.logger.Debugw("start ignored, runner already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.started = true

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.Run(ctx)
	}()
}

// Stop cancels the timer and waits for the loop to exit. An in-flight tick
// runs to completion; Stop does not abort it.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.started = false
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
}

// Run executes the poll loop until ctx is cancelled. Cancellation stops the
// timer and keeps further jobs from starting; the job already in flight and
// its state-transition writes run to completion on a context the cancellation
// does not reach. Most callers use Start/Stop; Run is exposed for hosts that
// manage their own goroutines.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	// A claim writes RUNNING through before the executor runs. If shutdown
	// cancelled the execution context mid-job, the follow-up reschedule or
	// fail write would be refused and the job stranded in RUNNING.
	execCtx := context.WithoutCancel(ctx)

	r.logger.Infow("runner started", "interval", r.config.Interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Infow("runner stopped")
			return
		case <-ticker.C:
			r.processTick(ctx, execCtx)
		}
	}
}

// processTick performs one full poll cycle: fetch due jobs, execute each in
// order. stop is consulted only between jobs; store and executor calls use
// execCtx so an in-flight job always reaches a terminal or retryable state.
// A store failure aborts only this tick; jobs stay PENDING and the next
// interval retries naturally.
func (r *Runner) processTick(stop, execCtx context.Context) {
	now := r.clock().UTC()
	if r.metrics != nil {
		r.metrics.TickStarted()
	}

	due, err := r.jobs.GetDueJobs(execCtx, now)
	if err != nil {
		r.logger.Errorw("tick: due-job query failed", "error", err)
		if r.metrics != nil {
			r.metrics.TickCompleted(time.Since(now), 0, err)
		}
		return
	}

	executed := 0
	for _, job := range due {
		if stop.Err() != nil {
			break
		}

		ok, err := r.jobs.ExecuteJob(execCtx, job.ID)
		if err != nil {
			// Store-level failure. Log and move on; the job is either
			// still PENDING or stuck RUNNING for the reconciler.
			r.logger.Errorw("tick: job execution error",
				"job_id", job.ID,
				"type", job.Type,
				"error", err)
			continue
		}
		if ok {
			executed++
		}
	}

	if len(due) > 0 {
		r.logger.Infow("tick complete",
			"due", len(due),
			"succeeded", executed,
			"duration", time.Since(now))
	}
	if r.metrics != nil {
		r.metrics.TickCompleted(time.Since(now), executed, nil)
	}
}
