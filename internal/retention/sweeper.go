// Package retention purges terminal jobs past their retention window on a
// cron schedule. Only COMPLETED and FAILED jobs are eligible; everything
// else is either still live or a deliberate audit trail (CANCELLED).
package retention

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/unquietwiki/changerawr-sub003/internal/cron"
)

// Cleaner is the slice of the scheduler service the sweeper calls.
type Cleaner interface {
	CleanupOldJobs(ctx context.Context, olderThanDays int) (int64, error)
}

// Config holds sweeper configuration.
type Config struct {
	// Schedule is a cron expression for when the sweep runs.
	// Default: daily at 03:00.
	Schedule string

	// RetentionDays is the purge cutoff age. Default: 30.
	RetentionDays int
}

// DefaultConfig returns the default sweeper configuration.
func DefaultConfig() Config {
	return Config{
		Schedule:      "0 3 * * *",
		RetentionDays: 30,
	}
}

// Sweeper runs CleanupOldJobs on the configured cron schedule.
type Sweeper struct {
	config   Config
	schedule cron.Schedule
	cleaner  Cleaner
	clock    func() time.Time
	logger   *zap.SugaredLogger
}

func New(config Config, cleaner Cleaner, logger *zap.SugaredLogger) (*Sweeper, error) {
	if config.Schedule == "" {
		config.Schedule = DefaultConfig().Schedule
	}
	if config.RetentionDays <= 0 {
		config.RetentionDays = DefaultConfig().RetentionDays
	}

	sched, err := cron.ParseSchedule(config.Schedule)
	if err != nil {
		return nil, err
	}

	return &Sweeper{
		config:   config,
		schedule: sched,
		cleaner:  cleaner,
		clock:    time.Now,
		logger:   logger.Named("retention"),
	}, nil
}

// Run sleeps until each scheduled sweep time and purges. Blocks until ctx
// is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Infow("retention sweeper started",
		"schedule", s.config.Schedule,
		"retention_days", s.config.RetentionDays)

	for {
		now := s.clock().UTC()
		next := s.schedule.Next(now)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Infow("retention sweeper stopped")
			return
		case <-timer.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	count, err := s.cleaner.CleanupOldJobs(ctx, s.config.RetentionDays)
	if err != nil {
		// Next scheduled run retries; terminal jobs are not going anywhere.
		s.logger.Errorw("retention sweep failed", "error", err)
		return
	}
	s.logger.Infow("retention sweep complete", "purged", count)
}
