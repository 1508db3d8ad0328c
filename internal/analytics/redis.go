// Package analytics records job outcome counters in Redis for dashboard
// queries. Counters are bucketed by hour and expire after a retention
// window; a missed write is lost telemetry, never an error for the caller.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/unquietwiki/changerawr-sub003/internal/domain"
)

// DefaultRetention is how long outcome buckets live in Redis.
const DefaultRetention = 30 * 24 * time.Hour

type RedisSink struct {
	client    *redis.Client
	retention time.Duration
	logger    *zap.SugaredLogger
}

func NewRedisSink(client *redis.Client, logger *zap.SugaredLogger) *RedisSink {
	return &RedisSink{
		client:    client,
		retention: DefaultRetention,
		logger:    logger.Named("analytics"),
	}
}

// WithRetention overrides the counter TTL.
func (s *RedisSink) WithRetention(d time.Duration) *RedisSink {
	s.retention = d
	return s
}

// Record increments the hourly counter for the event's type and kind.
func (s *RedisSink) Record(ctx context.Context, event domain.JobEvent) {
	key := buildKey(event.JobType, event.Kind, event.OccurredAt)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.retention)

	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warnw("outcome counter write failed", "key", key, "error", err)
	}
}

func buildKey(typ domain.JobType, kind domain.EventKind, t time.Time) string {
	bucket := t.UTC().Format("2006010215")
	return fmt.Sprintf("jobs:%s:%s:%s", typ, kind, bucket)
}
