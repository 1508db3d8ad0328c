// Package channel provides the in-process event bus between the scheduler
// service and the audit writer.
package channel

import (
	"context"

	"github.com/unquietwiki/changerawr-sub003/internal/domain"
)

// MetricsSink records bus buffer metrics. Fire-and-forget.
type MetricsSink interface {
	BufferCapacitySet(capacity int)
	BufferSizeUpdate(size int)
	EmitError()
}

// Option configures the event bus.
type Option func(*EventBus)

// WithMetrics attaches a metrics sink to the bus.
func WithMetrics(sink MetricsSink) Option {
	return func(b *EventBus) {
		b.metrics = sink
	}
}

// EventBus is a bounded buffer of job lifecycle events. Emit blocks only
// until the buffer has room or the context is cancelled.
type EventBus struct {
	ch      chan domain.JobEvent
	metrics MetricsSink
}

func NewEventBus(buffer int, opts ...Option) *EventBus {
	b := &EventBus{
		ch: make(chan domain.JobEvent, buffer),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics != nil {
		b.metrics.BufferCapacitySet(buffer)
	}
	return b
}

func (b *EventBus) Emit(ctx context.Context, event domain.JobEvent) error {
	select {
	case b.ch <- event:
		if b.metrics != nil {
			b.metrics.BufferSizeUpdate(len(b.ch))
		}
		return nil
	case <-ctx.Done():
		if b.metrics != nil {
			b.metrics.EmitError()
		}
		return ctx.Err()
	}
}

func (b *EventBus) Channel() <-chan domain.JobEvent {
	return b.ch
}
