package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) TickStarted()                                                      {}
func (n *NoopSink) TickCompleted(duration time.Duration, executed int, err error)     {}
func (n *NoopSink) JobCreated(jobType string)                                         {}
func (n *NoopSink) JobCancelled(jobType string)                                       {}
func (n *NoopSink) ExecutionCompleted(jobType, outcome string, d time.Duration)       {}
func (n *NoopSink) JobsCleaned(count int64)                                           {}
func (n *NoopSink) JobsReclaimed(count int64)                                         {}
func (n *NoopSink) BufferCapacitySet(capacity int)                                    {}
func (n *NoopSink) BufferSizeUpdate(size int)                                         {}
func (n *NoopSink) EmitError()                                                        {}
