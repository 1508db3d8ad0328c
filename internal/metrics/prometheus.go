package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// PrometheusSink implements Sink using the Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	logger *zap.SugaredLogger

	// Runner metrics
	ticksTotal      prometheus.Counter
	tickErrorsTotal prometheus.Counter
	tickDuration    prometheus.Histogram
	jobsExecuted    prometheus.Counter

	// Service metrics
	jobsCreatedTotal   *prometheus.CounterVec
	jobsCancelledTotal *prometheus.CounterVec
	executionsTotal    *prometheus.CounterVec
	executionDuration  prometheus.Histogram
	jobsCleanedTotal   prometheus.Counter

	// Reconciler metrics
	jobsReclaimedTotal prometheus.Counter

	// EventBus metrics
	busBufferSize     prometheus.Gauge
	busBufferCapacity prometheus.Gauge
	emitErrorsTotal   prometheus.Counter
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink;
// collectors that failed to register simply record nowhere.
func NewPrometheusSink(reg prometheus.Registerer, logger *zap.SugaredLogger) *PrometheusSink {
	s := &PrometheusSink{logger: logger.Named("metrics")}
	s.initRunnerMetrics(reg)
	s.initServiceMetrics(reg)
	s.initBusMetrics(reg)
	return s
}

func (s *PrometheusSink) initRunnerMetrics(reg prometheus.Registerer) {
	s.ticksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobd_runner_ticks_total",
		Help: "Total number of runner poll ticks processed.",
	})
	s.tickErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobd_runner_tick_errors_total",
		Help: "Total number of poll ticks aborted by a store error.",
	})
	s.tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "jobd_runner_tick_duration_seconds",
		Help:    "Duration of each poll tick in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	})
	s.jobsExecuted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobd_runner_jobs_executed_total",
		Help: "Total number of jobs successfully executed by the runner.",
	})

	s.register(reg, s.ticksTotal, "jobd_runner_ticks_total")
	s.register(reg, s.tickErrorsTotal, "jobd_runner_tick_errors_total")
	s.register(reg, s.tickDuration, "jobd_runner_tick_duration_seconds")
	s.register(reg, s.jobsExecuted, "jobd_runner_jobs_executed_total")
}

func (s *PrometheusSink) initServiceMetrics(reg prometheus.Registerer) {
	s.jobsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobd_jobs_created_total",
		Help: "Total number of jobs created.",
	}, []string{"type"})

	s.jobsCancelledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobd_jobs_cancelled_total",
		Help: "Total number of jobs cancelled before pickup.",
	}, []string{"type"})

	s.executionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobd_executions_total",
		Help: "Total number of execution attempts by outcome.",
	}, []string{"type", "outcome"})

	s.executionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "jobd_execution_duration_seconds",
		Help:    "Executor run time in seconds.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 120},
	})

	s.jobsCleanedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobd_jobs_cleaned_total",
		Help: "Total number of terminal jobs purged by the retention sweep.",
	})

	s.jobsReclaimedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobd_jobs_reclaimed_total",
		Help: "Total number of stuck RUNNING jobs requeued to PENDING.",
	})

	s.register(reg, s.jobsCreatedTotal, "jobd_jobs_created_total")
	s.register(reg, s.jobsCancelledTotal, "jobd_jobs_cancelled_total")
	s.register(reg, s.executionsTotal, "jobd_executions_total")
	s.register(reg, s.executionDuration, "jobd_execution_duration_seconds")
	s.register(reg, s.jobsCleanedTotal, "jobd_jobs_cleaned_total")
	s.register(reg, s.jobsReclaimedTotal, "jobd_jobs_reclaimed_total")
}

func (s *PrometheusSink) initBusMetrics(reg prometheus.Registerer) {
	s.busBufferSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "jobd_eventbus_buffer_size",
		Help: "Current number of buffered lifecycle events.",
	})
	s.busBufferCapacity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "jobd_eventbus_buffer_capacity",
		Help: "Configured capacity of the lifecycle event buffer.",
	})
	s.emitErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobd_eventbus_emit_errors_total",
		Help: "Total number of lifecycle events dropped at emit.",
	})

	s.register(reg, s.busBufferSize, "jobd_eventbus_buffer_size")
	s.register(reg, s.busBufferCapacity, "jobd_eventbus_buffer_capacity")
	s.register(reg, s.emitErrorsTotal, "jobd_eventbus_emit_errors_total")
}

func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		s.logger.Warnw("metric registration failed", "metric", name, "error", err)
	}
}

func (s *PrometheusSink) TickStarted() {
	s.ticksTotal.Inc()
}

func (s *PrometheusSink) TickCompleted(duration time.Duration, executed int, err error) {
	s.tickDuration.Observe(duration.Seconds())
	if err != nil {
		s.tickErrorsTotal.Inc()
		return
	}
	s.jobsExecuted.Add(float64(executed))
}

func (s *PrometheusSink) JobCreated(jobType string) {
	s.jobsCreatedTotal.WithLabelValues(jobType).Inc()
}

func (s *PrometheusSink) JobCancelled(jobType string) {
	s.jobsCancelledTotal.WithLabelValues(jobType).Inc()
}

func (s *PrometheusSink) ExecutionCompleted(jobType, outcome string, duration time.Duration) {
	s.executionsTotal.WithLabelValues(jobType, outcome).Inc()
	s.executionDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) JobsCleaned(count int64) {
	s.jobsCleanedTotal.Add(float64(count))
}

func (s *PrometheusSink) JobsReclaimed(count int64) {
	s.jobsReclaimedTotal.Add(float64(count))
}

func (s *PrometheusSink) BufferCapacitySet(capacity int) {
	s.busBufferCapacity.Set(float64(capacity))
}

func (s *PrometheusSink) BufferSizeUpdate(size int) {
	s.busBufferSize.Set(float64(size))
}

func (s *PrometheusSink) EmitError() {
	s.emitErrorsTotal.Inc()
}

var _ Sink = (*PrometheusSink)(nil)
