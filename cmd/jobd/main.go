package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unquietwiki/changerawr-sub003/internal/analytics"
	"github.com/unquietwiki/changerawr-sub003/internal/api"
	"github.com/unquietwiki/changerawr-sub003/internal/audit"
	"github.com/unquietwiki/changerawr-sub003/internal/certs"
	"github.com/unquietwiki/changerawr-sub003/internal/circuitbreaker"
	"github.com/unquietwiki/changerawr-sub003/internal/config"
	"github.com/unquietwiki/changerawr-sub003/internal/domain"
	"github.com/unquietwiki/changerawr-sub003/internal/executor"
	"github.com/unquietwiki/changerawr-sub003/internal/metrics"
	"github.com/unquietwiki/changerawr-sub003/internal/reconciler"
	"github.com/unquietwiki/changerawr-sub003/internal/retention"
	"github.com/unquietwiki/changerawr-sub003/internal/scheduler"
	"github.com/unquietwiki/changerawr-sub003/internal/store/postgres"
	"github.com/unquietwiki/changerawr-sub003/internal/transport/channel"

	_ "github.com/lib/pq"
)

// renewalSchedulerAdapter lets the SSL executor rearm itself through the
// scheduler service without the executor package importing it.
type renewalSchedulerAdapter struct {
	service *scheduler.Service
}

func (a *renewalSchedulerAdapter) ScheduleRenewal(ctx context.Context, runAt time.Time) (uuid.UUID, error) {
	return a.service.CreateJob(ctx, scheduler.NewJob{
		Type:        domain.JobTypeRenewSSLCertificate,
		ScheduledAt: runAt,
	})
}

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`jobd - changerawr background job runner

Usage:
  jobd <command>

Commands:
  serve      Start the job runner and admin API
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  DATABASE_URL              PostgreSQL connection string (required)
  REDIS_ADDR                Redis address for outcome analytics (optional)
  HTTP_ADDR                 Admin API address (default: ":8080")
  LOG_LEVEL                 Log level: debug, info, warn, error (default: "info")
  POLL_INTERVAL             Due-job poll interval (default: "60s")

  DB_OP_TIMEOUT             Database operation timeout (default: "5s")
  DB_MAX_OPEN_CONNS         Max open database connections (default: "25")
  DB_MAX_IDLE_CONNS         Max idle database connections (default: "5")
  DB_CONN_MAX_LIFETIME      Max connection lifetime (default: "30m")
  DB_CONN_MAX_IDLE_TIME     Max connection idle time (default: "5m")

  HTTP_SHUTDOWN_TIMEOUT     Graceful HTTP shutdown timeout (default: "10s")
  AUDIT_DRAIN_TIMEOUT       Audit event drain timeout (default: "30s")
  EVENTBUS_BUFFER_SIZE      Lifecycle event buffer size (default: "100")

  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")
  METRICS_PORT              Metrics server port (default: "9090")

  RECLAIM_ENABLED           Requeue jobs stuck in RUNNING (default: "false")
  RECLAIM_INTERVAL          How often to scan for stuck jobs (default: "5m")
  RECLAIM_THRESHOLD         Age before RUNNING counts as stuck (default: "15m")
  RECLAIM_BATCH_SIZE        Max requeues per cycle (default: "100")

  CLEANUP_SCHEDULE          Retention sweep cron schedule (default: "0 3 * * *")
  RETENTION_DAYS            Terminal-job retention age (default: "30")

  CHANGELOG_API_URL         Changelog service base URL (publish executor)
  CHANGELOG_API_TOKEN       Bearer token for the changelog API
  TELEMETRY_URL             Telemetry collector endpoint (telemetry executor)
  INSTANCE_ID               Stable anonymous instance id for telemetry
  CERT_RENEW_URL            Certificate renewal endpoint (SSL executor)
  CERT_RENEW_TOKEN          Bearer token for the renewal endpoint
  CERT_EXPIRY_WINDOW        Renew certs expiring within this window (default: "720h")
  CERT_REARM_INTERVAL       Delay before the next renewal sweep (default: "24h")

  BREAKER_THRESHOLD         Circuit breaker failure threshold, 0 disables (default: "5")
  BREAKER_COOLDOWN          Circuit breaker open duration (default: "2m")`)
}

func newLogger(level string) (*zap.SugaredLogger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar().Named("jobd"), nil
}

func runServe() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return exitInvalidConfig
	}
	defer logger.Sync()

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Errorw("failed to open database", "error", err)
		return exitRuntimeError
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		logger.Errorw("failed to connect to database", "error", err)
		return exitRuntimeError
	}
	logger.Infow("db pool configured",
		"max_open", cfg.DBMaxOpenConns,
		"max_idle", cfg.DBMaxIdleConns,
		"max_lifetime", cfg.DBConnMaxLifetime)

	store := postgres.New(db, cfg.DBOpTimeout)

	// Metrics sink and server (optional)
	var metricsSink *metrics.PrometheusSink
	var metricsServer *http.Server

	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer, logger)

		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.MetricsPath, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    ":" + cfg.MetricsPort,
			Handler: metricsMux,
		}
		go func() {
			logger.Infow("metrics server listening", "port", cfg.MetricsPort, "path", cfg.MetricsPath)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorw("metrics server error", "error", err)
			}
		}()
	} else {
		logger.Infow("METRICS_ENABLED not set; metrics disabled")
	}

	// Lifecycle event bus feeding the audit writer
	var busOpts []channel.Option
	if metricsSink != nil {
		busOpts = append(busOpts, channel.WithMetrics(metricsSink))
	}
	bus := channel.NewEventBus(cfg.EventBusBufferSize, busOpts...)

	auditWriter := audit.New(store, logger).WithDrainTimeout(cfg.AuditDrainTimeout)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		auditWriter = auditWriter.WithAnalytics(analytics.NewRedisSink(redisClient, logger))
		logger.Infow("analytics enabled", "redis", cfg.RedisAddr)
	} else {
		logger.Infow("REDIS_ADDR not set; analytics disabled")
	}

	var breaker *circuitbreaker.CircuitBreaker
	if cfg.BreakerThreshold > 0 {
		breaker = circuitbreaker.New(cfg.BreakerThreshold, cfg.BreakerCooldown)
	}

	registry := executor.NewRegistry()

	service := scheduler.NewService(store, registry, logger).WithEvents(bus)
	if metricsSink != nil {
		service = service.WithMetrics(metricsSink)
	}

	registerExecutors(cfg, registry, service, store, breaker, logger)

	runner := scheduler.NewRunner(
		scheduler.RunnerConfig{Interval: cfg.PollInterval},
		service,
		logger,
	)
	if metricsSink != nil {
		runner = runner.WithMetrics(metricsSink)
	}

	// Admin API server
	apiHandler := api.NewHandler(service, store, logger).WithHealthChecker(db)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: apiHandler,
	}
	go func() {
		logger.Infow("http server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorw("http server error", "error", err)
		}
	}()

	// Separate contexts per background component for ordered shutdown.
	auditCtx, cancelAudit := context.WithCancel(context.Background())
	retentionCtx, cancelRetention := context.WithCancel(context.Background())

	var auditWg sync.WaitGroup
	var retentionWg sync.WaitGroup
	var reconcilerWg sync.WaitGroup
	var cancelReconciler context.CancelFunc

	auditWg.Add(1)
	go func() {
		defer auditWg.Done()
		auditWriter.Run(auditCtx, bus.Channel())
	}()

	sweeper, err := retention.New(
		retention.Config{Schedule: cfg.CleanupSchedule, RetentionDays: cfg.RetentionDays},
		service,
		logger,
	)
	if err != nil {
		logger.Errorw("retention sweeper init failed", "error", err)
		cancelAudit()
		cancelRetention()
		return exitInvalidConfig
	}
	retentionWg.Add(1)
	go func() {
		defer retentionWg.Done()
		sweeper.Run(retentionCtx)
	}()

	if cfg.ReclaimEnabled {
		var reconcilerCtx context.Context
		reconcilerCtx, cancelReconciler = context.WithCancel(context.Background())
		recon := reconciler.New(
			reconciler.Config{
				Interval:  cfg.ReclaimInterval,
				Threshold: cfg.ReclaimThreshold,
				BatchSize: cfg.ReclaimBatchSize,
			},
			store,
			logger,
		)
		if metricsSink != nil {
			recon = recon.WithMetrics(metricsSink)
		}
		reconcilerWg.Add(1)
		go func() {
			defer reconcilerWg.Done()
			recon.Run(reconcilerCtx)
		}()
	} else {
		logger.Infow("RECLAIM_ENABLED not set; stale-RUNNING reclaim disabled")
	}

	runner.Start()
	logger.Infow("started", "poll_interval", cfg.PollInterval, "http", cfg.HTTPAddr, "version", version)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	logger.Infow("received signal, shutting down", "signal", received.String())

	// Phase 1: Stop the runner (no new executions; in-flight tick completes)
	runner.Stop()
	logger.Infow("runner stopped")

	// Phase 2: Stop the reconciler and retention sweeper
	if cancelReconciler != nil {
		cancelReconciler()
		reconcilerWg.Wait()
	}
	cancelRetention()
	retentionWg.Wait()

	// Phase 3: Stop the audit writer (drains buffered events)
	cancelAudit()
	auditWg.Wait()

	// Phase 4: Graceful HTTP shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("http server shutdown error", "error", err)
	}

	if metricsServer != nil {
		metricsShutdownCtx, metricsShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer metricsShutdownCancel()
		if err := metricsServer.Shutdown(metricsShutdownCtx); err != nil {
			logger.Errorw("metrics server shutdown error", "error", err)
		}
	}

	logger.Infow("stopped")
	return exitSuccess
}

// registerExecutors binds every configured job type. A type left without an
// executor (missing collaborator URL) fails through the normal job failure
// path at run time, which keeps the misconfiguration visible.
func registerExecutors(
	cfg config.Config,
	registry *executor.Registry,
	service *scheduler.Service,
	store *postgres.Store,
	breaker *circuitbreaker.CircuitBreaker,
	logger *zap.SugaredLogger,
) {
	if cfg.ChangelogAPIURL != "" {
		changelogAPI := executor.NewHTTPChangelogAPI(cfg.ChangelogAPIURL, cfg.ChangelogAPIToken)
		if breaker != nil {
			changelogAPI = changelogAPI.WithBreaker(breaker)
		}
		registry.Register(domain.JobTypePublishChangelogEntry, executor.NewPublishExecutor(changelogAPI, logger))
	} else {
		logger.Warnw("CHANGELOG_API_URL not set; publish jobs will fail")
	}

	if cfg.TelemetryURL != "" {
		instanceID := cfg.InstanceID
		if instanceID == "" {
			instanceID = uuid.NewString()
			logger.Warnw("INSTANCE_ID not set; using per-boot id", "instance_id", instanceID)
		}
		source := executor.NewStoreSnapshotSource(store, instanceID, version)
		collector := executor.NewHTTPCollector(cfg.TelemetryURL)
		if breaker != nil {
			collector = collector.WithBreaker(breaker)
		}
		registry.Register(domain.JobTypeTelemetrySend, executor.NewTelemetryExecutor(source, collector, logger))
	} else {
		logger.Infow("TELEMETRY_URL not set; telemetry jobs will fail")
	}

	if cfg.CertRenewURL != "" {
		renewer := certs.NewHTTPRenewer(cfg.CertRenewURL, cfg.CertRenewToken)
		renewal := executor.NewRenewalExecutor(store, renewer, &renewalSchedulerAdapter{service: service}, logger).
			WithExpiryWindow(cfg.CertExpiryWindow).
			WithRearmInterval(cfg.CertRearmInterval)
		registry.Register(domain.JobTypeRenewSSLCertificate, renewal)
	} else {
		logger.Infow("CERT_RENEW_URL not set; renewal jobs will fail")
	}

	logger.Infow("executors registered", "types", registry.Types())
}

func runValidate() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("jobd version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
