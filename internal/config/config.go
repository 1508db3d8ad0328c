package config

import (
	"encoding/json"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all configuration for the job engine.
// Values are loaded from environment variables; see printUsage() in cmd/jobd
// for the full list.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL" json:"database_url"`
	RedisAddr   string `env:"REDIS_ADDR" json:"redis_addr,omitempty"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080" json:"http_addr"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" json:"log_level"`

	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"60s" json:"poll_interval"`

	DBOpTimeout       time.Duration `env:"DB_OP_TIMEOUT" envDefault:"5s" json:"db_op_timeout"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25" json:"db_max_open_conns"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5" json:"db_max_idle_conns"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m" json:"db_conn_max_lifetime"`
	DBConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"5m" json:"db_conn_max_idle_time"`

	HTTPShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s" json:"http_shutdown_timeout"`
	AuditDrainTimeout   time.Duration `env:"AUDIT_DRAIN_TIMEOUT" envDefault:"30s" json:"audit_drain_timeout"`
	EventBusBufferSize  int           `env:"EVENTBUS_BUFFER_SIZE" envDefault:"100" json:"eventbus_buffer_size"`

	MetricsEnabled bool   `env:"METRICS_ENABLED" json:"metrics_enabled"`
	MetricsPath    string `env:"METRICS_PATH" envDefault:"/metrics" json:"metrics_path"`
	MetricsPort    string `env:"METRICS_PORT" envDefault:"9090" json:"metrics_port"`

	ReclaimEnabled   bool          `env:"RECLAIM_ENABLED" json:"reclaim_enabled"`
	ReclaimInterval  time.Duration `env:"RECLAIM_INTERVAL" envDefault:"5m" json:"reclaim_interval"`
	ReclaimThreshold time.Duration `env:"RECLAIM_THRESHOLD" envDefault:"15m" json:"reclaim_threshold"`
	ReclaimBatchSize int           `env:"RECLAIM_BATCH_SIZE" envDefault:"100" json:"reclaim_batch_size"`

	CleanupSchedule string `env:"CLEANUP_SCHEDULE" envDefault:"0 3 * * *" json:"cleanup_schedule"`
	RetentionDays   int    `env:"RETENTION_DAYS" envDefault:"30" json:"retention_days"`

	ChangelogAPIURL   string `env:"CHANGELOG_API_URL" json:"changelog_api_url"`
	ChangelogAPIToken string `env:"CHANGELOG_API_TOKEN" json:"changelog_api_token"`

	TelemetryURL string `env:"TELEMETRY_URL" json:"telemetry_url,omitempty"`
	InstanceID   string `env:"INSTANCE_ID" json:"instance_id,omitempty"`

	CertRenewURL      string        `env:"CERT_RENEW_URL" json:"cert_renew_url,omitempty"`
	CertRenewToken    string        `env:"CERT_RENEW_TOKEN" json:"cert_renew_token,omitempty"`
	CertExpiryWindow  time.Duration `env:"CERT_EXPIRY_WINDOW" envDefault:"720h" json:"cert_expiry_window"`
	CertRearmInterval time.Duration `env:"CERT_REARM_INTERVAL" envDefault:"24h" json:"cert_rearm_interval"`

	// BreakerThreshold: 0 disables the circuit breaker.
	BreakerThreshold int           `env:"BREAKER_THRESHOLD" envDefault:"5" json:"breaker_threshold"`
	BreakerCooldown  time.Duration `env:"BREAKER_COOLDOWN" envDefault:"2m" json:"breaker_cooldown"`
}

// Load reads configuration from environment variables with defaults.
// Validation is handled separately by Validate().
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := c
	masked.DatabaseURL = maskSecret(c.DatabaseURL)
	masked.ChangelogAPIToken = maskToken(c.ChangelogAPIToken)
	masked.CertRenewToken = maskToken(c.CertRenewToken)
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value, preserving only the URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if len(s) >= len(scheme) && s[:len(scheme)] == scheme {
			return scheme + "***"
		}
	}
	return "***"
}

func maskToken(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
