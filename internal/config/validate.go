package config

import (
	"fmt"

	"github.com/unquietwiki/changerawr-sub003/internal/cron"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	if cfg.DatabaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "DATABASE_URL",
			Message: "required",
		})
	}

	if cfg.PollInterval <= 0 {
		errs = append(errs, ValidationError{
			Field:   "POLL_INTERVAL",
			Message: "must be positive",
		})
	}

	if cfg.RetentionDays <= 0 {
		errs = append(errs, ValidationError{
			Field:   "RETENTION_DAYS",
			Message: "must be positive",
		})
	}

	if cfg.EventBusBufferSize <= 0 {
		errs = append(errs, ValidationError{
			Field:   "EVENTBUS_BUFFER_SIZE",
			Message: "must be positive",
		})
	}

	if _, err := cron.ParseSchedule(cfg.CleanupSchedule); err != nil {
		errs = append(errs, ValidationError{
			Field:   "CLEANUP_SCHEDULE",
			Message: fmt.Sprintf("invalid cron expression: %v", err),
		})
	}

	if cfg.ReclaimEnabled {
		if cfg.ReclaimThreshold <= cfg.PollInterval {
			errs = append(errs, ValidationError{
				Field:   "RECLAIM_THRESHOLD",
				Message: "must exceed POLL_INTERVAL, otherwise live jobs get requeued mid-run",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
