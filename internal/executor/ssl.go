package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unquietwiki/changerawr-sub003/internal/certs"
)

// RenewalScheduler enqueues the next renewal job. The scheduler service
// provides this through an adapter in main; the executor only knows the
// narrow rearm call.
type RenewalScheduler interface {
	ScheduleRenewal(ctx context.Context, runAt time.Time) (uuid.UUID, error)
}

// Defaults for the renewal sweep. A certificate is picked up once it is
// within the expiry window; the job rearms itself one interval out.
const (
	DefaultExpiryWindow  = 30 * 24 * time.Hour
	DefaultRearmInterval = 24 * time.Hour
)

// RenewalExecutor scans the certificate inventory for certs nearing expiry
// and renews each through the black-box renewer. It ignores the entity id.
//
// Per-certificate failures are logged and tolerated; only an error from the
// sweep orchestration itself fails the job. On success the executor schedules
// its own next run rather than relying on a fixed recurring schedule.
type RenewalExecutor struct {
	inventory     certs.Inventory
	renewer       certs.Renewer
	scheduler     RenewalScheduler
	expiryWindow  time.Duration
	rearmInterval time.Duration
	clock         func() time.Time
	logger        *zap.SugaredLogger
}

func NewRenewalExecutor(inventory certs.Inventory, renewer certs.Renewer, scheduler RenewalScheduler, logger *zap.SugaredLogger) *RenewalExecutor {
	return &RenewalExecutor{
		inventory:     inventory,
		renewer:       renewer,
		scheduler:     scheduler,
		expiryWindow:  DefaultExpiryWindow,
		rearmInterval: DefaultRearmInterval,
		clock:         time.Now,
		logger:        logger.Named("sslrenew"),
	}
}

// WithExpiryWindow overrides how far ahead of expiry certs are renewed.
func (e *RenewalExecutor) WithExpiryWindow(d time.Duration) *RenewalExecutor {
	e.expiryWindow = d
	return e
}

// WithRearmInterval overrides how far out the successor job is scheduled.
func (e *RenewalExecutor) WithRearmInterval(d time.Duration) *RenewalExecutor {
	e.rearmInterval = d
	return e
}

func (e *RenewalExecutor) Execute(ctx context.Context, entityID string) error {
	now := e.clock().UTC()

	expiring, err := e.inventory.ExpiringCertificates(ctx, now.Add(e.expiryWindow))
	if err != nil {
		return fmt.Errorf("list expiring certificates: %w", err)
	}

	renewed := 0
	failed := 0

	for _, cert := range expiring {
		if ctx.Err() != nil {
			return fmt.Errorf("renewal sweep interrupted: %w", ctx.Err())
		}

		result, err := e.renewer.Renew(ctx, cert.Domain)
		if err != nil {
			// One bad cert must not sink the sweep.
			e.logger.Warnw("certificate renewal failed",
				"domain", cert.Domain,
				"expires_at", cert.ExpiresAt,
				"error", err)
			failed++
			continue
		}

		if err := e.inventory.MarkRenewed(ctx, cert.Domain, result.IssuedAt, result.ExpiresAt); err != nil {
			e.logger.Warnw("renewed but failed to update inventory",
				"domain", cert.Domain,
				"error", err)
			failed++
			continue
		}

		e.logger.Infow("certificate renewed",
			"domain", cert.Domain,
			"new_expiry", result.ExpiresAt)
		renewed++
	}

	e.logger.Infow("renewal sweep complete",
		"expiring", len(expiring),
		"renewed", renewed,
		"failed", failed)

	nextRun := now.Add(e.rearmInterval)
	id, err := e.scheduler.ScheduleRenewal(ctx, nextRun)
	if err != nil {
		return fmt.Errorf("schedule next renewal: %w", err)
	}
	e.logger.Infow("next renewal scheduled", "job_id", id, "run_at", nextRun)

	return nil
}
