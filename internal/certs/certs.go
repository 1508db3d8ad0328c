// Package certs exposes the managed-certificate inventory and the renewal
// collaborator. Issuance protocol internals (ACME and friends) stay behind
// the Renewer; this subsystem only asks "renew this domain" and records the
// outcome.
package certs

import (
	"context"
	"time"

	"github.com/unquietwiki/changerawr-sub003/internal/domain"
)

// Inventory tracks which certificates this instance manages.
type Inventory interface {
	// ExpiringCertificates returns certificates expiring by deadline,
	// soonest first.
	ExpiringCertificates(ctx context.Context, deadline time.Time) ([]domain.Certificate, error)

	// MarkRenewed records a successful renewal.
	MarkRenewed(ctx context.Context, domainName string, issuedAt, expiresAt time.Time) error
}

// Renewer performs one black-box renewal and reports the new validity.
type Renewer interface {
	Renew(ctx context.Context, domainName string) (domain.Certificate, error)
}
