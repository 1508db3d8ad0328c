package domain

import "time"

// Certificate is one managed TLS certificate tracked by the renewal job.
// Issuance internals live behind the renewer; this is only the inventory row.
type Certificate struct {
	Domain    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ExpiresWithin reports whether the certificate expires within d of now.
func (c Certificate) ExpiresWithin(now time.Time, d time.Duration) bool {
	return !c.ExpiresAt.After(now.Add(d))
}
