package domain

import "time"

// Session is the resolved form of a credential.
// It is never mutated after the validator builds it.
type Session struct {
	Identity   string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Credential string
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Remaining returns the lifetime left at now, zero once expired.
func (s Session) Remaining(now time.Time) time.Duration {
	if s.Expired(now) {
		return 0
	}
	return s.ExpiresAt.Sub(now)
}
