package models

import "time"

// LockoutRecord is created when the failure threshold is crossed within
// the policy window. Invariant: UnlockAt > LockedAt. A record is treated
// as expired once now >= UnlockAt and removed lazily on the next check.
type LockoutRecord struct {
	Email          string    `db:"email"`
	LockedAt       time.Time `db:"locked_at"`
	UnlockAt       time.Time `db:"unlock_at"`
	Reason         string    `db:"reason"`
	FailedAttempts int       `db:"failed_attempts"`
}

// Expired reports whether the lock has lapsed at the given instant.
func (l *LockoutRecord) Expired(now time.Time) bool {
	return !now.Before(l.UnlockAt)
}

// LockoutDecision is the policy engine's verdict for a failure window.
type LockoutDecision struct {
	ShouldLock       bool
	UnlockAt         *time.Time
	RemainingMinutes int
	FailedAttempts   int
}

// AtomicCheckResult is the verdict of the server-side atomic
// record-and-check RPC. Atomic counting closes the race where two
// near-simultaneous failures each read a stale count and neither
// triggers lockout.
type AtomicCheckResult struct {
	ShouldLockout          bool
	LockoutDurationMinutes int
	FailedAttemptsCount    int
}

// LockoutInfo is the caller-facing view of an active lock.
type LockoutInfo struct {
	Locked           bool       `json:"locked"`
	UnlockAt         *time.Time `json:"unlock_at,omitempty"`
	RemainingMinutes int        `json:"remaining_minutes,omitempty"`
	FailedAttempts   int        `json:"failed_attempts,omitempty"`
}
