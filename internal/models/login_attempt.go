package models

import "time"

// Suspicious activity flags attached to a login attempt. Flags are
// independent and additive; any subset may fire for a single attempt.
const (
	FlagRapidFailures   = "rapid_failures"
	FlagUnusualTime     = "unusual_time"
	FlagNewDevice       = "new_device"
	FlagUnusualLocation = "unusual_location"
)

// Flags is the set of suspicious activity flags raised for an attempt.
type Flags map[string]struct{}

// NewFlags builds a flag set from the given flag names.
func NewFlags(names ...string) Flags {
	f := make(Flags, len(names))
	for _, n := range names {
		f[n] = struct{}{}
	}
	return f
}

// Has reports whether the flag is present.
func (f Flags) Has(name string) bool {
	_, ok := f[name]
	return ok
}

// Names returns the flags as a slice for persistence and responses.
func (f Flags) Names() []string {
	names := make([]string, 0, len(f))
	for _, n := range []string{FlagRapidFailures, FlagUnusualTime, FlagNewDevice, FlagUnusualLocation} {
		if f.Has(n) {
			names = append(names, n)
		}
	}
	return names
}

// LoginAttempt represents a single login attempt in the system.
// Attempts are immutable once written and retained in a bounded rolling
// window per user (oldest evicted on overflow).
type LoginAttempt struct {
	ID                string    `db:"id"`
	Email             string    `db:"email"`
	Success           bool      `db:"success"`
	AttemptTime       time.Time `db:"attempt_time"`
	DeviceFingerprint string    `db:"device_fingerprint"`
	IPAddress         string    `db:"ip_address"`
	Country           string    `db:"country"`
	FailureReason     *string   `db:"failure_reason"`
	SuspiciousFlags   []string  `db:"suspicious_flags"`
	ExpiresAt         time.Time `db:"expires_at"`
}

// LoginAttemptStats aggregates login attempt history for lockout decisions
type LoginAttemptStats struct {
	Email            string
	FailedCount      int         // Failed attempts in the lookback window
	FailureTimes     []time.Time // Timestamps of failures in the window, newest first
	LastSuccessTime  *time.Time  // Most recent successful login
	SuccessCountries []string    // Countries seen across prior successful logins
}
