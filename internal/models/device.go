package models

import "time"

// DeviceInfo describes a device seen for a user, keyed by
// (user id, fingerprint). The fingerprint is derived deterministically
// from device attributes; uniqueness is not cryptographically guaranteed.
type DeviceInfo struct {
	UserID         string     `db:"user_id"`
	Fingerprint    string     `db:"device_fingerprint"`
	Name           string     `db:"name"`
	OSName         string     `db:"os_name"`
	OSVersion      string     `db:"os_version"`
	AppVersion     string     `db:"app_version"`
	Trusted        bool       `db:"trusted"`
	TrustExpiresAt *time.Time `db:"trust_expires_at"`
	FirstSeen      time.Time  `db:"first_seen"`
	LastSeen       time.Time  `db:"last_seen"`
}

// TrustValid reports whether the device is trusted at the given instant.
// An expired trust grant counts as untrusted without requiring a revoke.
func (d *DeviceInfo) TrustValid(now time.Time) bool {
	if !d.Trusted {
		return false
	}
	if d.TrustExpiresAt != nil && !now.Before(*d.TrustExpiresAt) {
		return false
	}
	return true
}
