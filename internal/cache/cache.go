// Package cache provides the local fallback copy of backend-owned data.
// The cache is never authoritative: every successful backend read
// overwrites it, and values served without a backend confirmation are
// marked stale so callers can surface degraded decisions.
package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/mwhitfield/sentinel/internal/models"
	gocache "github.com/patrickmn/go-cache"
)

// AttemptWindow is the locally cached rolling window of attempts for one
// user, used to keep decisions available when the backend is unreachable.
type AttemptWindow struct {
	Attempts  []*models.LoginAttempt
	UpdatedAt time.Time
}

// LocalCache holds per-user attempt windows, lockout records and device
// trust marks for offline continuity.
type LocalCache struct {
	store      *gocache.Cache
	windowSize int
}

// New creates a LocalCache. Entries older than ttl are dropped; the
// rolling attempt window holds at most windowSize entries per user.
func New(ttl time.Duration, windowSize int) *LocalCache {
	return &LocalCache{
		store:      gocache.New(ttl, ttl/2),
		windowSize: windowSize,
	}
}

func attemptKey(email string) string { return "attempts:" + email }
func lockoutKey(email string) string { return "lockout:" + email }
func floorKey(email string) string   { return "floor:" + email }
func trustKey(userID, fingerprint string) string {
	return fmt.Sprintf("trust:%s:%s", userID, fingerprint)
}

// AppendAttempt adds an attempt to the user's local window, evicting the
// oldest entry past capacity.
func (c *LocalCache) AppendAttempt(email string, attempt *models.LoginAttempt) {
	window, _ := c.Attempts(email)
	attempts := append(window, attempt)
	if len(attempts) > c.windowSize {
		attempts = attempts[len(attempts)-c.windowSize:]
	}
	c.store.Set(attemptKey(email), &AttemptWindow{Attempts: attempts, UpdatedAt: time.Now()}, gocache.DefaultExpiration)
}

// ReplaceAttempts overwrites the local window with a fresh backend read.
func (c *LocalCache) ReplaceAttempts(email string, attempts []*models.LoginAttempt) {
	if len(attempts) > c.windowSize {
		attempts = attempts[len(attempts)-c.windowSize:]
	}
	c.store.Set(attemptKey(email), &AttemptWindow{Attempts: attempts, UpdatedAt: time.Now()}, gocache.DefaultExpiration)
}

// Attempts returns the locally cached window and whether it is stale
// (older than one refresh interval is still served; missing means stale).
func (c *LocalCache) Attempts(email string) ([]*models.LoginAttempt, bool) {
	v, ok := c.store.Get(attemptKey(email))
	if !ok {
		return nil, true
	}
	window := v.(*AttemptWindow)
	return window.Attempts, false
}

// SetFailureFloor marks the instant before which failures no longer
// count: set on successful login (full reset) and when a lockout is
// established (the lock consumed those failures).
func (c *LocalCache) SetFailureFloor(email string, at time.Time) {
	c.store.Set(floorKey(email), at, gocache.DefaultExpiration)
}

// FailureFloor returns the reset floor for an email, zero when none.
func (c *LocalCache) FailureFloor(email string) time.Time {
	if v, ok := c.store.Get(floorKey(email)); ok {
		return v.(time.Time)
	}
	return time.Time{}
}

// FailureTimes extracts failure timestamps since the given instant from
// the local window, newest first. Failures at or before the most recent
// success or the failure floor are excluded.
func (c *LocalCache) FailureTimes(email string, since time.Time) []time.Time {
	attempts, _ := c.Attempts(email)

	floor := c.FailureFloor(email)
	for _, a := range attempts {
		if a.Success && a.AttemptTime.After(floor) {
			floor = a.AttemptTime
		}
	}

	var times []time.Time
	for i := len(attempts) - 1; i >= 0; i-- {
		a := attempts[i]
		if a.Success || a.AttemptTime.Before(since) {
			continue
		}
		if !a.AttemptTime.After(floor) {
			continue
		}
		times = append(times, a.AttemptTime)
	}
	return times
}

// SetLockout caches the active lock for an email.
func (c *LocalCache) SetLockout(email string, rec *models.LockoutRecord) {
	c.store.Set(lockoutKey(email), rec, gocache.DefaultExpiration)
}

// Lockout returns the cached lock, if any. Expired locks are dropped.
func (c *LocalCache) Lockout(email string, now time.Time) *models.LockoutRecord {
	v, ok := c.store.Get(lockoutKey(email))
	if !ok {
		return nil
	}
	rec := v.(*models.LockoutRecord)
	if rec.Expired(now) {
		c.store.Delete(lockoutKey(email))
		return nil
	}
	return rec
}

// ClearLockout removes the cached lock for an email.
func (c *LocalCache) ClearLockout(email string) {
	c.store.Delete(lockoutKey(email))
}

// SetTrusted caches a device trust verdict.
func (c *LocalCache) SetTrusted(userID, fingerprint string, device *models.DeviceInfo) {
	c.store.Set(trustKey(userID, fingerprint), device, gocache.DefaultExpiration)
}

// Trusted returns the cached device record and whether the entry exists.
func (c *LocalCache) Trusted(userID, fingerprint string) (*models.DeviceInfo, bool) {
	v, ok := c.store.Get(trustKey(userID, fingerprint))
	if !ok {
		return nil, false
	}
	return v.(*models.DeviceInfo), true
}

// ClearTrusted drops the cached trust verdict (on revoke).
func (c *LocalCache) ClearTrusted(userID, fingerprint string) {
	c.store.Delete(trustKey(userID, fingerprint))
}

// CachedEmails returns the emails with a locally cached attempt window.
// The background refresher uses this to know which windows to resync.
func (c *LocalCache) CachedEmails() []string {
	var emails []string
	for key := range c.store.Items() {
		if strings.HasPrefix(key, "attempts:") {
			emails = append(emails, strings.TrimPrefix(key, "attempts:"))
		}
	}
	return emails
}

// Flush drops every cached entry. Used by the background refresh when a
// full resync is requested.
func (c *LocalCache) Flush() {
	c.store.Flush()
}
