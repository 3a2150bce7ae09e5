package services

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/mwhitfield/sentinel/internal/cache"
	"github.com/mwhitfield/sentinel/internal/models"
)

// LockoutStore defines the interface for lockout persistence
type LockoutStore interface {
	Get(ctx context.Context, email string) (*models.LockoutRecord, error)
	Upsert(ctx context.Context, rec *models.LockoutRecord) error
	Delete(ctx context.Context, email string) error
}

// LockoutConfig holds the lockout policy knobs.
// Now is an optional clock override; nil means time.Now.
type LockoutConfig struct {
	MaxFailedAttempts int
	FailureWindow     time.Duration
	LockoutDuration   time.Duration
	Now               func() time.Time
}

// LockoutService converts failure history into locked/unlocked decisions
// with lazy expiry: no timer clears a lock, the next check does.
type LockoutService struct {
	store  LockoutStore
	cache  *cache.LocalCache
	config LockoutConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewLockoutService creates a new LockoutService
func NewLockoutService(store LockoutStore, localCache *cache.LocalCache, config LockoutConfig, logger *slog.Logger) *LockoutService {
	now := config.Now
	if now == nil {
		now = time.Now
	}
	return &LockoutService{
		store:  store,
		cache:  localCache,
		config: config,
		logger: logger,
		now:    now,
	}
}

// Evaluate applies the policy to a failure window: lock when the number
// of failures within the trailing window reaches the threshold.
func (s *LockoutService) Evaluate(failureTimes []time.Time, now time.Time) models.LockoutDecision {
	windowStart := now.Add(-s.config.FailureWindow)

	count := 0
	for _, t := range failureTimes {
		if !t.Before(windowStart) {
			count++
		}
	}

	decision := models.LockoutDecision{FailedAttempts: count}
	if count >= s.config.MaxFailedAttempts {
		unlockAt := now.Add(s.config.LockoutDuration)
		decision.ShouldLock = true
		decision.UnlockAt = &unlockAt
		decision.RemainingMinutes = remainingMinutes(now, unlockAt)
	}

	return decision
}

// Lock records an active lock for the email. The unlock time is always
// strictly after the lock time.
func (s *LockoutService) Lock(ctx context.Context, email string, failedCount int, reason string) (*models.LockoutRecord, error) {
	now := s.now()
	rec := &models.LockoutRecord{
		Email:          email,
		LockedAt:       now,
		UnlockAt:       now.Add(s.config.LockoutDuration),
		Reason:         reason,
		FailedAttempts: failedCount,
	}

	if err := s.store.Upsert(ctx, rec); err != nil {
		// The lock still holds locally so repeated attempts in this
		// session stay blocked even with the backend down.
		s.logger.Error("failed to persist lockout", slog.Any("error", err))
		s.cache.SetLockout(email, rec)
		return rec, err
	}

	s.cache.SetLockout(email, rec)
	return rec, nil
}

// IsLocked reports whether the email is currently locked. Expired locks
// are cleared on the spot. Backend errors degrade to the local cache and
// otherwise fail open (not locked).
func (s *LockoutService) IsLocked(ctx context.Context, email string) (bool, *models.LockoutInfo) {
	now := s.now()

	rec, err := s.store.Get(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.cache.ClearLockout(email)
			return false, nil
		}
		s.logger.Error("failed to read lockout, degrading to local cache", slog.Any("error", err))
		if cached := s.cache.Lockout(email, now); cached != nil {
			return true, lockoutInfo(cached, now)
		}
		return false, nil
	}

	if rec.Expired(now) {
		// Lazy expiry
		if err := s.store.Delete(ctx, email); err != nil {
			s.logger.Error("failed to clear expired lockout", slog.Any("error", err))
		}
		s.cache.ClearLockout(email)
		return false, nil
	}

	s.cache.SetLockout(email, rec)
	return true, lockoutInfo(rec, now)
}

// Reset clears all lockout state for an email after a successful login.
func (s *LockoutService) Reset(ctx context.Context, email string) error {
	s.cache.ClearLockout(email)
	if err := s.store.Delete(ctx, email); err != nil {
		s.logger.Error("failed to clear lockout on reset", slog.Any("error", err))
		return err
	}
	return nil
}

func lockoutInfo(rec *models.LockoutRecord, now time.Time) *models.LockoutInfo {
	unlockAt := rec.UnlockAt
	return &models.LockoutInfo{
		Locked:           true,
		UnlockAt:         &unlockAt,
		RemainingMinutes: remainingMinutes(now, unlockAt),
		FailedAttempts:   rec.FailedAttempts,
	}
}

func remainingMinutes(now, unlockAt time.Time) int {
	remaining := unlockAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Minutes()))
}
