package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mwhitfield/sentinel/internal/cache"
	"github.com/mwhitfield/sentinel/internal/fingerprint"
	"github.com/mwhitfield/sentinel/internal/models"
)

// AttemptStore defines the interface for attempt persistence
type AttemptStore interface {
	RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error
	GetStats(ctx context.Context, email string, since time.Time) (*models.LoginAttemptStats, error)
	SetFailureFloor(ctx context.Context, email string, at time.Time) error
}

// FailureCounter is the server-side atomic record-and-check path. When
// available it replaces client-side counting and closes the concurrent
// stale-read race.
type FailureCounter interface {
	RecordAndCheck(ctx context.Context, email string, maxAttempts int, window, lockout time.Duration) (*models.AtomicCheckResult, error)
	Reset(ctx context.Context, email string) error
}

// RecorderConfig holds the recorder's policy knobs.
// Now is an optional clock override; nil means time.Now.
type RecorderConfig struct {
	MaxFailedAttempts int
	FailureWindow     time.Duration
	LockoutDuration   time.Duration
	AttemptRetention  time.Duration // How long attempt rows are kept
	Now               func() time.Time
}

// RecordRequest carries one authentication attempt to evaluate.
type RecordRequest struct {
	Email         string `validate:"required,email"`
	Success       bool
	FailureReason string
	IPAddress     string
	Device        fingerprint.DeviceAttributes
	Fingerprint   string    // Optional precomputed fingerprint
	Timestamp     time.Time // Zero means now
}

// RecordResult is the recorder's decision for one attempt.
//
// Allowed defaults to true whenever a check cannot be completed: a
// recorder outage must never block a legitimate user. Degraded marks
// decisions computed from the local cache instead of the backend.
type RecordResult struct {
	Allowed  bool                    `json:"allowed"`
	Lockout  *models.LockoutInfo     `json:"lockout,omitempty"`
	Flags    []string                `json:"flags,omitempty"`
	Alerts   []*models.SecurityAlert `json:"alerts"`
	Degraded bool                    `json:"degraded,omitempty"`
}

// RecorderService persists each login attempt and runs it through the
// analyzer, the lockout engine and the alert factory.
type RecorderService struct {
	store    AttemptStore
	counter  FailureCounter // nil when no atomic path is configured
	analyzer *AnalyzerService
	lockout  *LockoutService
	alerts   *AlertService
	trust    *DeviceTrustService
	geo      CountryResolver
	cache    *cache.LocalCache
	config   RecorderConfig
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// NewRecorderService creates a new RecorderService. counter may be nil;
// client-side counting is then the only path.
func NewRecorderService(
	store AttemptStore,
	counter FailureCounter,
	analyzer *AnalyzerService,
	lockout *LockoutService,
	alerts *AlertService,
	trust *DeviceTrustService,
	geo CountryResolver,
	localCache *cache.LocalCache,
	config RecorderConfig,
	logger *slog.Logger,
) *RecorderService {
	now := config.Now
	if now == nil {
		now = time.Now
	}
	return &RecorderService{
		store:    store,
		counter:  counter,
		analyzer: analyzer,
		lockout:  lockout,
		alerts:   alerts,
		trust:    trust,
		geo:      geo,
		cache:    localCache,
		config:   config,
		validate: validator.New(),
		logger:   logger,
		now:      now,
	}
}

// Record evaluates one login attempt: validate, fingerprint, persist,
// analyze, decide lockout, emit alerts. Every backend failure on this
// path fails open and degrades to the local cache; only a positively
// established lock denies.
func (s *RecorderService) Record(ctx context.Context, req RecordRequest) (*RecordResult, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validate.Struct(req); err != nil {
		s.logger.Warn("attempt rejected by validation", slog.Any("error", err))
		return nil, models.ErrValidation
	}

	now := req.Timestamp
	if now.IsZero() {
		now = s.now()
	}

	fp := req.Fingerprint
	if fp == "" {
		fp = fingerprint.Generate(req.Device)
	}

	var failureReason *string
	if req.FailureReason != "" {
		failureReason = &req.FailureReason
	}

	attempt := &models.LoginAttempt{
		Email:             req.Email,
		Success:           req.Success,
		AttemptTime:       now,
		DeviceFingerprint: fp,
		IPAddress:         req.IPAddress,
		Country:           s.geo.Country(req.IPAddress),
		FailureReason:     failureReason,
		ExpiresAt:         now.Add(s.config.AttemptRetention),
	}

	// An active lock denies before anything else; the attempt is still
	// recorded for the audit window.
	locked, lockInfo := s.lockout.IsLocked(ctx, req.Email)

	flags := s.analyzer.Analyze(ctx, req.Email, attempt)
	attempt.SuspiciousFlags = flags.Names()

	result := &RecordResult{Allowed: true, Flags: attempt.SuspiciousFlags}

	if err := s.store.RecordAttempt(ctx, attempt); err != nil {
		// Fail open: the attempt record may be lost, availability wins
		// over a perfect audit trail.
		s.logger.Error("failed to persist login attempt, failing open", slog.Any("error", err))
		result.Degraded = true
	}
	s.cache.AppendAttempt(req.Email, attempt)

	if locked {
		result.Allowed = false
		result.Lockout = lockInfo
		// The standing lock already produced its account_locked alert when
		// it was created; flags raised on this attempt still alert.
		alerts := s.alerts.Build(attempt, models.LockoutDecision{}, flags)
		s.alerts.Publish(ctx, alerts)
		result.Alerts = alerts
		return result, nil
	}

	var decision models.LockoutDecision
	if req.Success {
		s.resetFailures(ctx, req.Email, now)
		if err := s.lockout.Reset(ctx, req.Email); err != nil {
			s.logger.Error("failed to clear lockout state", slog.Any("error", err))
		}
		// Keep first_seen/last_seen current; trust itself only changes
		// through explicit user action.
		if err := s.trust.ObserveLogin(ctx, req.Email, req.Device, fp); err != nil {
			s.logger.Error("failed to register device sighting", slog.Any("error", err))
		}
	} else {
		decision = s.decideLockout(ctx, req.Email, now, result)
		if decision.ShouldLock {
			rec, err := s.lockout.Lock(ctx, req.Email, decision.FailedAttempts, "too many failed login attempts")
			if err != nil {
				result.Degraded = true
			}
			// The lock consumes the failures that triggered it: once it
			// expires the count starts from zero.
			s.resetFailures(ctx, req.Email, now)
			result.Allowed = false
			result.Lockout = lockoutInfo(rec, now)
		}
	}

	alerts := s.alerts.Build(attempt, decision, flags)
	s.alerts.Publish(ctx, alerts)
	result.Alerts = alerts

	if !result.Allowed {
		s.logger.Warn("login attempt denied",
			slog.String("fingerprint", fp),
			slog.Int("failed_attempts", decision.FailedAttempts))
	}

	return result, nil
}

// ObserveSuccess registers the device after the auth collaborator
// confirmed the login, so first-seen/last-seen stay current.
func (s *RecorderService) ObserveSuccess(ctx context.Context, email string, attrs fingerprint.DeviceAttributes) error {
	fp := fingerprint.Generate(attrs)
	return s.trust.ObserveLogin(ctx, email, attrs, fp)
}

// decideLockout prefers the atomic server-side counter and falls back to
// counting client-side from the backend window, then the local cache.
func (s *RecorderService) decideLockout(ctx context.Context, email string, now time.Time, result *RecordResult) models.LockoutDecision {
	if s.counter != nil {
		res, err := s.counter.RecordAndCheck(ctx, email,
			s.config.MaxFailedAttempts, s.config.FailureWindow, s.config.LockoutDuration)
		if err == nil {
			decision := models.LockoutDecision{FailedAttempts: res.FailedAttemptsCount}
			if res.ShouldLockout {
				unlockAt := now.Add(time.Duration(res.LockoutDurationMinutes) * time.Minute)
				decision.ShouldLock = true
				decision.UnlockAt = &unlockAt
				decision.RemainingMinutes = res.LockoutDurationMinutes
			}
			return decision
		}
		s.logger.Error("atomic counter unavailable, falling back to client-side count", slog.Any("error", err))
	}

	windowStart := now.Add(-s.config.FailureWindow)
	stats, err := s.store.GetStats(ctx, email, windowStart)
	if err != nil {
		s.logger.Error("failed to read attempt stats, degrading to local cache", slog.Any("error", err))
		result.Degraded = true
		return s.lockout.Evaluate(s.cache.FailureTimes(email, windowStart), now)
	}

	return s.lockout.Evaluate(stats.FailureTimes, now)
}

// resetFailures clears failure history. Full reset, not decay: called on
// successful login and when a lockout consumes its triggering failures.
func (s *RecorderService) resetFailures(ctx context.Context, email string, now time.Time) {
	s.cache.SetFailureFloor(email, now)
	if err := s.store.SetFailureFloor(ctx, email, now); err != nil {
		s.logger.Error("failed to persist failure reset", slog.Any("error", err))
	}
	if s.counter != nil {
		if err := s.counter.Reset(ctx, email); err != nil {
			s.logger.Error("failed to reset failure counter", slog.Any("error", err))
		}
	}
}
