package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/mwhitfield/sentinel/internal/cache"
	"github.com/mwhitfield/sentinel/internal/fingerprint"
	"github.com/mwhitfield/sentinel/internal/models"
	"github.com/mwhitfield/sentinel/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAttemptStore keeps attempts in memory so counts accumulate across
// calls the way rows would, including failure-floor semantics.
type fakeAttemptStore struct {
	attempts   []*models.LoginAttempt
	floor      time.Time
	failRecord bool
	failStats  bool
}

func (s *fakeAttemptStore) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	if s.failRecord {
		return models.ErrBackend
	}
	copied := *attempt
	s.attempts = append(s.attempts, &copied)
	return nil
}

func (s *fakeAttemptStore) GetStats(ctx context.Context, email string, since time.Time) (*models.LoginAttemptStats, error) {
	if s.failStats {
		return nil, models.ErrBackend
	}

	stats := &models.LoginAttemptStats{Email: email}
	floor := s.floor
	for _, a := range s.attempts {
		if a.Email != email {
			continue
		}
		if a.Success {
			if a.AttemptTime.After(floor) {
				floor = a.AttemptTime
			}
			t := a.AttemptTime
			stats.LastSuccessTime = &t
			if a.Country != "" {
				stats.SuccessCountries = append(stats.SuccessCountries, a.Country)
			}
		}
	}
	for _, a := range s.attempts {
		if a.Email != email || a.Success {
			continue
		}
		if a.AttemptTime.Before(since) || !a.AttemptTime.After(floor) {
			continue
		}
		stats.FailureTimes = append(stats.FailureTimes, a.AttemptTime)
	}
	stats.FailedCount = len(stats.FailureTimes)
	return stats, nil
}

func (s *fakeAttemptStore) SetFailureFloor(ctx context.Context, email string, at time.Time) error {
	if s.failRecord {
		return models.ErrBackend
	}
	if at.After(s.floor) {
		s.floor = at
	}
	return nil
}

// fakeLockoutStore is a map-backed LockoutStore
type fakeLockoutStore struct {
	locks map[string]*models.LockoutRecord
}

func newFakeLockoutStore() *fakeLockoutStore {
	return &fakeLockoutStore{locks: make(map[string]*models.LockoutRecord)}
}

func (s *fakeLockoutStore) Get(ctx context.Context, email string) (*models.LockoutRecord, error) {
	rec, ok := s.locks[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

func (s *fakeLockoutStore) Upsert(ctx context.Context, rec *models.LockoutRecord) error {
	copied := *rec
	s.locks[rec.Email] = &copied
	return nil
}

func (s *fakeLockoutStore) Delete(ctx context.Context, email string) error {
	delete(s.locks, email)
	return nil
}

// recorderFixture wires a full recorder with in-memory collaborators and
// a controllable clock.
type recorderFixture struct {
	recorder     *services.RecorderService
	attemptStore *fakeAttemptStore
	lockStore    *fakeLockoutStore
	deviceStore  *inMemoryDeviceStore
	storedAlerts []*models.SecurityAlert
	trusted      bool
	clock        time.Time
}

func newRecorderFixture(t *testing.T, counter services.FailureCounter) *recorderFixture {
	t.Helper()

	f := &recorderFixture{
		attemptStore: &fakeAttemptStore{},
		lockStore:    newFakeLockoutStore(),
		deviceStore:  newInMemoryDeviceStore(),
		trusted:      true,
		clock:        testBase,
	}
	now := func() time.Time { return f.clock }

	logger := testLogger()
	localCache := cache.New(time.Hour, 50)

	lockout := services.NewLockoutService(f.lockStore, localCache, services.LockoutConfig{
		MaxFailedAttempts: 5,
		FailureWindow:     60 * time.Minute,
		LockoutDuration:   15 * time.Minute,
		Now:               now,
	}, logger)

	trustChecker := &services.MockTrustChecker{
		IsTrustedFunc: func(ctx context.Context, userID, fingerprint string) bool { return f.trusted },
	}

	analyzer := services.NewAnalyzerService(f.attemptStore, trustChecker,
		&services.MockCountryResolver{}, defaultAnalyzerConfig(), logger)

	alertStore := &services.MockAlertStore{
		InsertFunc: func(ctx context.Context, alert *models.SecurityAlert) error {
			f.storedAlerts = append(f.storedAlerts, alert)
			return nil
		},
	}
	alerts := services.NewAlertService(alertStore, nil, logger)

	trust := services.NewDeviceTrustService(f.deviceStore, localCache, services.DeviceTrustConfig{
		TrustTTL: 30 * 24 * time.Hour,
		Now:      now,
	}, logger)

	f.recorder = services.NewRecorderService(
		f.attemptStore,
		counter,
		analyzer,
		lockout,
		alerts,
		trust,
		&services.MockCountryResolver{},
		localCache,
		services.RecorderConfig{
			MaxFailedAttempts: 5,
			FailureWindow:     60 * time.Minute,
			LockoutDuration:   15 * time.Minute,
			AttemptRetention:  24 * time.Hour,
			Now:               now,
		},
		logger,
	)

	return f
}

func (f *recorderFixture) failAt(t *testing.T, offset time.Duration) *services.RecordResult {
	t.Helper()
	f.clock = testBase.Add(offset)
	result, err := f.recorder.Record(context.Background(), services.RecordRequest{
		Email:         "user@example.com",
		Success:       false,
		FailureReason: "invalid_credentials",
		Fingerprint:   testFingerprint,
	})
	require.NoError(t, err)
	return result
}

func (f *recorderFixture) succeedAt(t *testing.T, offset time.Duration) *services.RecordResult {
	t.Helper()
	f.clock = testBase.Add(offset)
	result, err := f.recorder.Record(context.Background(), services.RecordRequest{
		Email:       "user@example.com",
		Success:     true,
		Fingerprint: testFingerprint,
	})
	require.NoError(t, err)
	return result
}

func TestRecorder_FifthFailureLocks(t *testing.T) {
	f := newRecorderFixture(t, nil)

	for i := 0; i < 4; i++ {
		result := f.failAt(t, time.Duration(i)*time.Minute)
		assert.True(t, result.Allowed, "attempt %d should still be allowed", i+1)
		assert.Nil(t, result.Lockout)
	}

	result := f.failAt(t, 4*time.Minute)
	assert.False(t, result.Allowed)
	require.NotNil(t, result.Lockout)
	assert.True(t, result.Lockout.Locked)
	assert.Equal(t, 15, result.Lockout.RemainingMinutes)
	assert.Equal(t, 5, result.Lockout.FailedAttempts)

	// Exactly one account_locked alert was published
	lockedAlerts := 0
	for _, a := range f.storedAlerts {
		if a.Type == models.AlertAccountLocked {
			lockedAlerts++
		}
	}
	assert.Equal(t, 1, lockedAlerts)
}

func TestRecorder_DeniedWhileLocked(t *testing.T) {
	f := newRecorderFixture(t, nil)

	for i := 0; i < 5; i++ {
		f.failAt(t, time.Duration(i)*time.Minute)
	}

	result := f.failAt(t, 5*time.Minute)
	assert.False(t, result.Allowed)
	require.NotNil(t, result.Lockout)
	assert.Equal(t, 14, result.Lockout.RemainingMinutes)
	assert.Empty(t, result.Alerts, "an unflagged denial must not repeat the account_locked alert")

	// The denied attempt is still recorded for the audit trail
	assert.Len(t, f.attemptStore.attempts, 6)
}

func TestRecorder_FlaggedAttemptAlertsWhileLocked(t *testing.T) {
	f := newRecorderFixture(t, nil)

	for i := 0; i < 5; i++ {
		f.failAt(t, time.Duration(i)*time.Minute)
	}

	// An attempt from an untrusted device while the lock holds: denied,
	// but the new_device flag still produces its suspicious_login alert.
	f.trusted = false
	before := len(f.storedAlerts)
	result := f.failAt(t, 5*time.Minute)
	assert.False(t, result.Allowed)
	assert.Contains(t, result.Flags, models.FlagNewDevice)
	require.Len(t, result.Alerts, 1)
	assert.Equal(t, models.AlertSuspiciousLogin, result.Alerts[0].Type)

	// The flagged denial persisted its alert without repeating the
	// account_locked one from the lock's creation.
	require.Len(t, f.storedAlerts, before+1)
	assert.Equal(t, models.AlertSuspiciousLogin, f.storedAlerts[before].Type)

	lockedAlerts := 0
	for _, a := range f.storedAlerts {
		if a.Type == models.AlertAccountLocked {
			lockedAlerts++
		}
	}
	assert.Equal(t, 1, lockedAlerts)
}

func TestRecorder_LockExpiresLazilyAndFailuresDoNotCarryOver(t *testing.T) {
	f := newRecorderFixture(t, nil)

	for i := 0; i < 5; i++ {
		f.failAt(t, time.Duration(i)*time.Minute)
	}

	// Lock placed at t=4 min holds for 15 min; at t=20 min it has expired
	// and the failures it consumed do not count toward a new lock even
	// though they are still inside the trailing hour.
	result := f.failAt(t, 20*time.Minute)
	assert.True(t, result.Allowed)
	assert.Nil(t, result.Lockout)
}

func TestRecorder_SuccessResetsFailureCount(t *testing.T) {
	f := newRecorderFixture(t, nil)

	for i := 0; i < 4; i++ {
		f.failAt(t, time.Duration(i)*time.Minute)
	}

	result := f.succeedAt(t, 4*time.Minute)
	assert.True(t, result.Allowed)

	// Four more failures start from zero: none of them locks
	for i := 5; i < 9; i++ {
		result := f.failAt(t, time.Duration(i)*time.Minute)
		assert.True(t, result.Allowed, "failure after reset should not lock yet")
	}

	// The fifth post-reset failure does
	result = f.failAt(t, 9*time.Minute)
	assert.False(t, result.Allowed)
}

func TestRecorder_SuccessClearsActiveLockState(t *testing.T) {
	f := newRecorderFixture(t, nil)

	for i := 0; i < 5; i++ {
		f.failAt(t, time.Duration(i)*time.Minute)
	}

	// After expiry a success clears every trace of the lock
	f.succeedAt(t, 25*time.Minute)
	_, err := f.lockStore.Get(context.Background(), "user@example.com")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRecorder_CleanSuccessHasNoAlerts(t *testing.T) {
	f := newRecorderFixture(t, nil)

	result := f.succeedAt(t, 0)

	assert.True(t, result.Allowed)
	assert.Empty(t, result.Flags)
	assert.Empty(t, result.Alerts)
	assert.Empty(t, f.storedAlerts)
}

func TestRecorder_FlagsPropagateToResultAndAlerts(t *testing.T) {
	f := newRecorderFixture(t, nil)
	f.trusted = false

	result := f.failAt(t, 0)

	assert.Contains(t, result.Flags, models.FlagNewDevice)
	require.Len(t, result.Alerts, 1)
	assert.Equal(t, models.AlertSuspiciousLogin, result.Alerts[0].Type)
}

func TestRecorder_ValidationRejectsWithoutRecording(t *testing.T) {
	f := newRecorderFixture(t, nil)

	_, err := f.recorder.Record(context.Background(), services.RecordRequest{
		Email:   "not-an-email",
		Success: false,
	})

	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Empty(t, f.attemptStore.attempts, "rejected attempts must not be recorded")
}

func TestRecorder_EmailIsNormalized(t *testing.T) {
	f := newRecorderFixture(t, nil)

	result, err := f.recorder.Record(context.Background(), services.RecordRequest{
		Email:       "  User@Example.COM ",
		Success:     true,
		Fingerprint: testFingerprint,
	})

	require.NoError(t, err)
	assert.True(t, result.Allowed)
	require.Len(t, f.attemptStore.attempts, 1)
	assert.Equal(t, "user@example.com", f.attemptStore.attempts[0].Email)
}

func TestRecorder_GeneratesFingerprintFromAttributes(t *testing.T) {
	f := newRecorderFixture(t, nil)

	attrs := fingerprint.DeviceAttributes{Platform: "ios", OSVersion: "17.4", Model: "iPhone15,2", AppVersion: "2.1.0"}
	_, err := f.recorder.Record(context.Background(), services.RecordRequest{
		Email:   "user@example.com",
		Success: true,
		Device:  attrs,
	})

	require.NoError(t, err)
	require.Len(t, f.attemptStore.attempts, 1)
	assert.Equal(t, fingerprint.Generate(attrs), f.attemptStore.attempts[0].DeviceFingerprint)
}

func TestRecorder_BackendDownFailsOpen(t *testing.T) {
	f := newRecorderFixture(t, nil)
	f.attemptStore.failRecord = true
	f.attemptStore.failStats = true

	result := f.failAt(t, 0)

	assert.True(t, result.Allowed, "a recorder outage must never block a login")
	assert.True(t, result.Degraded)
}

func TestRecorder_CacheCountsLockoutsWhileBackendDown(t *testing.T) {
	f := newRecorderFixture(t, nil)
	f.attemptStore.failRecord = true
	f.attemptStore.failStats = true

	// The local window still accumulates the failures and the fifth one
	// locks even with the backend unreachable.
	var result *services.RecordResult
	for i := 0; i < 5; i++ {
		result = f.failAt(t, time.Duration(i)*time.Minute)
		assert.True(t, result.Degraded)
	}

	assert.False(t, result.Allowed)
	require.NotNil(t, result.Lockout)
	assert.Equal(t, 15, result.Lockout.RemainingMinutes)
}

func TestRecorder_AtomicCounterDecides(t *testing.T) {
	count := 0
	resets := 0
	counter := &services.MockFailureCounter{
		RecordAndCheckFunc: func(ctx context.Context, email string, maxAttempts int, window, lockout time.Duration) (*models.AtomicCheckResult, error) {
			count++
			return &models.AtomicCheckResult{
				ShouldLockout:          count >= maxAttempts,
				LockoutDurationMinutes: int(lockout.Minutes()),
				FailedAttemptsCount:    count,
			}, nil
		},
		ResetFunc: func(ctx context.Context, email string) error {
			count = 0
			resets++
			return nil
		},
	}

	f := newRecorderFixture(t, counter)

	for i := 0; i < 4; i++ {
		result := f.failAt(t, time.Duration(i)*time.Minute)
		assert.True(t, result.Allowed)
	}

	result := f.failAt(t, 4*time.Minute)
	assert.False(t, result.Allowed)
	require.NotNil(t, result.Lockout)
	assert.Equal(t, 15, result.Lockout.RemainingMinutes)
	assert.Equal(t, 1, resets, "establishing the lock consumes the counted failures")
}

func TestRecorder_AtomicCounterResetOnSuccess(t *testing.T) {
	resets := 0
	counter := &services.MockFailureCounter{
		RecordAndCheckFunc: func(ctx context.Context, email string, maxAttempts int, window, lockout time.Duration) (*models.AtomicCheckResult, error) {
			return &models.AtomicCheckResult{FailedAttemptsCount: 1}, nil
		},
		ResetFunc: func(ctx context.Context, email string) error {
			resets++
			return nil
		},
	}

	f := newRecorderFixture(t, counter)
	f.succeedAt(t, 0)

	assert.Equal(t, 1, resets)
}

func TestRecorder_AtomicCounterErrorFallsBackToClientCount(t *testing.T) {
	counter := &services.MockFailureCounter{
		RecordAndCheckFunc: func(ctx context.Context, email string, maxAttempts int, window, lockout time.Duration) (*models.AtomicCheckResult, error) {
			return nil, models.ErrBackend
		},
	}

	f := newRecorderFixture(t, counter)

	for i := 0; i < 4; i++ {
		f.failAt(t, time.Duration(i)*time.Minute)
	}
	result := f.failAt(t, 4*time.Minute)

	assert.False(t, result.Allowed, "client-side count takes over when the counter is down")
}

func TestRecorder_ObserveSuccessRegistersDevice(t *testing.T) {
	f := newRecorderFixture(t, nil)

	attrs := fingerprint.DeviceAttributes{Platform: "android", OSVersion: "14", Model: "Pixel 8", AppVersion: "2.1.0"}
	require.NoError(t, f.recorder.ObserveSuccess(context.Background(), "user@example.com", attrs))

	devices, err := f.deviceStore.ListByUser(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Len(t, devices, 1)
	assert.Equal(t, fingerprint.Generate(attrs), devices[0].Fingerprint)
}
