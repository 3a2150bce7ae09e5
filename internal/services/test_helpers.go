package services

import (
	"context"
	"time"

	"github.com/mwhitfield/sentinel/internal/models"
)

// MockAttemptStore implements AttemptStore and AttemptHistoryStore for testing
type MockAttemptStore struct {
	RecordAttemptFunc   func(ctx context.Context, attempt *models.LoginAttempt) error
	GetStatsFunc        func(ctx context.Context, email string, since time.Time) (*models.LoginAttemptStats, error)
	SetFailureFloorFunc func(ctx context.Context, email string, at time.Time) error
}

func (m *MockAttemptStore) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	if m.RecordAttemptFunc != nil {
		return m.RecordAttemptFunc(ctx, attempt)
	}
	return nil
}

func (m *MockAttemptStore) GetStats(ctx context.Context, email string, since time.Time) (*models.LoginAttemptStats, error) {
	if m.GetStatsFunc != nil {
		return m.GetStatsFunc(ctx, email, since)
	}
	return &models.LoginAttemptStats{Email: email}, nil
}

func (m *MockAttemptStore) SetFailureFloor(ctx context.Context, email string, at time.Time) error {
	if m.SetFailureFloorFunc != nil {
		return m.SetFailureFloorFunc(ctx, email, at)
	}
	return nil
}

// MockLockoutStore implements LockoutStore for testing
type MockLockoutStore struct {
	GetFunc    func(ctx context.Context, email string) (*models.LockoutRecord, error)
	UpsertFunc func(ctx context.Context, rec *models.LockoutRecord) error
	DeleteFunc func(ctx context.Context, email string) error
}

func (m *MockLockoutStore) Get(ctx context.Context, email string) (*models.LockoutRecord, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockLockoutStore) Upsert(ctx context.Context, rec *models.LockoutRecord) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, rec)
	}
	return nil
}

func (m *MockLockoutStore) Delete(ctx context.Context, email string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, email)
	}
	return nil
}

// MockDeviceStore implements DeviceStore for testing
type MockDeviceStore struct {
	GetFunc        func(ctx context.Context, userID, fingerprint string) (*models.DeviceInfo, error)
	UpsertFunc     func(ctx context.Context, device *models.DeviceInfo) error
	SetTrustFunc   func(ctx context.Context, userID, fingerprint string, trusted bool, expiresAt *time.Time) error
	DeleteFunc     func(ctx context.Context, userID, fingerprint string) error
	ListByUserFunc func(ctx context.Context, userID string) ([]*models.DeviceInfo, error)
}

func (m *MockDeviceStore) Get(ctx context.Context, userID, fingerprint string) (*models.DeviceInfo, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, userID, fingerprint)
	}
	return nil, models.ErrNotFound
}

func (m *MockDeviceStore) Upsert(ctx context.Context, device *models.DeviceInfo) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, device)
	}
	return nil
}

func (m *MockDeviceStore) SetTrust(ctx context.Context, userID, fingerprint string, trusted bool, expiresAt *time.Time) error {
	if m.SetTrustFunc != nil {
		return m.SetTrustFunc(ctx, userID, fingerprint, trusted, expiresAt)
	}
	return nil
}

func (m *MockDeviceStore) Delete(ctx context.Context, userID, fingerprint string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID, fingerprint)
	}
	return nil
}

func (m *MockDeviceStore) ListByUser(ctx context.Context, userID string) ([]*models.DeviceInfo, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID)
	}
	return []*models.DeviceInfo{}, nil
}

// MockAlertStore implements AlertStore for testing
type MockAlertStore struct {
	InsertFunc     func(ctx context.Context, alert *models.SecurityAlert) error
	ListByUserFunc func(ctx context.Context, email string) ([]*models.SecurityAlert, error)
	ResolveFunc    func(ctx context.Context, email, alertID string) error
}

func (m *MockAlertStore) Insert(ctx context.Context, alert *models.SecurityAlert) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, alert)
	}
	return nil
}

func (m *MockAlertStore) ListByUser(ctx context.Context, email string) ([]*models.SecurityAlert, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, email)
	}
	return []*models.SecurityAlert{}, nil
}

func (m *MockAlertStore) Resolve(ctx context.Context, email, alertID string) error {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, email, alertID)
	}
	return nil
}

// MockFailureCounter implements FailureCounter for testing
type MockFailureCounter struct {
	RecordAndCheckFunc func(ctx context.Context, email string, maxAttempts int, window, lockout time.Duration) (*models.AtomicCheckResult, error)
	ResetFunc          func(ctx context.Context, email string) error
}

func (m *MockFailureCounter) RecordAndCheck(ctx context.Context, email string, maxAttempts int, window, lockout time.Duration) (*models.AtomicCheckResult, error) {
	if m.RecordAndCheckFunc != nil {
		return m.RecordAndCheckFunc(ctx, email, maxAttempts, window, lockout)
	}
	return nil, models.ErrCounterDisabled
}

func (m *MockFailureCounter) Reset(ctx context.Context, email string) error {
	if m.ResetFunc != nil {
		return m.ResetFunc(ctx, email)
	}
	return nil
}

// MockAlertNotifier implements AlertNotifier for testing
type MockAlertNotifier struct {
	SendAlertEmailFunc func(ctx context.Context, email string, alert *models.SecurityAlert) error
}

func (m *MockAlertNotifier) SendAlertEmail(ctx context.Context, email string, alert *models.SecurityAlert) error {
	if m.SendAlertEmailFunc != nil {
		return m.SendAlertEmailFunc(ctx, email, alert)
	}
	return nil
}

// MockTrustChecker implements TrustChecker for testing
type MockTrustChecker struct {
	IsTrustedFunc func(ctx context.Context, userID, fingerprint string) bool
}

func (m *MockTrustChecker) IsTrusted(ctx context.Context, userID, fingerprint string) bool {
	if m.IsTrustedFunc != nil {
		return m.IsTrustedFunc(ctx, userID, fingerprint)
	}
	return false
}

// MockCountryResolver implements CountryResolver for testing
type MockCountryResolver struct {
	CountryFunc func(ip string) string
}

func (m *MockCountryResolver) Country(ip string) string {
	if m.CountryFunc != nil {
		return m.CountryFunc(ip)
	}
	return ""
}
