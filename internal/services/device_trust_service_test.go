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

// inMemoryDeviceStore backs trust tests with map state so grants survive
// across calls the way rows would.
type inMemoryDeviceStore struct {
	devices map[string]*models.DeviceInfo
	failAll bool
}

func newInMemoryDeviceStore() *inMemoryDeviceStore {
	return &inMemoryDeviceStore{devices: make(map[string]*models.DeviceInfo)}
}

func deviceKey(userID, fp string) string { return userID + "|" + fp }

func (s *inMemoryDeviceStore) Get(ctx context.Context, userID, fp string) (*models.DeviceInfo, error) {
	if s.failAll {
		return nil, models.ErrBackend
	}
	d, ok := s.devices[deviceKey(userID, fp)]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *d
	return &copied, nil
}

func (s *inMemoryDeviceStore) Upsert(ctx context.Context, device *models.DeviceInfo) error {
	if s.failAll {
		return models.ErrBackend
	}
	key := deviceKey(device.UserID, device.Fingerprint)
	if existing, ok := s.devices[key]; ok {
		existing.Name = device.Name
		existing.OSName = device.OSName
		existing.OSVersion = device.OSVersion
		existing.AppVersion = device.AppVersion
		existing.LastSeen = device.LastSeen
		return nil
	}
	copied := *device
	s.devices[key] = &copied
	return nil
}

func (s *inMemoryDeviceStore) SetTrust(ctx context.Context, userID, fp string, trusted bool, expiresAt *time.Time) error {
	if s.failAll {
		return models.ErrBackend
	}
	d, ok := s.devices[deviceKey(userID, fp)]
	if !ok {
		return models.ErrDeviceNotFound
	}
	d.Trusted = trusted
	d.TrustExpiresAt = expiresAt
	return nil
}

func (s *inMemoryDeviceStore) Delete(ctx context.Context, userID, fp string) error {
	if s.failAll {
		return models.ErrBackend
	}
	delete(s.devices, deviceKey(userID, fp))
	return nil
}

func (s *inMemoryDeviceStore) ListByUser(ctx context.Context, userID string) ([]*models.DeviceInfo, error) {
	if s.failAll {
		return nil, models.ErrBackend
	}
	var out []*models.DeviceInfo
	for _, d := range s.devices {
		if d.UserID == userID {
			copied := *d
			out = append(out, &copied)
		}
	}
	return out, nil
}

func newTrustService(store services.DeviceStore, clock *time.Time) (*services.DeviceTrustService, *cache.LocalCache) {
	localCache := cache.New(time.Hour, 50)
	service := services.NewDeviceTrustService(store, localCache, services.DeviceTrustConfig{
		TrustTTL: 30 * 24 * time.Hour,
		Now:      func() time.Time { return *clock },
	}, testLogger())
	return service, localCache
}

const testFingerprint = "abcdef0123456789abcdef0123456789"

func TestDeviceTrust_TrustThenCheck(t *testing.T) {
	clock := testBase
	store := newInMemoryDeviceStore()
	service, _ := newTrustService(store, &clock)
	ctx := context.Background()

	attrs := fingerprint.DeviceAttributes{Platform: "ios", OSVersion: "17.4", Model: "iPhone15,2", AppVersion: "2.1.0"}
	require.NoError(t, service.ObserveLogin(ctx, "user@example.com", attrs, testFingerprint))

	assert.False(t, service.IsTrusted(ctx, "user@example.com", testFingerprint),
		"a merely observed device is not trusted")

	require.NoError(t, service.Trust(ctx, "user@example.com", testFingerprint))
	assert.True(t, service.IsTrusted(ctx, "user@example.com", testFingerprint))
}

func TestDeviceTrust_ExpiryBoundary(t *testing.T) {
	clock := testBase
	store := newInMemoryDeviceStore()
	service, _ := newTrustService(store, &clock)
	ctx := context.Background()

	require.NoError(t, service.Trust(ctx, "user@example.com", testFingerprint))

	clock = testBase.Add(29 * 24 * time.Hour)
	assert.True(t, service.IsTrusted(ctx, "user@example.com", testFingerprint), "29 days in, still trusted")

	clock = testBase.Add(31 * 24 * time.Hour)
	assert.False(t, service.IsTrusted(ctx, "user@example.com", testFingerprint), "31 days in, trust expired")
}

func TestDeviceTrust_RetrustRefreshesExpiry(t *testing.T) {
	clock := testBase
	store := newInMemoryDeviceStore()
	service, _ := newTrustService(store, &clock)
	ctx := context.Background()

	require.NoError(t, service.Trust(ctx, "user@example.com", testFingerprint))

	// Re-trust 20 days in; the grant now runs 30 days from here
	clock = testBase.Add(20 * 24 * time.Hour)
	require.NoError(t, service.Trust(ctx, "user@example.com", testFingerprint))

	clock = testBase.Add(45 * 24 * time.Hour)
	assert.True(t, service.IsTrusted(ctx, "user@example.com", testFingerprint))

	clock = testBase.Add(51 * 24 * time.Hour)
	assert.False(t, service.IsTrusted(ctx, "user@example.com", testFingerprint))
}

func TestDeviceTrust_TrustUnseenDeviceCreatesRecord(t *testing.T) {
	clock := testBase
	store := newInMemoryDeviceStore()
	service, _ := newTrustService(store, &clock)
	ctx := context.Background()

	require.NoError(t, service.Trust(ctx, "user@example.com", testFingerprint))
	assert.True(t, service.IsTrusted(ctx, "user@example.com", testFingerprint))

	devices, err := service.ListDevices(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Len(t, devices, 1)
}

func TestDeviceTrust_Revoke(t *testing.T) {
	clock := testBase
	store := newInMemoryDeviceStore()
	service, _ := newTrustService(store, &clock)
	ctx := context.Background()

	require.NoError(t, service.Trust(ctx, "user@example.com", testFingerprint))
	require.NoError(t, service.Revoke(ctx, "user@example.com", testFingerprint))

	assert.False(t, service.IsTrusted(ctx, "user@example.com", testFingerprint))
}

func TestDeviceTrust_BackendErrorUsesCachedVerdict(t *testing.T) {
	clock := testBase
	store := newInMemoryDeviceStore()
	service, _ := newTrustService(store, &clock)
	ctx := context.Background()

	require.NoError(t, service.Trust(ctx, "user@example.com", testFingerprint))

	store.failAll = true
	assert.True(t, service.IsTrusted(ctx, "user@example.com", testFingerprint),
		"cached trust verdict should answer while the backend is down")
}

func TestDeviceTrust_BackendErrorWithoutCacheIsUntrusted(t *testing.T) {
	clock := testBase
	store := newInMemoryDeviceStore()
	store.failAll = true
	service, _ := newTrustService(store, &clock)

	assert.False(t, service.IsTrusted(context.Background(), "user@example.com", testFingerprint))
}

func TestDeviceTrust_ForgetRemovesDevice(t *testing.T) {
	clock := testBase
	store := newInMemoryDeviceStore()
	service, _ := newTrustService(store, &clock)
	ctx := context.Background()

	require.NoError(t, service.Trust(ctx, "user@example.com", testFingerprint))
	require.NoError(t, service.Forget(ctx, "user@example.com", testFingerprint))

	assert.False(t, service.IsTrusted(ctx, "user@example.com", testFingerprint))
	devices, err := service.ListDevices(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Empty(t, devices)
}
