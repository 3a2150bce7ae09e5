package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mwhitfield/sentinel/internal/cache"
	"github.com/mwhitfield/sentinel/internal/fingerprint"
	"github.com/mwhitfield/sentinel/internal/models"
)

// DeviceStore defines the interface for device persistence
type DeviceStore interface {
	Get(ctx context.Context, userID, fingerprint string) (*models.DeviceInfo, error)
	Upsert(ctx context.Context, device *models.DeviceInfo) error
	SetTrust(ctx context.Context, userID, fingerprint string, trusted bool, expiresAt *time.Time) error
	Delete(ctx context.Context, userID, fingerprint string) error
	ListByUser(ctx context.Context, userID string) ([]*models.DeviceInfo, error)
}

// DeviceTrustConfig holds trust lifetime policy.
// Now is an optional clock override; nil means time.Now.
type DeviceTrustConfig struct {
	TrustTTL time.Duration
	Now      func() time.Time
}

// DeviceTrustService marks and reads whether a fingerprint is trusted for
// a user. Trust is time-bounded: an expired grant counts as untrusted
// without an explicit revoke.
type DeviceTrustService struct {
	store  DeviceStore
	cache  *cache.LocalCache
	config DeviceTrustConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewDeviceTrustService creates a new DeviceTrustService
func NewDeviceTrustService(store DeviceStore, localCache *cache.LocalCache, config DeviceTrustConfig, logger *slog.Logger) *DeviceTrustService {
	now := config.Now
	if now == nil {
		now = time.Now
	}
	return &DeviceTrustService{
		store:  store,
		cache:  localCache,
		config: config,
		logger: logger,
		now:    now,
	}
}

// IsTrusted reports whether the device is currently trusted for the user.
// Reads go through the backend; on failure the local cache answers, and
// with no cached verdict the device counts as untrusted (a false "new
// device" flag is preferable to silently skipping analysis).
func (s *DeviceTrustService) IsTrusted(ctx context.Context, userID, fp string) bool {
	now := s.now()

	device, err := s.store.Get(ctx, userID, fp)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.cache.ClearTrusted(userID, fp)
			return false
		}
		s.logger.Error("failed to read device trust, degrading to local cache", slog.Any("error", err))
		if cached, ok := s.cache.Trusted(userID, fp); ok {
			return cached.TrustValid(now)
		}
		return false
	}

	s.cache.SetTrusted(userID, fp, device)
	return device.TrustValid(now)
}

// ObserveLogin registers the device after a successful login, creating it
// on first sight and refreshing last_seen on return visits.
func (s *DeviceTrustService) ObserveLogin(ctx context.Context, userID string, attrs fingerprint.DeviceAttributes, fp string) error {
	now := s.now()

	device := &models.DeviceInfo{
		UserID:      userID,
		Fingerprint: fp,
		Name:        attrs.Model,
		OSName:      attrs.Platform,
		OSVersion:   attrs.OSVersion,
		AppVersion:  attrs.AppVersion,
		Trusted:     false,
		FirstSeen:   now,
		LastSeen:    now,
	}

	if err := s.store.Upsert(ctx, device); err != nil {
		s.logger.Error("failed to record device sighting",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return err
	}

	return nil
}

// Trust grants time-bounded trust to a device. Idempotent: re-trusting
// an already-trusted device refreshes last_seen and the expiry.
func (s *DeviceTrustService) Trust(ctx context.Context, userID, fp string) error {
	now := s.now()
	expiresAt := now.Add(s.config.TrustTTL)

	err := s.store.SetTrust(ctx, userID, fp, true, &expiresAt)
	if errors.Is(err, models.ErrDeviceNotFound) {
		// Trusting a device never seen on a successful login: create it
		device := &models.DeviceInfo{
			UserID:         userID,
			Fingerprint:    fp,
			Trusted:        true,
			TrustExpiresAt: &expiresAt,
			FirstSeen:      now,
			LastSeen:       now,
		}
		err = s.store.Upsert(ctx, device)
	}
	if err != nil {
		s.logger.Error("failed to trust device",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return err
	}

	s.cache.SetTrusted(userID, fp, &models.DeviceInfo{
		UserID:         userID,
		Fingerprint:    fp,
		Trusted:        true,
		TrustExpiresAt: &expiresAt,
		FirstSeen:      now,
		LastSeen:       now,
	})

	s.logger.Info("device trusted",
		slog.String("user_id", userID),
		slog.Time("expires_at", expiresAt))
	return nil
}

// Revoke removes trust immediately. Callers are expected to follow with a
// session invalidation signal to the auth collaborator.
func (s *DeviceTrustService) Revoke(ctx context.Context, userID, fp string) error {
	s.cache.ClearTrusted(userID, fp)

	if err := s.store.SetTrust(ctx, userID, fp, false, nil); err != nil {
		s.logger.Error("failed to revoke device trust",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return err
	}

	s.logger.Info("device trust revoked", slog.String("user_id", userID))
	return nil
}

// Forget removes the device record entirely.
func (s *DeviceTrustService) Forget(ctx context.Context, userID, fp string) error {
	s.cache.ClearTrusted(userID, fp)
	return s.store.Delete(ctx, userID, fp)
}

// ListDevices returns all devices seen for a user.
func (s *DeviceTrustService) ListDevices(ctx context.Context, userID string) ([]*models.DeviceInfo, error) {
	return s.store.ListByUser(ctx, userID)
}
