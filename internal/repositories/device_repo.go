package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/mwhitfield/sentinel/internal/database"
	"github.com/mwhitfield/sentinel/internal/models"
)

// DeviceRepository handles trusted-device records keyed by
// (user_id, device_fingerprint).
type DeviceRepository struct {
	db *database.DB
}

// NewDeviceRepository creates a new DeviceRepository
func NewDeviceRepository(db *database.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// Get returns the device record for a user/fingerprint pair.
func (r *DeviceRepository) Get(ctx context.Context, userID, fingerprint string) (*models.DeviceInfo, error) {
	query := `
		SELECT user_id, device_fingerprint, name, os_name, os_version, app_version, trusted, trust_expires_at, first_seen, last_seen
		FROM trusted_devices
		WHERE user_id = $1 AND device_fingerprint = $2
	`

	var d models.DeviceInfo
	err := r.db.Pool.QueryRow(ctx, query, userID, fingerprint).Scan(
		&d.UserID, &d.Fingerprint, &d.Name, &d.OSName, &d.OSVersion,
		&d.AppVersion, &d.Trusted, &d.TrustExpiresAt, &d.FirstSeen, &d.LastSeen,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &d, nil
}

// Upsert inserts the device on first sight and refreshes last_seen and
// descriptive attributes on subsequent logins. first_seen is preserved.
func (r *DeviceRepository) Upsert(ctx context.Context, device *models.DeviceInfo) error {
	query := `
		INSERT INTO trusted_devices (user_id, device_fingerprint, name, os_name, os_version, app_version, trusted, trust_expires_at, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, device_fingerprint) DO UPDATE SET
			name = EXCLUDED.name,
			os_name = EXCLUDED.os_name,
			os_version = EXCLUDED.os_version,
			app_version = EXCLUDED.app_version,
			last_seen = EXCLUDED.last_seen
	`

	_, err := r.db.Pool.Exec(ctx, query,
		device.UserID, device.Fingerprint, device.Name, device.OSName,
		device.OSVersion, device.AppVersion, device.Trusted,
		device.TrustExpiresAt, device.FirstSeen, device.LastSeen,
	)
	return database.MapPostgresError(err)
}

// SetTrust grants or revokes trust for a device. Granting is idempotent:
// re-trusting refreshes last_seen and the expiry.
func (r *DeviceRepository) SetTrust(ctx context.Context, userID, fingerprint string, trusted bool, expiresAt *time.Time) error {
	query := `
		UPDATE trusted_devices
		SET trusted = $3, trust_expires_at = $4, last_seen = CURRENT_TIMESTAMP
		WHERE user_id = $1 AND device_fingerprint = $2
	`

	tag, err := r.db.Pool.Exec(ctx, query, userID, fingerprint, trusted, expiresAt)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrDeviceNotFound
	}
	return nil
}

// Delete removes a device record entirely (explicit revoke-and-forget).
func (r *DeviceRepository) Delete(ctx context.Context, userID, fingerprint string) error {
	query := `DELETE FROM trusted_devices WHERE user_id = $1 AND device_fingerprint = $2`

	tag, err := r.db.Pool.Exec(ctx, query, userID, fingerprint)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrDeviceNotFound
	}
	return nil
}

// ListByUser returns all devices seen for a user, most recent first.
func (r *DeviceRepository) ListByUser(ctx context.Context, userID string) ([]*models.DeviceInfo, error) {
	query := `
		SELECT user_id, device_fingerprint, name, os_name, os_version, app_version, trusted, trust_expires_at, first_seen, last_seen
		FROM trusted_devices
		WHERE user_id = $1
		ORDER BY last_seen DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	devices := make([]*models.DeviceInfo, 0)
	for rows.Next() {
		var d models.DeviceInfo
		err := rows.Scan(
			&d.UserID, &d.Fingerprint, &d.Name, &d.OSName, &d.OSVersion,
			&d.AppVersion, &d.Trusted, &d.TrustExpiresAt, &d.FirstSeen, &d.LastSeen,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, database.MapPostgresError(err)
	}

	return devices, nil
}
