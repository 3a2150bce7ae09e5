package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mwhitfield/sentinel/internal/database"
	"github.com/mwhitfield/sentinel/internal/models"
)

// LoginAttemptRepository handles database operations for login attempts
type LoginAttemptRepository struct {
	db         *database.DB
	windowSize int
}

// NewLoginAttemptRepository creates a new LoginAttemptRepository.
// windowSize bounds the rolling number of attempts kept per email.
func NewLoginAttemptRepository(db *database.DB, windowSize int) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db, windowSize: windowSize}
}

// RecordAttempt inserts a login attempt and evicts the oldest rows beyond
// the per-email rolling window. Insert and eviction commit together so a
// failure mid-way never leaves an oversized window.
func (r *LoginAttemptRepository) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	attempt.ID = uuid.New().String()

	query := `
		INSERT INTO login_attempts (id, email, success, attempt_time, device_fingerprint, ip_address, country, failure_reason, suspicious_flags, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	evict := `
		DELETE FROM login_attempts
		WHERE email = $1 AND id NOT IN (
			SELECT id FROM login_attempts
			WHERE email = $1
			ORDER BY attempt_time DESC
			LIMIT $2
		)
	`

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, query,
			attempt.ID,
			attempt.Email,
			attempt.Success,
			attempt.AttemptTime,
			attempt.DeviceFingerprint,
			attempt.IPAddress,
			attempt.Country,
			attempt.FailureReason,
			attempt.SuspiciousFlags,
			attempt.ExpiresAt,
		)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, evict, attempt.Email, r.windowSize)
		return err
	})
	return database.MapPostgresError(err)
}

// GetFailureTimes returns timestamps of failed attempts for an email within
// a time window, newest first.
func (r *LoginAttemptRepository) GetFailureTimes(ctx context.Context, email string, since time.Time) ([]time.Time, error) {
	query := `
		SELECT attempt_time FROM login_attempts
		WHERE email = $1 AND success = false AND attempt_time >= $2
		ORDER BY attempt_time DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, email, since)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan attempt time: %w", err)
		}
		times = append(times, t)
	}

	if err := rows.Err(); err != nil {
		return nil, database.MapPostgresError(err)
	}

	return times, nil
}

// GetLastSuccessTime returns the timestamp of the most recent successful
// login for an email, or nil when none exists.
func (r *LoginAttemptRepository) GetLastSuccessTime(ctx context.Context, email string) (*time.Time, error) {
	query := `
		SELECT attempt_time FROM login_attempts
		WHERE email = $1 AND success = true
		ORDER BY attempt_time DESC
		LIMIT 1
	`

	var successTime time.Time
	err := r.db.Pool.QueryRow(ctx, query, email).Scan(&successTime)
	if err != nil {
		if mapped := database.MapPostgresError(err); mapped == models.ErrNotFound {
			return nil, nil
		} else {
			return nil, mapped
		}
	}

	return &successTime, nil
}

// GetSuccessCountries returns the distinct countries seen across an
// email's prior successful logins.
func (r *LoginAttemptRepository) GetSuccessCountries(ctx context.Context, email string) ([]string, error) {
	query := `
		SELECT DISTINCT country FROM login_attempts
		WHERE email = $1 AND success = true AND country <> ''
	`

	rows, err := r.db.Pool.Query(ctx, query, email)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	var countries []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan country: %w", err)
		}
		countries = append(countries, c)
	}

	if err := rows.Err(); err != nil {
		return nil, database.MapPostgresError(err)
	}

	return countries, nil
}

// SetFailureFloor records the instant before which failures stop
// counting toward lockout: a successful login resets the count in full,
// and a newly established lockout consumes the failures that caused it.
func (r *LoginAttemptRepository) SetFailureFloor(ctx context.Context, email string, at time.Time) error {
	query := `
		INSERT INTO failure_resets (email, reset_at)
		VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE SET reset_at = GREATEST(failure_resets.reset_at, EXCLUDED.reset_at)
	`

	_, err := r.db.Pool.Exec(ctx, query, email, at)
	return database.MapPostgresError(err)
}

// GetFailureFloor returns the reset floor for an email, zero when none.
func (r *LoginAttemptRepository) GetFailureFloor(ctx context.Context, email string) (time.Time, error) {
	var at time.Time
	err := r.db.Pool.QueryRow(ctx, `SELECT reset_at FROM failure_resets WHERE email = $1`, email).Scan(&at)
	if err != nil {
		if mapped := database.MapPostgresError(err); mapped == models.ErrNotFound {
			return time.Time{}, nil
		} else {
			return time.Time{}, mapped
		}
	}
	return at, nil
}

// GetStats aggregates the attempt history a lockout decision needs.
func (r *LoginAttemptRepository) GetStats(ctx context.Context, email string, since time.Time) (*models.LoginAttemptStats, error) {
	failures, err := r.GetFailureTimes(ctx, email, since)
	if err != nil {
		return nil, err
	}

	lastSuccess, err := r.GetLastSuccessTime(ctx, email)
	if err != nil {
		return nil, err
	}

	countries, err := r.GetSuccessCountries(ctx, email)
	if err != nil {
		return nil, err
	}

	floor, err := r.GetFailureFloor(ctx, email)
	if err != nil {
		return nil, err
	}

	// A success or an already-consumed lockout resets the failure count:
	// only failures after the floor count toward the next lockout.
	if lastSuccess != nil && lastSuccess.After(floor) {
		floor = *lastSuccess
	}
	if !floor.IsZero() {
		trimmed := failures[:0]
		for _, t := range failures {
			if t.After(floor) {
				trimmed = append(trimmed, t)
			}
		}
		failures = trimmed
	}

	return &models.LoginAttemptStats{
		Email:            email,
		FailedCount:      len(failures),
		FailureTimes:     failures,
		LastSuccessTime:  lastSuccess,
		SuccessCountries: countries,
	}, nil
}

// ListAttempts returns the most recent attempts for an email, oldest
// first, capped at limit. Used by the cache refresher to overwrite the
// local window with an authoritative backend read.
func (r *LoginAttemptRepository) ListAttempts(ctx context.Context, email string, limit int) ([]*models.LoginAttempt, error) {
	query := `
		SELECT id, email, success, attempt_time, device_fingerprint, ip_address, country, failure_reason, suspicious_flags, expires_at
		FROM (
			SELECT * FROM login_attempts
			WHERE email = $1
			ORDER BY attempt_time DESC
			LIMIT $2
		) recent
		ORDER BY attempt_time ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, email, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	var attempts []*models.LoginAttempt
	for rows.Next() {
		var a models.LoginAttempt
		if err := rows.Scan(
			&a.ID,
			&a.Email,
			&a.Success,
			&a.AttemptTime,
			&a.DeviceFingerprint,
			&a.IPAddress,
			&a.Country,
			&a.FailureReason,
			&a.SuspiciousFlags,
			&a.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan login attempt: %w", err)
		}
		attempts = append(attempts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, database.MapPostgresError(err)
	}

	return attempts, nil
}

// DeleteExpiredAttempts removes login attempts past their retention time
func (r *LoginAttemptRepository) DeleteExpiredAttempts(ctx context.Context) (int64, error) {
	query := `DELETE FROM login_attempts WHERE expires_at <= CURRENT_TIMESTAMP`
	tag, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
