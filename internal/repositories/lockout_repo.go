package repositories

import (
	"context"

	"github.com/mwhitfield/sentinel/internal/database"
	"github.com/mwhitfield/sentinel/internal/models"
)

// LockoutRepository persists active account locks keyed by email.
type LockoutRepository struct {
	db *database.DB
}

// NewLockoutRepository creates a new LockoutRepository
func NewLockoutRepository(db *database.DB) *LockoutRepository {
	return &LockoutRepository{db: db}
}

// Get returns the lock record for an email, expired or not. Callers are
// responsible for lazy expiry via Delete.
func (r *LockoutRepository) Get(ctx context.Context, email string) (*models.LockoutRecord, error) {
	query := `
		SELECT email, locked_at, unlock_at, reason, failed_attempts
		FROM lockouts WHERE email = $1
	`

	var rec models.LockoutRecord
	err := r.db.Pool.QueryRow(ctx, query, email).Scan(
		&rec.Email, &rec.LockedAt, &rec.UnlockAt, &rec.Reason, &rec.FailedAttempts,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &rec, nil
}

// Upsert writes or refreshes a lock record.
func (r *LockoutRepository) Upsert(ctx context.Context, rec *models.LockoutRecord) error {
	query := `
		INSERT INTO lockouts (email, locked_at, unlock_at, reason, failed_attempts)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE SET
			locked_at = EXCLUDED.locked_at,
			unlock_at = EXCLUDED.unlock_at,
			reason = EXCLUDED.reason,
			failed_attempts = EXCLUDED.failed_attempts
	`

	_, err := r.db.Pool.Exec(ctx, query,
		rec.Email, rec.LockedAt, rec.UnlockAt, rec.Reason, rec.FailedAttempts,
	)
	return database.MapPostgresError(err)
}

// Delete clears a lock (lazy expiry or explicit reset on success).
func (r *LockoutRepository) Delete(ctx context.Context, email string) error {
	query := `DELETE FROM lockouts WHERE email = $1`
	_, err := r.db.Pool.Exec(ctx, query, email)
	return database.MapPostgresError(err)
}

// DeleteExpired removes all lapsed locks.
func (r *LockoutRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM lockouts WHERE unlock_at <= CURRENT_TIMESTAMP`
	tag, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
