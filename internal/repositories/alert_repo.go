package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mwhitfield/sentinel/internal/database"
	"github.com/mwhitfield/sentinel/internal/models"
)

// AlertRepository persists security alerts, capped to a recent window
// per user.
type AlertRepository struct {
	db        *database.DB
	retention int
}

// NewAlertRepository creates a new AlertRepository. retention bounds the
// number of alerts kept per user.
func NewAlertRepository(db *database.DB, retention int) *AlertRepository {
	return &AlertRepository{db: db, retention: retention}
}

// Insert writes an alert and evicts the oldest beyond the retention cap,
// in one transaction so the cap holds even when eviction fails.
func (r *AlertRepository) Insert(ctx context.Context, alert *models.SecurityAlert) error {
	query := `
		INSERT INTO security_alerts (id, user_email, alert_type, severity, title, message, recommendation, created_at, resolved)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	evict := `
		DELETE FROM security_alerts
		WHERE user_email = $1 AND id NOT IN (
			SELECT id FROM security_alerts
			WHERE user_email = $1
			ORDER BY created_at DESC
			LIMIT $2
		)
	`

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, query,
			alert.ID, alert.UserEmail, alert.Type, alert.Severity,
			alert.Title, alert.Message, alert.Recommendation,
			alert.CreatedAt, alert.Resolved,
		)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, evict, alert.UserEmail, r.retention)
		return err
	})
	return database.MapPostgresError(err)
}

// ListByUser returns a user's alerts, newest first.
func (r *AlertRepository) ListByUser(ctx context.Context, email string) ([]*models.SecurityAlert, error) {
	query := `
		SELECT id, user_email, alert_type, severity, title, message, recommendation, created_at, resolved
		FROM security_alerts
		WHERE user_email = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, email)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	alerts := make([]*models.SecurityAlert, 0)
	for rows.Next() {
		var a models.SecurityAlert
		err := rows.Scan(
			&a.ID, &a.UserEmail, &a.Type, &a.Severity, &a.Title,
			&a.Message, &a.Recommendation, &a.CreatedAt, &a.Resolved,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, database.MapPostgresError(err)
	}

	return alerts, nil
}

// Resolve marks an alert handled by explicit user action.
func (r *AlertRepository) Resolve(ctx context.Context, email, alertID string) error {
	query := `
		UPDATE security_alerts SET resolved = true
		WHERE user_email = $1 AND id = $2
	`

	tag, err := r.db.Pool.Exec(ctx, query, email, alertID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
