package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/mwhitfield/sentinel/internal/models"
)

// AlertStore defines the interface for alert persistence
type AlertStore interface {
	Insert(ctx context.Context, alert *models.SecurityAlert) error
	ListByUser(ctx context.Context, email string) ([]*models.SecurityAlert, error)
	Resolve(ctx context.Context, email, alertID string) error
}

// AlertNotifier delivers an alert out-of-band (email). Best effort only.
type AlertNotifier interface {
	SendAlertEmail(ctx context.Context, email string, alert *models.SecurityAlert) error
}

// Per-flag recommendation strings surfaced to the user
var flagRecommendations = map[string]string{
	models.FlagRapidFailures:   "If these attempts were not you, change your password now.",
	models.FlagUnusualTime:     "Review your recent activity if you were not signed in at this time.",
	models.FlagNewDevice:       "Mark this device as trusted if it is yours, or change your password.",
	models.FlagUnusualLocation: "If you were not signing in from this location, secure your account.",
}

// AlertService converts analyzer output and lockout decisions into
// user-facing alert records.
type AlertService struct {
	store    AlertStore
	notifier AlertNotifier
	logger   *slog.Logger
}

// NewAlertService creates a new AlertService. notifier may be nil to
// disable out-of-band delivery.
func NewAlertService(store AlertStore, notifier AlertNotifier, logger *slog.Logger) *AlertService {
	return &AlertService{
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// Build produces the alerts for one evaluated attempt: exactly one
// account_locked alert when the decision locks, one suspicious_login
// alert when any flags fired, and nothing for a clean attempt.
func (s *AlertService) Build(attempt *models.LoginAttempt, decision models.LockoutDecision, flags models.Flags) []*models.SecurityAlert {
	alerts := make([]*models.SecurityAlert, 0, 2)

	if decision.ShouldLock {
		severity := models.SeverityHigh
		if len(flags) > 0 {
			severity = models.SeverityCritical
		}
		alerts = append(alerts, &models.SecurityAlert{
			ID:        uuid.New().String(),
			UserEmail: attempt.Email,
			Type:      models.AlertAccountLocked,
			Severity:  severity,
			Title:     "Account temporarily locked",
			Message: fmt.Sprintf("Your account was locked after %d failed sign-in attempts.",
				decision.FailedAttempts),
			Recommendation: "Wait for the lockout to expire, then sign in. If this was not you, change your password.",
			CreatedAt:      attempt.AttemptTime,
		})
	}

	if len(flags) > 0 {
		alerts = append(alerts, &models.SecurityAlert{
			ID:             uuid.New().String(),
			UserEmail:      attempt.Email,
			Type:           models.AlertSuspiciousLogin,
			Severity:       models.SeverityMedium,
			Title:          "Unusual sign-in activity",
			Message:        fmt.Sprintf("A sign-in attempt was flagged: %s.", strings.Join(flags.Names(), ", ")),
			Recommendation: recommendationFor(flags),
			CreatedAt:      attempt.AttemptTime,
		})
	}

	return alerts
}

// Publish persists the alerts and notifies the user. Failures are logged
// and swallowed: alert delivery never changes a login decision.
func (s *AlertService) Publish(ctx context.Context, alerts []*models.SecurityAlert) {
	for _, alert := range alerts {
		if err := s.store.Insert(ctx, alert); err != nil {
			s.logger.Error("failed to persist security alert",
				slog.String("type", alert.Type),
				slog.Any("error", err))
		}

		if s.notifier != nil && alert.Type == models.AlertAccountLocked {
			if err := s.notifier.SendAlertEmail(ctx, alert.UserEmail, alert); err != nil {
				s.logger.Error("failed to send alert email", slog.Any("error", err))
			}
		}
	}
}

// List returns a user's alerts, newest first.
func (s *AlertService) List(ctx context.Context, email string) ([]*models.SecurityAlert, error) {
	return s.store.ListByUser(ctx, email)
}

// Resolve marks an alert handled by explicit user action
// (trust, block or dismiss).
func (s *AlertService) Resolve(ctx context.Context, email, alertID string) error {
	return s.store.Resolve(ctx, email, alertID)
}

// recommendationFor picks the recommendation for the highest-priority
// flag present; flag order in the map lookup follows severity of action.
func recommendationFor(flags models.Flags) string {
	for _, name := range []string{
		models.FlagNewDevice,
		models.FlagRapidFailures,
		models.FlagUnusualLocation,
		models.FlagUnusualTime,
	} {
		if flags.Has(name) {
			return flagRecommendations[name]
		}
	}
	return "Review your recent sign-in activity."
}
