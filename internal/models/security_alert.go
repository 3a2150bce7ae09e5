package models

import "time"

// Alert types produced by the alert factory
const (
	AlertAccountLocked   = "account_locked"
	AlertSuspiciousLogin = "suspicious_login"
)

// Alert severities
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// SecurityAlert is a user-facing alert record built from analyzer output
// or a lockout decision. Alerts are retained capped to a recent window
// per user and resolved via explicit user action.
type SecurityAlert struct {
	ID             string    `db:"id" json:"id"`
	UserEmail      string    `db:"user_email" json:"-"`
	Type           string    `db:"alert_type" json:"type"`
	Severity       string    `db:"severity" json:"severity"`
	Title          string    `db:"title" json:"title"`
	Message        string    `db:"message" json:"message"`
	Recommendation string    `db:"recommendation" json:"recommendation"`
	CreatedAt      time.Time `db:"created_at" json:"timestamp"`
	Resolved       bool      `db:"resolved" json:"resolved"`
}
