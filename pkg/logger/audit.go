package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	UserEmail     string
	IPAddress     string
	Fingerprint   string
	Success       bool
	FailureReason string
	Flags         []string
	Metadata      map[string]string
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogAttempt logs the outcome of a recorded login attempt.
func (al *AuditLogger) LogAttempt(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "attempt"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.UserEmail != "" {
		attrs = append(attrs, slog.String("user_email", SanitizedEmail(event.UserEmail)))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.Fingerprint != "" {
		attrs = append(attrs, slog.String("fingerprint", SanitizedFingerprint(event.Fingerprint)))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	if len(event.Flags) > 0 {
		attrs = append(attrs, slog.Any("flags", event.Flags))
	}

	if event.Success {
		al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
	} else {
		al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
	}
}

// LogLockout logs lockout establishment and release events.
func (al *AuditLogger) LogLockout(eventType, userEmail string, failedAttempts int, unlockAt time.Time) {
	attrs := []slog.Attr{
		slog.String("audit_type", "lockout"),
		slog.String("event_type", eventType),
		slog.String("user_email", SanitizedEmail(userEmail)),
		slog.Int("failed_attempts", failedAttempts),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if !unlockAt.IsZero() {
		attrs = append(attrs, slog.String("unlock_at", unlockAt.UTC().Format(time.RFC3339)))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
}

// LogTrustChange logs device trust grants and revocations.
func (al *AuditLogger) LogTrustChange(eventType, userEmail, fingerprint string, metadata map[string]string) {
	attrs := []slog.Attr{
		slog.String("audit_type", "device_trust"),
		slog.String("event_type", eventType),
		slog.String("user_email", SanitizedEmail(userEmail)),
		slog.String("fingerprint", SanitizedFingerprint(fingerprint)),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	for key, val := range metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
}
