package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/mwhitfield/sentinel/internal/models"
)

// AttemptHistoryStore defines the attempt history reads the analyzer needs
type AttemptHistoryStore interface {
	GetStats(ctx context.Context, email string, since time.Time) (*models.LoginAttemptStats, error)
}

// TrustChecker reports whether a device is currently trusted for a user
type TrustChecker interface {
	IsTrusted(ctx context.Context, userID, fingerprint string) bool
}

// CountryResolver maps an IP to a coarse country code, "" when unknown
type CountryResolver interface {
	Country(ip string) string
}

// AnalyzerConfig holds the suspicious-activity thresholds.
type AnalyzerConfig struct {
	RapidFailureCount  int           // Failures that trigger rapid_failures
	RapidFailureWindow time.Duration // Trailing window for rapid_failures
	UnusualHourStart   int           // Local hour at or after which attempts are unusual
	UnusualHourEnd     int           // Local hour before which attempts are unusual
}

// AnalyzerService evaluates a sliding window of recent attempts for
// suspicious patterns. Checks are independent and additive: any subset
// of flags, including none, may fire for a single attempt.
type AnalyzerService struct {
	history AttemptHistoryStore
	trust   TrustChecker
	geo     CountryResolver
	config  AnalyzerConfig
	logger  *slog.Logger
}

// NewAnalyzerService creates a new AnalyzerService
func NewAnalyzerService(history AttemptHistoryStore, trust TrustChecker, geo CountryResolver, config AnalyzerConfig, logger *slog.Logger) *AnalyzerService {
	return &AnalyzerService{
		history: history,
		trust:   trust,
		geo:     geo,
		config:  config,
		logger:  logger,
	}
}

// Analyze inspects the attempt against the user's history and returns the
// set of suspicious flags. History reads are best effort: a backend
// failure drops the history-dependent checks rather than erroring the
// whole evaluation.
func (s *AnalyzerService) Analyze(ctx context.Context, email string, attempt *models.LoginAttempt) models.Flags {
	flags := models.NewFlags()

	if s.isUnusualTime(attempt.AttemptTime) {
		flags[models.FlagUnusualTime] = struct{}{}
	}

	if attempt.DeviceFingerprint != "" && !s.trust.IsTrusted(ctx, email, attempt.DeviceFingerprint) {
		flags[models.FlagNewDevice] = struct{}{}
	}

	stats, err := s.history.GetStats(ctx, email, attempt.AttemptTime.Add(-s.config.RapidFailureWindow))
	if err != nil {
		s.logger.Error("failed to load attempt history for analysis", slog.Any("error", err))
		return flags
	}

	if s.hasRapidFailures(stats, attempt) {
		flags[models.FlagRapidFailures] = struct{}{}
	}

	if s.isUnusualLocation(stats, attempt) {
		flags[models.FlagUnusualLocation] = struct{}{}
	}

	return flags
}

// hasRapidFailures counts failures in the trailing window, including the
// current attempt when it failed.
func (s *AnalyzerService) hasRapidFailures(stats *models.LoginAttemptStats, attempt *models.LoginAttempt) bool {
	windowStart := attempt.AttemptTime.Add(-s.config.RapidFailureWindow)

	count := 0
	for _, t := range stats.FailureTimes {
		if !t.Before(windowStart) {
			count++
		}
	}
	if !attempt.Success {
		count++
	}

	return count >= s.config.RapidFailureCount
}

// isUnusualTime flags attempts outside normal local hours.
func (s *AnalyzerService) isUnusualTime(t time.Time) bool {
	hour := t.Hour()
	return hour >= s.config.UnusualHourStart || hour < s.config.UnusualHourEnd
}

// isUnusualLocation flags attempts from a country absent from the user's
// prior successful logins. No prior successes means no baseline, which is
// not itself suspicious.
func (s *AnalyzerService) isUnusualLocation(stats *models.LoginAttemptStats, attempt *models.LoginAttempt) bool {
	if len(stats.SuccessCountries) == 0 {
		return false
	}

	country := attempt.Country
	if country == "" {
		country = s.geo.Country(attempt.IPAddress)
	}
	if country == "" {
		return false
	}

	for _, seen := range stats.SuccessCountries {
		if seen == country {
			return false
		}
	}
	return true
}
