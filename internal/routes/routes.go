package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/mwhitfield/sentinel/internal/auth"
	"github.com/mwhitfield/sentinel/internal/handlers"
	"github.com/mwhitfield/sentinel/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	tokenHandler *handlers.TokenHandler,
	attemptHandler *handlers.AttemptHandler,
	deviceHandler *handlers.DeviceHandler,
	alertHandler *handlers.AlertHandler,
	tokenManager *auth.TokenManager,
) {
	rateLimitConfig := middleware.DefaultAttemptRateLimit()

	router.Route("/v1", func(r chi.Router) {
		// Token issuance authenticates with a provisioned API key instead
		// of the bearer token it mints, so it sits outside the JWT group.
		r.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/token", tokenHandler.IssueToken)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(tokenManager))

			// Attempt recording takes the extra per-IP rate limit on top of
			// the per-account lockout policy.
			r.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/attempts", attemptHandler.RecordAttempt)
			r.Get("/lockouts/{email}", attemptHandler.GetLockout)

			r.Get("/devices", deviceHandler.ListDevices)
			r.Post("/devices/{fingerprint}/trust", deviceHandler.TrustDevice)
			r.Delete("/devices/{fingerprint}/trust", deviceHandler.RevokeTrust)
			r.Delete("/devices/{fingerprint}", deviceHandler.ForgetDevice)

			r.Get("/alerts", alertHandler.ListAlerts)
			r.Post("/alerts/{id}/resolve", alertHandler.ResolveAlert)
		})
	})
}
