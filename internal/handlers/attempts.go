package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mwhitfield/sentinel/internal/auth"
	"github.com/mwhitfield/sentinel/internal/fingerprint"
	"github.com/mwhitfield/sentinel/internal/models"
	"github.com/mwhitfield/sentinel/internal/services"
	pkghttp "github.com/mwhitfield/sentinel/pkg/http"
	pkglogger "github.com/mwhitfield/sentinel/pkg/logger"
)

// AttemptRecorder defines the interface for recording login attempts
type AttemptRecorder interface {
	Record(ctx context.Context, req services.RecordRequest) (*services.RecordResult, error)
}

// LockoutReader reports the current lock state for an account
type LockoutReader interface {
	IsLocked(ctx context.Context, email string) (bool, *models.LockoutInfo)
}

// AttemptHandler handles login attempt recording and lockout queries
type AttemptHandler struct {
	recorder AttemptRecorder
	lockout  LockoutReader
	audit    *pkglogger.AuditLogger
	ipConfig *pkghttp.IPConfig
}

// NewAttemptHandler creates a new AttemptHandler
func NewAttemptHandler(recorder AttemptRecorder, lockout LockoutReader, audit *pkglogger.AuditLogger, ipConfig *pkghttp.IPConfig) *AttemptHandler {
	return &AttemptHandler{
		recorder: recorder,
		lockout:  lockout,
		audit:    audit,
		ipConfig: ipConfig,
	}
}

// Request/Response DTOs

// DeviceAttributesRequest carries the raw device attributes used for
// fingerprinting when no precomputed fingerprint is supplied.
type DeviceAttributesRequest struct {
	Platform   string `json:"platform"`
	OSVersion  string `json:"os_version"`
	Model      string `json:"model"`
	AppVersion string `json:"app_version"`
}

// RecordAttemptRequest represents the request body for recording an attempt
type RecordAttemptRequest struct {
	Email         string                  `json:"email" validate:"required,email"`
	Success       bool                    `json:"success"`
	FailureReason string                  `json:"failure_reason" validate:"omitempty,max=255"`
	IPAddress     string                  `json:"ip_address" validate:"omitempty,ip"`
	Device        DeviceAttributesRequest `json:"device"`
	Fingerprint   string                  `json:"fingerprint" validate:"omitempty,max=64"`
	Timestamp     *time.Time              `json:"timestamp"`
}

// RecordAttempt records one login attempt and returns the decision
//
// @Summary Record a login attempt
// @Accept json
// @Produce json
// @Success 200 {object} services.RecordResult
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 403 {object} pkghttp.ErrorResponse
// @Router /v1/attempts [post]
func (h *AttemptHandler) RecordAttempt(w http.ResponseWriter, r *http.Request) {
	var req RecordAttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(&req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := checkAccountAccess(r, req.Email); err != nil {
		pkghttp.WriteForbidden(w, "You cannot record attempts for this account")
		return
	}

	// The caller is the app backend relaying the end user's attempt; the
	// true client IP travels in the body. Fall back to the connection.
	ip := req.IPAddress
	if ip == "" {
		ip = pkghttp.ExtractClientIP(r, h.ipConfig)
	}

	svcReq := services.RecordRequest{
		Email:         req.Email,
		Success:       req.Success,
		FailureReason: req.FailureReason,
		IPAddress:     ip,
		Device: fingerprint.DeviceAttributes{
			Platform:   req.Device.Platform,
			OSVersion:  req.Device.OSVersion,
			Model:      req.Device.Model,
			AppVersion: req.Device.AppVersion,
		},
		Fingerprint: req.Fingerprint,
	}
	if req.Timestamp != nil {
		svcReq.Timestamp = *req.Timestamp
	}

	result, err := h.recorder.Record(r.Context(), svcReq)
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			pkghttp.WriteBadRequest(w, "Invalid attempt data")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to record attempt")
		return
	}

	h.audit.LogAttempt(pkglogger.AuditEvent{
		EventType:     "login_attempt",
		UserEmail:     req.Email,
		IPAddress:     ip,
		Fingerprint:   svcReq.Fingerprint,
		Success:       req.Success,
		FailureReason: req.FailureReason,
		Flags:         result.Flags,
	})

	pkghttp.WriteJSON(w, http.StatusOK, result)
}

// GetLockout returns the current lockout state for an account
//
// @Summary Get lockout state
// @Param email path string true "Account email"
// @Produce json
// @Success 200 {object} models.LockoutInfo
// @Failure 403 {object} pkghttp.ErrorResponse
// @Router /v1/lockouts/{email} [get]
func (h *AttemptHandler) GetLockout(w http.ResponseWriter, r *http.Request) {
	email := strings.ToLower(chi.URLParam(r, "email"))
	if email == "" {
		pkghttp.WriteBadRequest(w, "Email is required")
		return
	}

	if err := checkAccountAccess(r, email); err != nil {
		pkghttp.WriteForbidden(w, "You cannot access this account")
		return
	}

	_, info := h.lockout.IsLocked(r.Context(), email)
	if info == nil {
		info = &models.LockoutInfo{Locked: false}
	}

	pkghttp.WriteJSON(w, http.StatusOK, info)
}

// checkAccountAccess enforces resource-level authorization: the token's
// bound account must match the account being operated on.
func checkAccountAccess(r *http.Request, email string) error {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		return models.ErrUnauthorized
	}
	if !strings.EqualFold(claims.UserEmail, email) {
		return models.ErrForbidden
	}
	return nil
}
