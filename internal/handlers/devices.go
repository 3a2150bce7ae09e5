package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mwhitfield/sentinel/internal/auth"
	"github.com/mwhitfield/sentinel/internal/models"
	pkghttp "github.com/mwhitfield/sentinel/pkg/http"
	pkglogger "github.com/mwhitfield/sentinel/pkg/logger"
)

// DeviceTrustManager defines the interface for device trust business logic
type DeviceTrustManager interface {
	Trust(ctx context.Context, userID, fingerprint string) error
	Revoke(ctx context.Context, userID, fingerprint string) error
	Forget(ctx context.Context, userID, fingerprint string) error
	ListDevices(ctx context.Context, userID string) ([]*models.DeviceInfo, error)
}

// DeviceHandler handles device trust HTTP requests
type DeviceHandler struct {
	trust DeviceTrustManager
	audit *pkglogger.AuditLogger
}

// NewDeviceHandler creates a new DeviceHandler
func NewDeviceHandler(trust DeviceTrustManager, audit *pkglogger.AuditLogger) *DeviceHandler {
	return &DeviceHandler{
		trust: trust,
		audit: audit,
	}
}

// DeviceResponse represents a device in the HTTP response
type DeviceResponse struct {
	Fingerprint    string `json:"fingerprint"`
	Name           string `json:"name,omitempty"`
	OSName         string `json:"os_name,omitempty"`
	OSVersion      string `json:"os_version,omitempty"`
	AppVersion     string `json:"app_version,omitempty"`
	Trusted        bool   `json:"trusted"`
	TrustExpiresAt string `json:"trust_expires_at,omitempty"`
	FirstSeen      string `json:"first_seen"`
	LastSeen       string `json:"last_seen"`
}

// ListDevicesResponse represents the device list for a user
type ListDevicesResponse struct {
	Devices []*DeviceResponse `json:"devices"`
	Total   int               `json:"total"`
}

// deviceModelToResponse converts a device model to a response DTO
func deviceModelToResponse(device *models.DeviceInfo) *DeviceResponse {
	resp := &DeviceResponse{
		Fingerprint: device.Fingerprint,
		Name:        device.Name,
		OSName:      device.OSName,
		OSVersion:   device.OSVersion,
		AppVersion:  device.AppVersion,
		Trusted:     device.TrustValid(time.Now()),
		FirstSeen:   device.FirstSeen.Format(time.RFC3339),
		LastSeen:    device.LastSeen.Format(time.RFC3339),
	}
	if device.TrustExpiresAt != nil {
		resp.TrustExpiresAt = device.TrustExpiresAt.Format(time.RFC3339)
	}
	return resp
}

// ListDevices returns all devices seen for the authenticated account
//
// @Summary List devices
// @Produce json
// @Success 200 {object} ListDevicesResponse
// @Failure 500 {object} pkghttp.ErrorResponse
// @Router /v1/devices [get]
func (h *DeviceHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	devices, err := h.trust.ListDevices(r.Context(), claims.UserEmail)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to list devices")
		return
	}

	resp := ListDevicesResponse{
		Devices: make([]*DeviceResponse, 0, len(devices)),
		Total:   len(devices),
	}
	for _, d := range devices {
		resp.Devices = append(resp.Devices, deviceModelToResponse(d))
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// TrustDevice grants time-bounded trust to a device
//
// @Summary Trust a device
// @Param fingerprint path string true "Device fingerprint"
// @Produce json
// @Success 204
// @Failure 400 {object} pkghttp.ErrorResponse
// @Router /v1/devices/{fingerprint}/trust [post]
func (h *DeviceHandler) TrustDevice(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	fp := chi.URLParam(r, "fingerprint")
	if fp == "" {
		pkghttp.WriteBadRequest(w, "Device fingerprint is required")
		return
	}

	if err := h.trust.Trust(r.Context(), claims.UserEmail, fp); err != nil {
		pkghttp.WriteInternalError(w, "Failed to trust device")
		return
	}

	h.audit.LogTrustChange("device_trusted", claims.UserEmail, fp, nil)
	w.WriteHeader(http.StatusNoContent)
}

// RevokeTrust removes trust from a device immediately
//
// @Summary Revoke device trust
// @Param fingerprint path string true "Device fingerprint"
// @Produce json
// @Success 204
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /v1/devices/{fingerprint}/trust [delete]
func (h *DeviceHandler) RevokeTrust(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	fp := chi.URLParam(r, "fingerprint")
	if fp == "" {
		pkghttp.WriteBadRequest(w, "Device fingerprint is required")
		return
	}

	if err := h.trust.Revoke(r.Context(), claims.UserEmail, fp); err != nil {
		if errors.Is(err, models.ErrDeviceNotFound) {
			pkghttp.WriteNotFound(w, "Device not found")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to revoke device trust")
		return
	}

	h.audit.LogTrustChange("device_trust_revoked", claims.UserEmail, fp, nil)
	w.WriteHeader(http.StatusNoContent)
}

// ForgetDevice deletes the device record entirely
//
// @Summary Forget a device
// @Param fingerprint path string true "Device fingerprint"
// @Success 204
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /v1/devices/{fingerprint} [delete]
func (h *DeviceHandler) ForgetDevice(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	fp := chi.URLParam(r, "fingerprint")
	if fp == "" {
		pkghttp.WriteBadRequest(w, "Device fingerprint is required")
		return
	}

	if err := h.trust.Forget(r.Context(), claims.UserEmail, fp); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Device not found")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to forget device")
		return
	}

	h.audit.LogTrustChange("device_forgotten", claims.UserEmail, fp, nil)
	w.WriteHeader(http.StatusNoContent)
}
