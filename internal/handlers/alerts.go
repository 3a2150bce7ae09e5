package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mwhitfield/sentinel/internal/auth"
	"github.com/mwhitfield/sentinel/internal/models"
	pkghttp "github.com/mwhitfield/sentinel/pkg/http"
)

// AlertReader defines the interface for alert queries and resolution
type AlertReader interface {
	List(ctx context.Context, email string) ([]*models.SecurityAlert, error)
	Resolve(ctx context.Context, email, alertID string) error
}

// AlertHandler handles security alert HTTP requests
type AlertHandler struct {
	alerts AlertReader
}

// NewAlertHandler creates a new AlertHandler
func NewAlertHandler(alerts AlertReader) *AlertHandler {
	return &AlertHandler{
		alerts: alerts,
	}
}

// ListAlertsResponse represents a user's alert history
type ListAlertsResponse struct {
	Alerts []*models.SecurityAlert `json:"alerts"`
	Total  int                     `json:"total"`
}

// ListAlerts returns the authenticated account's alerts, newest first
//
// @Summary List security alerts
// @Produce json
// @Success 200 {object} ListAlertsResponse
// @Failure 500 {object} pkghttp.ErrorResponse
// @Router /v1/alerts [get]
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	alerts, err := h.alerts.List(r.Context(), claims.UserEmail)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to list alerts")
		return
	}

	if alerts == nil {
		alerts = []*models.SecurityAlert{}
	}

	pkghttp.WriteJSON(w, http.StatusOK, ListAlertsResponse{
		Alerts: alerts,
		Total:  len(alerts),
	})
}

// ResolveAlert marks an alert handled by explicit user action
//
// @Summary Resolve an alert
// @Param id path string true "Alert ID"
// @Success 204
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /v1/alerts/{id}/resolve [post]
func (h *AlertHandler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	alertID := chi.URLParam(r, "id")
	if alertID == "" {
		pkghttp.WriteBadRequest(w, "Alert ID is required")
		return
	}

	if err := h.alerts.Resolve(r.Context(), claims.UserEmail, alertID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Alert not found")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to resolve alert")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
