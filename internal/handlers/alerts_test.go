package handlers_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mwhitfield/sentinel/internal/handlers"
	"github.com/mwhitfield/sentinel/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestListAlerts_Success(t *testing.T) {
	createdAt := time.Date(2025, 5, 12, 14, 0, 0, 0, time.UTC)
	alerts := &handlers.MockAlertReader{
		ListFunc: func(ctx context.Context, email string) ([]*models.SecurityAlert, error) {
			assert.Equal(t, "user@example.com", email)
			return []*models.SecurityAlert{
				{
					ID:        "alert-2",
					UserEmail: email,
					Type:      models.AlertAccountLocked,
					Severity:  models.SeverityHigh,
					Title:     "Account temporarily locked",
					CreatedAt: createdAt.Add(time.Hour),
				},
				{
					ID:        "alert-1",
					UserEmail: email,
					Type:      models.AlertSuspiciousLogin,
					Severity:  models.SeverityMedium,
					Title:     "Unusual sign-in activity",
					CreatedAt: createdAt,
				},
			}, nil
		},
	}
	handler := handlers.NewAlertHandler(alerts)

	req := handlers.NewTestRequest(t, "GET", "/v1/alerts", nil)
	req = handlers.WithAuthContext(req, "user@example.com")
	w := httptest.NewRecorder()

	handler.ListAlerts(w, req)

	var resp handlers.ListAlertsResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, "alert-2", resp.Alerts[0].ID)
	assert.Equal(t, models.AlertAccountLocked, resp.Alerts[0].Type)
}

func TestListAlerts_EmptyIsNotNull(t *testing.T) {
	alerts := &handlers.MockAlertReader{
		ListFunc: func(ctx context.Context, email string) ([]*models.SecurityAlert, error) {
			return nil, nil
		},
	}
	handler := handlers.NewAlertHandler(alerts)

	req := handlers.NewTestRequest(t, "GET", "/v1/alerts", nil)
	req = handlers.WithAuthContext(req, "user@example.com")
	w := httptest.NewRecorder()

	handler.ListAlerts(w, req)

	handlers.AssertJSONResponse(t, w, 200, nil)
	assert.Contains(t, w.Body.String(), `"alerts":[]`)
}

func TestListAlerts_BackendError(t *testing.T) {
	alerts := &handlers.MockAlertReader{
		ListFunc: func(ctx context.Context, email string) ([]*models.SecurityAlert, error) {
			return nil, models.ErrBackend
		},
	}
	handler := handlers.NewAlertHandler(alerts)

	req := handlers.NewTestRequest(t, "GET", "/v1/alerts", nil)
	req = handlers.WithAuthContext(req, "user@example.com")
	w := httptest.NewRecorder()

	handler.ListAlerts(w, req)

	handlers.AssertErrorResponse(t, w, 500, "internal_error")
}

func TestListAlerts_NoClaims(t *testing.T) {
	handler := handlers.NewAlertHandler(&handlers.MockAlertReader{})

	req := handlers.NewTestRequest(t, "GET", "/v1/alerts", nil)
	w := httptest.NewRecorder()

	handler.ListAlerts(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestResolveAlert_Success(t *testing.T) {
	var gotEmail, gotID string
	alerts := &handlers.MockAlertReader{
		ResolveFunc: func(ctx context.Context, email, alertID string) error {
			gotEmail, gotID = email, alertID
			return nil
		},
	}
	handler := handlers.NewAlertHandler(alerts)

	req := handlers.NewTestRequest(t, "POST", "/v1/alerts/alert-1/resolve", nil)
	req = handlers.WithAuthContext(req, "user@example.com")
	req = handlers.WithChiRouteContext(req, map[string]string{"id": "alert-1"})
	w := httptest.NewRecorder()

	handler.ResolveAlert(w, req)

	assert.Equal(t, 204, w.Code)
	assert.Equal(t, "user@example.com", gotEmail)
	assert.Equal(t, "alert-1", gotID)
}

func TestResolveAlert_UnknownAlert(t *testing.T) {
	alerts := &handlers.MockAlertReader{
		ResolveFunc: func(ctx context.Context, email, alertID string) error {
			return models.ErrNotFound
		},
	}
	handler := handlers.NewAlertHandler(alerts)

	req := handlers.NewTestRequest(t, "POST", "/v1/alerts/missing/resolve", nil)
	req = handlers.WithAuthContext(req, "user@example.com")
	req = handlers.WithChiRouteContext(req, map[string]string{"id": "missing"})
	w := httptest.NewRecorder()

	handler.ResolveAlert(w, req)

	handlers.AssertErrorResponse(t, w, 404, "not_found")
}

func TestResolveAlert_MissingID(t *testing.T) {
	handler := handlers.NewAlertHandler(&handlers.MockAlertReader{})

	req := handlers.NewTestRequest(t, "POST", "/v1/alerts//resolve", nil)
	req = handlers.WithAuthContext(req, "user@example.com")
	req = handlers.WithChiRouteContext(req, map[string]string{})
	w := httptest.NewRecorder()

	handler.ResolveAlert(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}
