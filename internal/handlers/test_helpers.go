package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/mwhitfield/sentinel/internal/auth"
	"github.com/mwhitfield/sentinel/internal/models"
	"github.com/mwhitfield/sentinel/internal/services"
	pkghttp "github.com/mwhitfield/sentinel/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds service claims to request context for testing authenticated endpoints
func WithAuthContext(req *http.Request, userEmail string) *http.Request {
	claims := &auth.ServiceClaims{
		UserEmail: userEmail,
		AppID:     "test-app",
	}
	ctx := context.WithValue(req.Context(), auth.ClaimsContextKey, claims)
	return req.WithContext(ctx)
}

// WithChiRouteContext adds chi URL parameters to request context for testing
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAttemptRecorder implements AttemptRecorder for testing
type MockAttemptRecorder struct {
	RecordFunc func(ctx context.Context, req services.RecordRequest) (*services.RecordResult, error)
}

func (m *MockAttemptRecorder) Record(ctx context.Context, req services.RecordRequest) (*services.RecordResult, error) {
	if m.RecordFunc == nil {
		return &services.RecordResult{Allowed: true, Alerts: []*models.SecurityAlert{}}, nil
	}
	return m.RecordFunc(ctx, req)
}

// MockLockoutReader implements LockoutReader for testing
type MockLockoutReader struct {
	IsLockedFunc func(ctx context.Context, email string) (bool, *models.LockoutInfo)
}

func (m *MockLockoutReader) IsLocked(ctx context.Context, email string) (bool, *models.LockoutInfo) {
	if m.IsLockedFunc == nil {
		return false, nil
	}
	return m.IsLockedFunc(ctx, email)
}

// MockDeviceTrustManager implements DeviceTrustManager for testing
type MockDeviceTrustManager struct {
	TrustFunc       func(ctx context.Context, userID, fingerprint string) error
	RevokeFunc      func(ctx context.Context, userID, fingerprint string) error
	ForgetFunc      func(ctx context.Context, userID, fingerprint string) error
	ListDevicesFunc func(ctx context.Context, userID string) ([]*models.DeviceInfo, error)
}

func (m *MockDeviceTrustManager) Trust(ctx context.Context, userID, fingerprint string) error {
	if m.TrustFunc == nil {
		return nil
	}
	return m.TrustFunc(ctx, userID, fingerprint)
}

func (m *MockDeviceTrustManager) Revoke(ctx context.Context, userID, fingerprint string) error {
	if m.RevokeFunc == nil {
		return nil
	}
	return m.RevokeFunc(ctx, userID, fingerprint)
}

func (m *MockDeviceTrustManager) Forget(ctx context.Context, userID, fingerprint string) error {
	if m.ForgetFunc == nil {
		return nil
	}
	return m.ForgetFunc(ctx, userID, fingerprint)
}

func (m *MockDeviceTrustManager) ListDevices(ctx context.Context, userID string) ([]*models.DeviceInfo, error) {
	if m.ListDevicesFunc == nil {
		return []*models.DeviceInfo{}, nil
	}
	return m.ListDevicesFunc(ctx, userID)
}

// MockAlertReader implements AlertReader for testing
type MockAlertReader struct {
	ListFunc    func(ctx context.Context, email string) ([]*models.SecurityAlert, error)
	ResolveFunc func(ctx context.Context, email, alertID string) error
}

func (m *MockAlertReader) List(ctx context.Context, email string) ([]*models.SecurityAlert, error) {
	if m.ListFunc == nil {
		return []*models.SecurityAlert{}, nil
	}
	return m.ListFunc(ctx, email)
}

func (m *MockAlertReader) Resolve(ctx context.Context, email, alertID string) error {
	if m.ResolveFunc == nil {
		return nil
	}
	return m.ResolveFunc(ctx, email, alertID)
}
