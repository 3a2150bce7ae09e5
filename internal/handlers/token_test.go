package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mwhitfield/sentinel/internal/auth"
	"github.com/mwhitfield/sentinel/internal/handlers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testAPIKey = "snk_unit-test-key-material"

// provisionedKeys hashes the test key at minimum cost; production
// provisioning via cmd/keygen uses the full cost.
func provisionedKeys(t *testing.T, appID string) map[string]string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testAPIKey), bcrypt.MinCost)
	require.NoError(t, err)
	return map[string]string{appID: string(hash)}
}

func newTokenFixture(t *testing.T) (*handlers.TokenHandler, *auth.TokenManager) {
	t.Helper()
	tm := auth.NewTokenManager("unit-test-signing-secret", time.Hour)
	return handlers.NewTokenHandler(provisionedKeys(t, "mobile-app"), tm, time.Hour), tm
}

func TestIssueToken_Success(t *testing.T) {
	handler, tm := newTokenFixture(t)

	req := handlers.NewTestRequest(t, "POST", "/v1/auth/token", handlers.IssueTokenRequest{
		APIKey:    testAPIKey,
		UserEmail: "User@Example.COM",
		AppID:     "mobile-app",
	})
	w := httptest.NewRecorder()
	handler.IssueToken(w, req)

	var resp handlers.IssueTokenResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	// The minted token passes the same validation the middleware runs,
	// bound to the normalized account.
	claims, err := tm.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", claims.UserEmail)
	assert.Equal(t, "mobile-app", claims.AppID)
}

func TestIssueToken_WrongKey(t *testing.T) {
	handler, _ := newTokenFixture(t)

	req := handlers.NewTestRequest(t, "POST", "/v1/auth/token", handlers.IssueTokenRequest{
		APIKey:    "snk_not-the-provisioned-key",
		UserEmail: "user@example.com",
		AppID:     "mobile-app",
	})
	w := httptest.NewRecorder()
	handler.IssueToken(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
}

func TestIssueToken_UnknownApp(t *testing.T) {
	handler, _ := newTokenFixture(t)

	req := handlers.NewTestRequest(t, "POST", "/v1/auth/token", handlers.IssueTokenRequest{
		APIKey:    testAPIKey,
		UserEmail: "user@example.com",
		AppID:     "unprovisioned-app",
	})
	w := httptest.NewRecorder()
	handler.IssueToken(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
}

func TestIssueToken_NoKeysProvisioned(t *testing.T) {
	tm := auth.NewTokenManager("unit-test-signing-secret", time.Hour)
	handler := handlers.NewTokenHandler(nil, tm, time.Hour)

	req := handlers.NewTestRequest(t, "POST", "/v1/auth/token", handlers.IssueTokenRequest{
		APIKey:    testAPIKey,
		UserEmail: "user@example.com",
		AppID:     "mobile-app",
	})
	w := httptest.NewRecorder()
	handler.IssueToken(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
}

func TestIssueToken_ValidationFailures(t *testing.T) {
	handler, _ := newTokenFixture(t)

	tests := []struct {
		name string
		body handlers.IssueTokenRequest
	}{
		{"missing api key", handlers.IssueTokenRequest{UserEmail: "user@example.com", AppID: "mobile-app"}},
		{"missing email", handlers.IssueTokenRequest{APIKey: testAPIKey, AppID: "mobile-app"}},
		{"malformed email", handlers.IssueTokenRequest{APIKey: testAPIKey, UserEmail: "not-an-email", AppID: "mobile-app"}},
		{"missing app id", handlers.IssueTokenRequest{APIKey: testAPIKey, UserEmail: "user@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := handlers.NewTestRequest(t, "POST", "/v1/auth/token", tt.body)
			w := httptest.NewRecorder()
			handler.IssueToken(w, req)

			handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
		})
	}
}

func TestIssueToken_InvalidBody(t *testing.T) {
	handler, _ := newTokenFixture(t)

	req := handlers.NewTestRequest(t, "POST", "/v1/auth/token", "not json at all")
	w := httptest.NewRecorder()
	handler.IssueToken(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}
