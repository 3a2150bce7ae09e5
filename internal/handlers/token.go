package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	pkgauth "github.com/mwhitfield/sentinel/pkg/auth"
	pkghttp "github.com/mwhitfield/sentinel/pkg/http"
)

// TokenIssuer mints service tokens for authenticated client apps
type TokenIssuer interface {
	GenerateServiceToken(userEmail, appID string) (string, error)
}

// TokenHandler exchanges a provisioned app API key for the bearer token
// the rest of the API requires. Keys are provisioned out of band (see
// cmd/keygen); only their bcrypt hashes live in configuration.
type TokenHandler struct {
	keys   map[string]string // app id -> bcrypt hash of its provisioned key
	issuer TokenIssuer
	expiry time.Duration
}

// NewTokenHandler creates a new TokenHandler. An empty key map disables
// issuance: every exchange is rejected.
func NewTokenHandler(keys map[string]string, issuer TokenIssuer, expiry time.Duration) *TokenHandler {
	return &TokenHandler{
		keys:   keys,
		issuer: issuer,
		expiry: expiry,
	}
}

// IssueTokenRequest represents the request body for the token exchange
type IssueTokenRequest struct {
	APIKey    string `json:"api_key" validate:"required"`
	UserEmail string `json:"user_email" validate:"required,email"`
	AppID     string `json:"app_id" validate:"required,max=64"`
}

// IssueTokenResponse carries the minted token. The token binds the
// session to the user account it was requested for.
type IssueTokenResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
}

// IssueToken exchanges an app API key for a service token
//
// @Summary Issue a service token
// @Accept json
// @Produce json
// @Success 200 {object} IssueTokenResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /v1/auth/token [post]
func (h *TokenHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req IssueTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(&req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	// One rejection message for unknown app and wrong key
	hash, ok := h.keys[req.AppID]
	if !ok {
		pkghttp.WriteUnauthorized(w, "Invalid app credentials")
		return
	}
	if err := pkgauth.CompareAPIKey(hash, req.APIKey); err != nil {
		pkghttp.WriteUnauthorized(w, "Invalid app credentials")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.UserEmail))
	token, err := h.issuer.GenerateServiceToken(email, req.AppID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to issue token")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, IssueTokenResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(h.expiry.Seconds()),
	})
}
