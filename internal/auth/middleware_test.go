package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func protectedHandler(t *testing.T, gotClaims **ServiceClaims) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*gotClaims = GetClaimsFromContext(r)
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_ValidToken(t *testing.T) {
	tm := NewTokenManager("test-secret-key", time.Hour)
	token, err := tm.GenerateServiceToken("user@example.com", "app-42")
	if err != nil {
		t.Fatalf("GenerateServiceToken failed: %v", err)
	}

	var claims *ServiceClaims
	handler := Middleware(tm)(protectedHandler(t, &claims))

	req := httptest.NewRequest("GET", "/v1/devices", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if claims == nil {
		t.Fatal("claims missing from request context")
	}
	if claims.UserEmail != "user@example.com" {
		t.Errorf("UserEmail: got %q", claims.UserEmail)
	}
}

func TestMiddleware_MissingHeader(t *testing.T) {
	tm := NewTokenManager("test-secret-key", time.Hour)

	var claims *ServiceClaims
	handler := Middleware(tm)(protectedHandler(t, &claims))

	req := httptest.NewRequest("GET", "/v1/devices", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	if claims != nil {
		t.Error("handler must not run without a token")
	}
}

func TestMiddleware_MalformedHeader(t *testing.T) {
	tm := NewTokenManager("test-secret-key", time.Hour)

	var claims *ServiceClaims
	handler := Middleware(tm)(protectedHandler(t, &claims))

	for _, header := range []string{"Bearer", "Basic abc123", "Bearer  "} {
		req := httptest.NewRequest("GET", "/v1/devices", nil)
		req.Header.Set("Authorization", header)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected 401, got %d", header, w.Code)
		}
	}
}

func TestMiddleware_InvalidToken(t *testing.T) {
	tm := NewTokenManager("test-secret-key", time.Hour)
	other := NewTokenManager("other-secret", time.Hour)
	token, err := other.GenerateServiceToken("user@example.com", "app-42")
	if err != nil {
		t.Fatalf("GenerateServiceToken failed: %v", err)
	}

	var claims *ServiceClaims
	handler := Middleware(tm)(protectedHandler(t, &claims))

	req := httptest.NewRequest("GET", "/v1/devices", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestGetClaimsFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest("GET", "/v1/devices", nil)
	if claims := GetClaimsFromContext(req); claims != nil {
		t.Errorf("expected nil claims, got %+v", claims)
	}
}
