package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func protectedHandler(role string, authn Authenticator) http.Handler {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(PrincipalFromContext(r.Context())))
	})
	return Middleware(authn, nil)(RequireRole(role)(inner))
}

func TestMiddleware(t *testing.T) {
	keys := NewMemoryAPIKeyStore(
		&APIKeyInfo{ID: "v", KeyHash: HashAPIKey("viewer-key"), Principal: "viewer", Roles: []string{RoleViewer}},
		&APIKeyInfo{ID: "n", KeyHash: HashAPIKey("norole-key"), Principal: "norole"},
	)
	jwtAuth, err := NewJWTAuthenticator(JWTConfig{Secret: testSecret})
	if err != nil {
		t.Fatal(err)
	}
	token, err := jwtAuth.Issue("dave", []string{RoleAdmin}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	h := protectedHandler(RoleViewer, NewCompositeAuthenticator(NewAPIKeyAuthenticator("", keys), jwtAuth))

	tests := []struct {
		name       string
		header     string
		value      string
		wantStatus int
		wantBody   string
	}{
		{name: "no credentials", wantStatus: http.StatusUnauthorized},
		{name: "bad key", header: "X-API-Key", value: "nope", wantStatus: http.StatusUnauthorized},
		{name: "viewer key", header: "X-API-Key", value: "viewer-key", wantStatus: http.StatusOK, wantBody: "viewer"},
		{name: "key without role", header: "X-API-Key", value: "norole-key", wantStatus: http.StatusForbidden},
		{name: "admin jwt", header: "Authorization", value: "Bearer " + token, wantStatus: http.StatusOK, wantBody: "dave"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
			if tt.wantStatus == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate header")
			}
		})
	}
}

func TestMiddleware_InternalError(t *testing.T) {
	failing := NewAuthenticatorFunc("broken",
		func(context.Context, *AuthRequest) bool { return true },
		func(context.Context, *AuthRequest) (*AuthResult, error) { return nil, errors.New("db down") },
	)
	rec := httptest.NewRecorder()
	protectedHandler(RoleViewer, failing).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestRequireRole_WithoutIdentity(t *testing.T) {
	h := RequireRole(RoleViewer)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler reached")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
