package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret-0123456789")

func bearer(token string) *AuthRequest {
	return &AuthRequest{Headers: http.Header{"Authorization": {"Bearer " + token}}}
}

func newTestJWT(t *testing.T, cfg JWTConfig, now time.Time) *JWTAuthenticator {
	t.Helper()
	if cfg.Secret == nil {
		cfg.Secret = testSecret
	}
	a, err := NewJWTAuthenticator(cfg)
	if err != nil {
		t.Fatalf("NewJWTAuthenticator() error = %v", err)
	}
	a.now = func() time.Time { return now }
	return a
}

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return s
}

func TestNewJWTAuthenticator_EmptySecret(t *testing.T) {
	if _, err := NewJWTAuthenticator(JWTConfig{}); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("err = %v, want %v", err, ErrEmptySecret)
	}
}

func TestJWTAuthenticator_Supports(t *testing.T) {
	a := newTestJWT(t, JWTConfig{}, time.Now())

	tests := []struct {
		name    string
		headers http.Header
		want    bool
	}{
		{name: "none", headers: http.Header{}, want: false},
		{name: "bearer", headers: http.Header{"Authorization": {"Bearer abc"}}, want: true},
		{name: "basic", headers: http.Header{"Authorization": {"Basic abc"}}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.Supports(context.Background(), &AuthRequest{Headers: tt.headers}); got != tt.want {
				t.Errorf("Supports() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJWTAuthenticator_IssueRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	a := newTestJWT(t, JWTConfig{Issuer: "botguard", Audience: "ops"}, now)

	token, err := a.Issue("alice", []string{RoleViewer}, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	result, err := a.Authenticate(context.Background(), bearer(token))
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if !result.Authenticated {
		t.Fatalf("Authenticated = false, err %v", result.Error)
	}
	id := result.Identity
	if id.Principal != "alice" {
		t.Errorf("Principal = %q, want alice", id.Principal)
	}
	if !id.HasRole(RoleViewer) {
		t.Errorf("Roles = %v, want viewer", id.Roles)
	}
	if !id.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v, want %v", id.ExpiresAt, now.Add(time.Hour))
	}
	if id.Method != AuthMethodJWT {
		t.Errorf("Method = %q", id.Method)
	}
}

func TestJWTAuthenticator_Rejections(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	a := newTestJWT(t, JWTConfig{Issuer: "botguard"}, now)

	valid := jwt.MapClaims{"sub": "bob", "iss": "botguard", "exp": now.Add(time.Hour).Unix()}
	with := func(k string, v any) jwt.MapClaims {
		c := jwt.MapClaims{}
		for key, val := range valid {
			c[key] = val
		}
		if v == nil {
			delete(c, k)
		} else {
			c[k] = v
		}
		return c
	}

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{
			name:    "expired",
			token:   sign(t, jwt.SigningMethodHS256, testSecret, with("exp", now.Add(-time.Minute).Unix())),
			wantErr: ErrTokenExpired,
		},
		{
			name:    "wrong secret",
			token:   sign(t, jwt.SigningMethodHS256, []byte("other"), valid),
			wantErr: ErrInvalidCredentials,
		},
		{
			name:    "wrong issuer",
			token:   sign(t, jwt.SigningMethodHS256, testSecret, with("iss", "someone-else")),
			wantErr: ErrInvalidCredentials,
		},
		{
			name:    "missing exp",
			token:   sign(t, jwt.SigningMethodHS256, testSecret, with("exp", nil)),
			wantErr: ErrInvalidCredentials,
		},
		{
			name:    "HS512 not allowed",
			token:   sign(t, jwt.SigningMethodHS512, testSecret, valid),
			wantErr: ErrInvalidCredentials,
		},
		{
			name:    "garbage",
			token:   "not.a.jwt",
			wantErr: ErrTokenMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := a.Authenticate(context.Background(), bearer(tt.token))
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if result.Authenticated {
				t.Fatal("Authenticated = true, want false")
			}
			if !errors.Is(result.Error, tt.wantErr) {
				t.Errorf("Error = %v, want %v", result.Error, tt.wantErr)
			}
		})
	}
}

func TestJWTAuthenticator_EmptyBearer(t *testing.T) {
	a := newTestJWT(t, JWTConfig{}, time.Now())
	result, err := a.Authenticate(context.Background(), bearer(""))
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if !errors.Is(result.Error, ErrMissingCredentials) {
		t.Errorf("Error = %v, want %v", result.Error, ErrMissingCredentials)
	}
}
