package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jonwraymond/botguard/observe"
)

// Middleware authenticates every request with authn and stores the identity
// in the request context. Rejected requests get 401; internal errors get 500.
func Middleware(authn Authenticator, logger observe.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = observe.NopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			req := &AuthRequest{Headers: r.Header}

			if !authn.Supports(ctx, req) {
				unauthorized(w, ErrMissingCredentials)
				return
			}

			result, err := authn.Authenticate(ctx, req)
			if err != nil {
				logger.Error(ctx, "authentication error", observe.Err(err), observe.F("path", r.URL.Path))
				writeError(w, http.StatusInternalServerError, errors.New("auth: internal error"))
				return
			}
			if !result.Authenticated {
				logger.Warn(ctx, "authentication rejected",
					observe.F("method", result.Method),
					observe.F("path", r.URL.Path),
					observe.Err(result.Error),
				)
				unauthorized(w, result.Error)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, result.Identity)))
		})
	}
}

// RequireRole rejects requests whose identity lacks role with 403. It must
// run after Middleware.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := IdentityFromContext(r.Context())
			if id == nil {
				unauthorized(w, ErrMissingCredentials)
				return
			}
			if !id.HasRole(role) {
				writeError(w, http.StatusForbidden, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, err error) {
	if err == nil {
		err = ErrInvalidCredentials
	}
	w.Header().Set("WWW-Authenticate", `Bearer realm="botguard"`)
	writeError(w, http.StatusUnauthorized, err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
