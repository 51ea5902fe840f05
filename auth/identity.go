package auth

import "time"

// AuthMethod indicates how an operator was authenticated.
type AuthMethod string

const (
	AuthMethodNone   AuthMethod = "none"
	AuthMethodJWT    AuthMethod = "jwt"
	AuthMethodAPIKey AuthMethod = "api_key"
)

// Operator roles.
const (
	RoleViewer = "viewer"
	RoleAdmin  = "admin"
)

// Identity is an authenticated operator.
type Identity struct {
	// Principal identifies the operator (JWT sub or API key owner).
	Principal string

	// Roles granted to the operator.
	Roles []string

	// Method is how the operator was authenticated.
	Method AuthMethod

	// Claims holds raw token claims, or key metadata for API keys.
	Claims map[string]any

	// ExpiresAt is when the credential expires (zero = never).
	ExpiresAt time.Time
}

// HasRole reports whether the identity holds role. Admins hold every role.
func (id *Identity) HasRole(role string) bool {
	for _, r := range id.Roles {
		if r == role || r == RoleAdmin {
			return true
		}
	}
	return false
}

// IsExpired reports whether the credential has expired at now.
func (id *Identity) IsExpired(now time.Time) bool {
	if id.ExpiresAt.IsZero() {
		return false
	}
	return now.After(id.ExpiresAt)
}
