package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// DefaultAPIKeyHeader is the header carrying operator API keys.
const DefaultAPIKeyHeader = "X-API-Key"

// APIKeyInfo describes a registered API key.
type APIKeyInfo struct {
	// ID is a stable, non-secret identifier for the key.
	ID string

	// KeyHash is the SHA-256 hex digest of the key.
	KeyHash string

	// Principal is the operator the key belongs to.
	Principal string

	Roles []string

	// ExpiresAt is when the key expires (zero = never).
	ExpiresAt time.Time
}

// APIKeyStore looks up API keys by hash.
type APIKeyStore interface {
	// Lookup returns the key with the given hash, or nil when unknown.
	Lookup(ctx context.Context, keyHash string) (*APIKeyInfo, error)
}

// APIKeyAuthenticator validates API keys against an APIKeyStore.
type APIKeyAuthenticator struct {
	header string
	store  APIKeyStore
	now    func() time.Time
}

// NewAPIKeyAuthenticator creates an API key authenticator reading header.
// An empty header defaults to DefaultAPIKeyHeader.
func NewAPIKeyAuthenticator(header string, store APIKeyStore) *APIKeyAuthenticator {
	if header == "" {
		header = DefaultAPIKeyHeader
	}
	return &APIKeyAuthenticator{header: header, store: store, now: time.Now}
}

// Name returns "api_key".
func (a *APIKeyAuthenticator) Name() string { return string(AuthMethodAPIKey) }

// Supports reports whether the request carries the API key header.
func (a *APIKeyAuthenticator) Supports(_ context.Context, req *AuthRequest) bool {
	return req.GetHeader(a.header) != ""
}

// Authenticate validates the API key.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error) {
	key := strings.TrimSpace(req.GetHeader(a.header))
	if key == "" {
		return AuthFailure(ErrMissingCredentials, a.Name()), nil
	}

	info, err := a.store.Lookup(ctx, HashAPIKey(key))
	if err != nil {
		return nil, err
	}
	if info == nil {
		return AuthFailure(ErrInvalidCredentials, a.Name()), nil
	}

	identity := &Identity{
		Principal: info.Principal,
		Roles:     info.Roles,
		Method:    AuthMethodAPIKey,
		ExpiresAt: info.ExpiresAt,
		Claims:    map[string]any{"key_id": info.ID},
	}
	if identity.IsExpired(a.now()) {
		return AuthFailure(ErrTokenExpired, a.Name()), nil
	}
	return AuthSuccess(identity), nil
}

// HashAPIKey returns the SHA-256 hex digest used to store key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// MemoryAPIKeyStore is an in-memory APIKeyStore.
type MemoryAPIKeyStore struct {
	mu   sync.RWMutex
	keys map[string]*APIKeyInfo
}

// NewMemoryAPIKeyStore creates a store holding infos.
func NewMemoryAPIKeyStore(infos ...*APIKeyInfo) *MemoryAPIKeyStore {
	s := &MemoryAPIKeyStore{keys: make(map[string]*APIKeyInfo, len(infos))}
	for _, info := range infos {
		s.Add(info)
	}
	return s
}

// StaticAPIKeys builds a store from raw keys, each granted roles. Key IDs
// are the first eight hex digits of the hash; blank keys are skipped.
func StaticAPIKeys(keys []string, roles ...string) *MemoryAPIKeyStore {
	s := NewMemoryAPIKeyStore()
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		hash := HashAPIKey(k)
		s.Add(&APIKeyInfo{
			ID:        hash[:8],
			KeyHash:   hash,
			Principal: "apikey:" + hash[:8],
			Roles:     roles,
		})
	}
	return s
}

// Lookup returns the key with the given hash.
func (s *MemoryAPIKeyStore) Lookup(_ context.Context, keyHash string) (*APIKeyInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys[keyHash], nil
}

// Add registers info, replacing any key with the same hash.
func (s *MemoryAPIKeyStore) Add(info *APIKeyInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[info.KeyHash] = info
}

// Remove deletes the key with the given hash.
func (s *MemoryAPIKeyStore) Remove(keyHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, keyHash)
}

// Len returns the number of stored keys.
func (s *MemoryAPIKeyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

var (
	_ Authenticator = (*APIKeyAuthenticator)(nil)
	_ APIKeyStore   = (*MemoryAPIKeyStore)(nil)
)
