// Package auth authenticates operator requests to the botguard HTTP API.
//
// Operators present either an API key (X-API-Key, stored as a SHA-256 hash)
// or an HS256 bearer JWT. Bot end users are never authenticated here; their
// messages are admitted by the resilience package instead.
package auth
