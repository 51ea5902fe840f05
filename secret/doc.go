// Package secret resolves secret-bearing configuration values.
//
// A value is first expanded with ExpandEnvStrict, so "${BOT_TOKEN}" fails
// loudly when BOT_TOKEN is unset. References with the "secretref:" prefix are
// then resolved through a Provider:
//
//	secretref:env:OPENAI_API_KEY
//	secretref:file:/run/secrets/jwt_secret
//	Bearer secretref:env:OPS_TOKEN
//
// Providers are built from a Registry; NewDefaultRegistry knows the env and
// file providers.
package secret
