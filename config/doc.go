// Package config loads botguard configuration.
//
// Values come from built-in defaults, an optional YAML file and BOTGUARD_*
// environment variables, in increasing order of precedence. Nested keys map
// to variables by upper-casing and replacing dots with underscores, so
// admission.limit is BOTGUARD_ADMISSION_LIMIT.
//
// Secret-bearing values may hold ${VAR} references, expanded strictly, or
// secretref:<provider>:<ref> references resolved through a secret.Resolver.
package config
