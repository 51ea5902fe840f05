package secret

import "errors"

var (
	ErrMissingEnv          = errors.New("secret: missing required environment variables")
	ErrProviderNotFound    = errors.New("secret: provider not registered")
	ErrProviderRegistered  = errors.New("secret: provider already registered")
	ErrInvalidRegistration = errors.New("secret: invalid provider registration")
	ErrEmptyValue          = errors.New("secret: provider returned empty value")
	ErrNotFound            = errors.New("secret: not found")
)
