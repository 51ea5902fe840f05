package config

import "errors"

var (
	// ErrInvalidConfig is wrapped by every validation failure.
	ErrInvalidConfig = errors.New("config: invalid configuration")

	// ErrReadConfig is returned when the config file cannot be read or
	// decoded.
	ErrReadConfig = errors.New("config: read failed")
)
