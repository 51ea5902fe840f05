package store

import "errors"

var (
	ErrNotFound     = errors.New("store: not found")
	ErrEmptyDSN     = errors.New("store: dsn is required")
	ErrInvalidInput = errors.New("store: invalid input")
)
