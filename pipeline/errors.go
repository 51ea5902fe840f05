package pipeline

import "errors"

var (
	// ErrUnknownTenant is returned when the bot token does not belong to any
	// company.
	ErrUnknownTenant = errors.New("pipeline: unknown tenant")

	// ErrInvalidMessage is returned for a message without a user, a bot
	// token or any content.
	ErrInvalidMessage = errors.New("pipeline: invalid message")

	// ErrMissingDependency is returned by New when a required collaborator
	// is nil.
	ErrMissingDependency = errors.New("pipeline: missing dependency")
)
