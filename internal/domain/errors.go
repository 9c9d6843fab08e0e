package domain

import "errors"

// Cross-entity validation errors. Entity-specific sentinels live next
// to the entity they guard.
var (
	// ErrValidation wraps any entity validation failure.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidFormat signals data that does not parse as expected.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrInvalidID signals a malformed task, batch or event identifier.
	ErrInvalidID = errors.New("invalid ID")
)
