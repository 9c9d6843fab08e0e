package gemini

import "errors"

// Errors returned by the Gemini drafter.
var (
	// ErrInvalidConfig indicates the drafter configuration is unusable.
	ErrInvalidConfig = errors.New("invalid gemini configuration")

	// ErrInvalidResponse indicates the API returned something that could
	// not be interpreted as a draft.
	ErrInvalidResponse = errors.New("invalid gemini response")

	// ErrContentBlocked indicates the API refused to generate the draft.
	ErrContentBlocked = errors.New("content blocked by safety filters")

	// ErrTokenMissing indicates the generated draft dropped the
	// correlation token, making the request unmatchable.
	ErrTokenMissing = errors.New("draft does not contain the correlation token")
)
