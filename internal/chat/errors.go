package chat

import "errors"

var (
	// ErrNotFound covers an unknown user, an unknown explicit personality
	// and an empty personality cache.
	ErrNotFound = errors.New("resource not found")
	// ErrValidation is returned before any state is touched.
	ErrValidation = errors.New("validation failed")
)
