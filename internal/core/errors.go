package core

import "errors"

// Operation error kinds. Callers classify failures with errors.Is; the
// concrete cause stays wrapped underneath.
var (
	// ErrValidation marks bad input rejected before any store call.
	ErrValidation = errors.New("validation error")

	// ErrAuth marks a missing authenticated user or an operation on
	// another user's data.
	ErrAuth = errors.New("auth error")

	// ErrNotFound marks a referenced transaction or totals record that
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStore marks an underlying persistence failure.
	ErrStore = errors.New("store error")
)
