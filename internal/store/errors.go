package store

import "errors"

// Common errors for context store operations.
var (
	ErrInvalidConfig   = errors.New("invalid store configuration")
	ErrInvalidDriver   = errors.New("invalid store driver")
	ErrVersionConflict = errors.New("session version conflict")
	ErrNotFound        = errors.New("session not found")
)
