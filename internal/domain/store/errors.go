package store

import "errors"

// Sentinel errors. Mutations that fail with any of these leave the store
// untouched and publish nothing.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNoTimer      = errors.New("no timer on the current interview item")
)
