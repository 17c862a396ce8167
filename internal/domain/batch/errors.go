package batch

import "errors"

var (
	ErrNotFound          = errors.New("batch not found")
	ErrConflict          = errors.New("another batch is active")
	ErrInvalidTransition = errors.New("invalid batch transition")
	ErrInvalidInput      = errors.New("invalid batch input")
)
