package scoring

import "errors"

var (
	// ErrUnknownDimension is returned for values keyed by a dimension that
	// does not exist or is inactive.
	ErrUnknownDimension = errors.New("unknown dimension")
	// ErrOutOfRange is returned for values outside [0, maxScore].
	ErrOutOfRange = errors.New("dimension value out of range")
	// ErrEmptySubmission is returned when no dimension values are given.
	ErrEmptySubmission = errors.New("empty submission")
)
