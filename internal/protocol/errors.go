package protocol

import "errors"

// Sentinel errors returned by Decode and the constructors.
var (
	ErrMalformed    = errors.New("malformed envelope")
	ErrUnknownKind  = errors.New("unknown envelope kind")
	ErrUnknownEvent = errors.New("unknown event type")
	ErrInvalidRole  = errors.New("invalid role")
)
