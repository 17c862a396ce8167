package realtime

import "errors"

// Sentinel kinds for realtime errors.
var (
	ErrUnknownConnection = errors.New("unknown connection")
	ErrClosed            = errors.New("registry closed")
)
