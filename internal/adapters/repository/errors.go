package repository

import "errors"

// Sentinel kinds for persistence errors.
var (
	ErrNoData             = errors.New("no saved data")
	ErrCorrupt            = errors.New("corrupt snapshot")
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
	ErrWrite              = errors.New("snapshot write failed")
)
