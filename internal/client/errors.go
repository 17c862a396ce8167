package client

import "errors"

var (
	ErrMaxAttempts  = errors.New("max reconnection attempts reached")
	ErrNotConnected = errors.New("not connected")
	ErrAuthRejected = errors.New("authentication rejected")
	ErrHandshake    = errors.New("handshake failed")
)
