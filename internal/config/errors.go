package config

import (
	"errors"
)

// Sentinel errors; Load and Validate wrap them.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)
