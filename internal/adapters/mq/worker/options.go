// Package worker drains an outbound queue onto a connection.
package worker

import (
	"time"

	"github.com/okian/judgeboard/pkg/logger"
)

// Option applies a configuration option to the Writer.
type Option func(*Writer)

// WithName sets the writer name for identification and logging.
func WithName(name string) Option {
	return func(w *Writer) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the writer.
func WithLogger(l logger.Logger) Option {
	return func(w *Writer) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithPingInterval enables transport pings at the given interval.
func WithPingInterval(d time.Duration) Option {
	return func(w *Writer) {
		if d > 0 {
			w.pingInterval = d
		}
	}
}

// WithErrorHandler is called once when a write or ping fails. The writer
// stops right after.
func WithErrorHandler(fn func(error)) Option {
	return func(w *Writer) {
		if fn != nil {
			w.onError = fn
		}
	}
}
