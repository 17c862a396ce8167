package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/okian/judgeboard/internal/domain/bus"
	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/pkg/logger"
)

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the wall clock used for timestamps and timers.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBus publishes committed events on b instead of a private bus.
func WithBus(b *bus.Bus[model.EventType, model.Event]) Option {
	return func(s *Store) {
		if b != nil {
			s.bus = b
		}
	}
}

// WithOnChange registers the dirty signal fired after every persisted
// mutation. fn runs with the store lock held and must not call back in.
func WithOnChange(fn func()) Option {
	return func(s *Store) {
		if fn != nil {
			s.onChange = fn
		}
	}
}

// WithIDGenerator replaces uuid generation, mostly for tests.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

func defaultID() string { return uuid.NewString() }
