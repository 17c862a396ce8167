package batch

import (
	"time"

	"github.com/okian/judgeboard/internal/domain/bus"
	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/pkg/logger"
)

// Option configures a Manager.
type Option func(*Manager)

// WithBus publishes batch_changed on b.
func WithBus(b *bus.Bus[model.EventType, model.Event]) Option {
	return func(m *Manager) {
		if b != nil {
			m.bus = b
		}
	}
}

// WithOnChange registers the dirty signal fired after every transition.
func WithOnChange(fn func()) Option {
	return func(m *Manager) {
		if fn != nil {
			m.onChange = fn
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithIDGenerator replaces uuid generation.
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}
