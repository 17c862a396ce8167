package realtime

import (
	"time"

	"github.com/okian/judgeboard/pkg/logger"
)

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithHeartbeatTimeout sets how long a silent connection survives.
func WithHeartbeatTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.heartbeatTimeout = d
		}
	}
}

// WithSweepInterval sets how often silent connections are looked for.
func WithSweepInterval(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.sweepInterval = d
		}
	}
}

// WithPingInterval sets the transport ping period.
func WithPingInterval(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.pingInterval = d
		}
	}
}

// WithQueueSize bounds each connection's outbound queue.
func WithQueueSize(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.queueSize = n
		}
	}
}

// WithJudgeStatus sets where judge presence is reported.
func WithJudgeStatus(js JudgeStatus) Option {
	return func(r *Registry) {
		if js != nil {
			r.judges = js
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator sets the connection id source.
func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// RouterOption applies a configuration option to the Router.
type RouterOption func(*Router)

// WithChurnDebounce sets how long connect and disconnect notes are
// coalesced before one status update goes out.
func WithChurnDebounce(d time.Duration) RouterOption {
	return func(r *Router) {
		if d > 0 {
			r.churnDelay = d
		}
	}
}

// WithStreamQueueSize bounds each SSE stream's queue.
func WithStreamQueueSize(n int) RouterOption {
	return func(r *Router) {
		if n > 0 {
			r.streamQueueSize = n
		}
	}
}

// WithRouterLogger sets the router logger.
func WithRouterLogger(l logger.Logger) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.log = l
		}
	}
}
