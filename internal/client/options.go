package client

import (
	"time"

	"github.com/okian/judgeboard/internal/protocol"
	"github.com/okian/judgeboard/pkg/logger"
)

// Option applies a configuration option to the Agent.
type Option func(*Agent)

// WithRole sets the role sent in client_auth. Judges also need WithJudgeID.
func WithRole(role protocol.Role) Option {
	return func(a *Agent) {
		if role != "" {
			a.role = role
		}
	}
}

// WithJudgeID sets the judge the connection acts for.
func WithJudgeID(id string) Option {
	return func(a *Agent) {
		a.judgeID = id
	}
}

// WithOrigin sets the Origin header sent on dial.
func WithOrigin(origin string) Option {
	return func(a *Agent) {
		if origin != "" {
			a.origin = origin
		}
	}
}

// WithMaxAttempts bounds consecutive failed connection attempts.
func WithMaxAttempts(n uint) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxAttempts = n
		}
	}
}

// WithBackoff sets the reconnect delay curve.
func WithBackoff(initial, max time.Duration, multiplier float64) Option {
	return func(a *Agent) {
		if initial > 0 {
			a.initialInterval = initial
		}
		if max > 0 {
			a.maxInterval = max
		}
		if multiplier >= 1 {
			a.multiplier = multiplier
		}
	}
}

// WithJitter sets the randomization factor applied to each delay; zero
// makes delays deterministic.
func WithJitter(f float64) Option {
	return func(a *Agent) {
		if f >= 0 && f < 1 {
			a.jitter = f
		}
	}
}

// WithHeartbeatInterval sets how often the agent sends a heartbeat.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(a *Agent) {
		if d > 0 {
			a.heartbeat = d
		}
	}
}

// WithHandshakeTimeout bounds dial plus auth.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(a *Agent) {
		if d > 0 {
			a.handshakeTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.log = l
		}
	}
}
