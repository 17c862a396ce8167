// Package client is the reconnecting socket agent used by judge panels and
// displays.
//
// An Agent dials the server, runs the client_auth handshake, dispatches
// every inbound envelope to its subscribers and sends heartbeats. When the
// connection drops it redials with exponential backoff and gives up after a
// bounded number of consecutive failures. A reconnect is a fresh session:
// the handshake runs again and the server assigns a new client id.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/net/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/okian/judgeboard/internal/domain/bus"
	"github.com/okian/judgeboard/internal/protocol"
	"github.com/okian/judgeboard/pkg/logger"
)

// Status is the agent's connection state.
type Status string

const (
	StatusConnecting         Status = "connecting"
	StatusConnected          Status = "connected"
	StatusReconnecting       Status = "reconnecting"
	StatusDisconnected       Status = "disconnected"
	StatusMaxAttemptsReached Status = "max_attempts_reached"
)

const (
	defaultMaxAttempts      = 10
	defaultInitialInterval  = time.Second
	defaultMaxInterval      = 30 * time.Second
	defaultMultiplier       = 1.5
	defaultJitter           = 0.2
	defaultHeartbeat        = 30 * time.Second
	defaultHandshakeTimeout = 10 * time.Second

	// The server answers every heartbeat, so this many missed replies means
	// the link is dead.
	missedHeartbeats = 3
)

// Agent keeps one logical connection to the server alive.
type Agent struct {
	url    string
	origin string

	role    protocol.Role
	judgeID string

	maxAttempts      uint
	initialInterval  time.Duration
	maxInterval      time.Duration
	multiplier       float64
	jitter           float64
	heartbeat        time.Duration
	handshakeTimeout time.Duration

	events *bus.Bus[protocol.EventType, protocol.Envelope]
	log    logger.Logger

	mu        sync.RWMutex
	status    Status
	observers []func(Status)
	ws        *websocket.Conn
	clientID  string
	counts    protocol.ConnectionStatus

	writeMu sync.Mutex
}

// New creates an agent for the websocket endpoint at url, e.g.
// ws://host:8080/ws.
func New(url string, opts ...Option) *Agent {
	a := &Agent{
		url:              url,
		origin:           "http://localhost/",
		role:             protocol.RoleDisplay,
		maxAttempts:      defaultMaxAttempts,
		initialInterval:  defaultInitialInterval,
		maxInterval:      defaultMaxInterval,
		multiplier:       defaultMultiplier,
		jitter:           defaultJitter,
		heartbeat:        defaultHeartbeat,
		handshakeTimeout: defaultHandshakeTimeout,
		events:           bus.New[protocol.EventType, protocol.Envelope](),
		log:              logger.NewNop(),
		status:           StatusDisconnected,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run connects and keeps reconnecting until ctx is done, which returns nil,
// or the attempts are exhausted, which returns ErrMaxAttempts. A rejected
// handshake is not retried.
func (a *Agent) Run(ctx context.Context) error {
	a.setStatus(StatusConnecting)
	for {
		ws, err := backoff.Retry(ctx,
			func() (*websocket.Conn, error) { return a.connect(ctx) },
			backoff.WithBackOff(a.newBackOff()),
			backoff.WithMaxTries(a.maxAttempts),
			backoff.WithMaxElapsedTime(0),
			backoff.WithNotify(func(err error, next time.Duration) {
				a.setStatus(StatusReconnecting)
				a.log.Warn(ctx, "connect failed, retrying",
					logger.Error(err),
					logger.Duration("backoff", next),
				)
			}),
		)
		if err != nil {
			if ctx.Err() != nil {
				a.setStatus(StatusDisconnected)
				return nil
			}
			if errors.Is(err, ErrAuthRejected) {
				a.setStatus(StatusDisconnected)
				return err
			}
			a.setStatus(StatusMaxAttemptsReached)
			a.log.Error(ctx, "giving up", logger.Int("attempts", int(a.maxAttempts)), logger.Error(err))
			return fmt.Errorf("%w: %w", ErrMaxAttempts, err)
		}

		a.setStatus(StatusConnected)
		err = a.session(ctx, ws)
		a.mu.Lock()
		a.ws = nil
		a.mu.Unlock()
		_ = ws.Close()

		if ctx.Err() != nil {
			a.setStatus(StatusDisconnected)
			return nil
		}
		a.log.Warn(ctx, "connection lost", logger.Error(err))
		a.setStatus(StatusReconnecting)
	}
}

func (a *Agent) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.initialInterval
	b.MaxInterval = a.maxInterval
	b.Multiplier = a.multiplier
	b.RandomizationFactor = a.jitter
	return b
}

// connect dials and runs the auth handshake.
func (a *Agent) connect(ctx context.Context) (*websocket.Conn, error) {
	cfg, err := websocket.NewConfig(a.url, a.origin)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	dctx, cancel := context.WithTimeout(ctx, a.handshakeTimeout)
	defer cancel()
	ws, err := cfg.DialContext(dctx)
	if err != nil {
		return nil, err
	}
	if err := a.handshake(ws); err != nil {
		_ = ws.Close()
		return nil, err
	}

	a.mu.Lock()
	a.ws = ws
	a.mu.Unlock()
	return ws, nil
}

func (a *Agent) handshake(ws *websocket.Conn) error {
	deadline := time.Now().Add(a.handshakeTimeout)
	if err := ws.SetDeadline(deadline); err != nil {
		return err
	}
	defer func() { _ = ws.SetDeadline(time.Time{}) }()

	auth, err := protocol.NewEvent(protocol.EventClientAuth, protocol.ClientAuth{
		Type:    string(a.role),
		JudgeID: a.judgeID,
	})
	if err != nil {
		return backoff.Permanent(err)
	}
	if err := a.write(ws, auth); err != nil {
		return err
	}

	for {
		env, err := read(ws)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrHandshake, err)
		}
		switch {
		case env.Kind == protocol.KindError:
			var p protocol.ErrorPayload
			_ = env.DecodeData(&p)
			return backoff.Permanent(fmt.Errorf("%w: %s: %s", ErrAuthRejected, p.Code, p.Message))
		case env.EventType == protocol.EventConnectionEstablished:
			var est protocol.ConnectionEstablished
			if err := env.DecodeData(&est); err == nil {
				a.setClientID(est.ClientID)
			}
		case env.EventType == protocol.EventAuthSuccess:
			var ok protocol.AuthSuccess
			if err := env.DecodeData(&ok); err == nil && ok.ClientID != "" {
				a.setClientID(ok.ClientID)
			}
			a.dispatch(env)
			return nil
		default:
			a.dispatch(env)
		}
	}
}

// session reads and heartbeats until the connection fails or ctx is done.
func (a *Agent) session(ctx context.Context, ws *websocket.Conn) error {
	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, func() { _ = ws.Close() })
	defer stop()

	g.Go(func() error {
		for {
			if err := ws.SetReadDeadline(time.Now().Add(missedHeartbeats * a.heartbeat)); err != nil {
				return err
			}
			env, err := read(ws)
			if err != nil {
				return err
			}
			a.dispatch(env)
		}
	})
	g.Go(func() error {
		ticker := time.NewTicker(a.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := a.write(ws, protocol.NewHeartbeat()); err != nil {
					return fmt.Errorf("heartbeat: %w", err)
				}
			}
		}
	})
	return g.Wait()
}

func (a *Agent) dispatch(env protocol.Envelope) {
	if env.EventType == protocol.EventConnectionStatus {
		var st protocol.ConnectionStatus
		if err := env.DecodeData(&st); err == nil {
			a.mu.Lock()
			a.counts = st
			a.mu.Unlock()
		}
	}
	if env.Kind == protocol.KindHeartbeat {
		return
	}
	a.events.Publish(env.EventType, env)
}

// SubmitScore sends a submit_score event and returns its envelope id, which
// the server echoes as replyTo in score_accepted or an error. It is never
// retried automatically.
func (a *Agent) SubmitScore(candidateID string, values map[string]float64) (string, error) {
	env, err := protocol.NewEvent(protocol.EventSubmitScore, protocol.SubmitScore{
		CandidateID:     candidateID,
		JudgeID:         a.judgeID,
		DimensionScores: values,
	})
	if err != nil {
		return "", err
	}
	a.mu.RLock()
	ws := a.ws
	a.mu.RUnlock()
	if ws == nil {
		return "", ErrNotConnected
	}
	if err := a.write(ws, env); err != nil {
		return "", err
	}
	return env.ID, nil
}

func (a *Agent) write(ws *websocket.Conn, env protocol.Envelope) error {
	data, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return websocket.Message.Send(ws, string(data))
}

func read(ws *websocket.Conn) (protocol.Envelope, error) {
	var msg string
	if err := websocket.Message.Receive(ws, &msg); err != nil {
		return protocol.Envelope{}, err
	}
	return protocol.Decode([]byte(msg))
}

// Subscribe registers fn for one event type. Handlers run on the read
// goroutine and must not block.
func (a *Agent) Subscribe(t protocol.EventType, fn func(protocol.Envelope)) bus.Token {
	return a.events.Subscribe(t, fn)
}

// SubscribeAll registers fn for every inbound envelope except heartbeats.
func (a *Agent) SubscribeAll(fn func(protocol.Envelope)) bus.Token {
	return a.events.SubscribeAll(fn)
}

// Unsubscribe removes a subscription.
func (a *Agent) Unsubscribe(tok bus.Token) bool {
	return a.events.Unsubscribe(tok)
}

// OnStatus registers an observer for status changes. Observers run
// synchronously on the agent's goroutine.
func (a *Agent) OnStatus(fn func(Status)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, fn)
}

// Status returns the current status.
func (a *Agent) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// ClientID returns the id the server assigned to the current connection.
func (a *Agent) ClientID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.clientID
}

// Connections returns the last connection summary received.
func (a *Agent) Connections() protocol.ConnectionStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.counts
}

func (a *Agent) setClientID(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clientID = id
}

func (a *Agent) setStatus(s Status) {
	a.mu.Lock()
	if a.status == s {
		a.mu.Unlock()
		return
	}
	a.status = s
	observers := append(([]func(Status))(nil), a.observers...)
	a.mu.Unlock()

	a.log.Info(context.Background(), "status changed", logger.String("status", string(s)))
	for _, fn := range observers {
		fn(s)
	}
}
