package realtime

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/judgeboard/internal/adapters/mq/queue"
	"github.com/okian/judgeboard/internal/adapters/mq/worker"
	"github.com/okian/judgeboard/internal/protocol"
	"github.com/okian/judgeboard/pkg/logger"
	"github.com/okian/judgeboard/pkg/metrics"
)

// Close reasons recorded in metrics and logs.
const (
	ReasonClientGone       = "client_gone"
	ReasonHeartbeatTimeout = "heartbeat_timeout"
	ReasonWriteError       = "write_error"
	ReasonShutdown         = "shutdown"
)

const (
	defaultHeartbeatTimeout = 90 * time.Second
	defaultSweepInterval    = 30 * time.Second
	defaultPingInterval     = 25 * time.Second
	defaultQueueSize        = 256
)

// JudgeStatus receives judge presence changes.
type JudgeStatus interface {
	SetJudgeOnline(id string, online bool) error
}

// Delta is connection churn since the last status update. A zero Delta
// still asks for a fresh status, e.g. after a role change.
type Delta struct {
	Connected    int
	Disconnected int
}

// Registry owns the live connections. Its lock is never held while calling
// JudgeStatus.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*Conn
	closed bool

	heartbeatTimeout time.Duration
	sweepInterval    time.Duration
	pingInterval     time.Duration
	queueSize        int

	judges JudgeStatus
	notify func(Delta)
	pool   *worker.Pool

	now   func() time.Time
	newID func() string
	log   logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		conns:            make(map[string]*Conn),
		heartbeatTimeout: defaultHeartbeatTimeout,
		sweepInterval:    defaultSweepInterval,
		pingInterval:     defaultPingInterval,
		queueSize:        defaultQueueSize,
		notify:           func(Delta) {},
		pool:             worker.NewPool(),
		now:              time.Now,
		newID:            uuid.NewString,
		log:              logger.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Accept registers a new connection as an admin, starts its writer and
// queues connection_established.
func (r *Registry) Accept(ctx context.Context, t Transport, remoteAddr string) (*Conn, error) {
	now := r.now()
	cctx, cancel := context.WithCancel(ctx)
	c := &Conn{
		ID:          r.newID(),
		ConnectedAt: now,
		RemoteAddr:  remoteAddr,
		role:        protocol.RoleAdmin,
		queue:       queue.NewInMemoryQueue(queue.WithCapacity(r.queueSize)),
		transport:   t,
		cancel:      cancel,
	}
	c.touch(now)
	c.writer = worker.NewWriter(c.queue, t,
		worker.WithName(c.ID),
		worker.WithLogger(r.log),
		worker.WithPingInterval(r.pingInterval),
		worker.WithErrorHandler(func(error) { r.Terminate(c.ID, ReasonWriteError) }),
	)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		cancel()
		return nil, ErrClosed
	}
	r.conns[c.ID] = c
	r.mu.Unlock()

	r.pool.Go(cctx, c.ID, c.writer)
	env, err := protocol.NewResponse(protocol.EventConnectionEstablished, protocol.ConnectionEstablished{ClientID: c.ID})
	if err == nil {
		env.ClientID = c.ID
		err = c.send(ctx, env)
	}
	if err != nil {
		r.log.Warn(ctx, "connection_established not queued", logger.String("client_id", c.ID), logger.Error(err))
	}

	metrics.RecordConnectionAccepted()
	r.updateGauges()
	r.log.Info(ctx, "connection accepted",
		logger.String("client_id", c.ID),
		logger.String("remote_addr", remoteAddr),
	)
	r.notify(Delta{Connected: 1})
	return c, nil
}

// Authenticate binds a role, and for judges a judge id, to a connection.
// Marking the judge online is best effort and never fails the handshake.
func (r *Registry) Authenticate(ctx context.Context, id string, role protocol.Role, judgeID string) (*Conn, error) {
	if role != protocol.RoleJudge {
		judgeID = ""
	}
	r.mu.RLock()
	c, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownConnection, id)
	}

	prevJudge := c.JudgeID()
	c.setRole(role, judgeID)
	c.touch(r.now())

	if prevJudge != "" && prevJudge != judgeID {
		r.judgeMaybeOffline(ctx, prevJudge)
	}
	if judgeID != "" {
		r.setJudgeOnline(ctx, judgeID, true)
	}
	r.updateGauges()
	r.notify(Delta{})
	return c, nil
}

// Touch refreshes a connection's liveness.
func (r *Registry) Touch(id string) bool {
	r.mu.RLock()
	c, ok := r.conns[id]
	r.mu.RUnlock()
	if ok {
		c.touch(r.now())
	}
	return ok
}

// Get returns a live connection.
func (r *Registry) Get(id string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Terminate removes a connection, stops its writer and ping ticker, reports
// the churn, flips its judge offline when no other connection holds it and
// closes the socket. It returns false if the connection was already gone.
func (r *Registry) Terminate(id, reason string) bool {
	r.mu.Lock()
	c, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}

	c.cancel()
	_ = c.queue.Close()
	metrics.RecordConnectionClosed(reason)
	r.updateGauges()
	ctx := context.Background()
	r.log.Info(ctx, "connection closed",
		logger.String("client_id", id),
		logger.String("reason", reason),
		logger.Duration("age", r.now().Sub(c.ConnectedAt)),
	)
	r.notify(Delta{Disconnected: 1})
	if j := c.JudgeID(); j != "" {
		r.judgeMaybeOffline(ctx, j)
	}
	if err := c.transport.Close(); err != nil {
		r.log.Debug(ctx, "transport close", logger.String("client_id", id), logger.Error(err))
	}
	return true
}

// Sweep terminates connections silent for longer than the heartbeat
// timeout and returns their ids.
func (r *Registry) Sweep(now time.Time) []string {
	r.mu.RLock()
	var stale []string
	for id, c := range r.conns {
		if now.Sub(c.LastHeartbeat()) > r.heartbeatTimeout {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	sort.Strings(stale)
	for _, id := range stale {
		r.Terminate(id, ReasonHeartbeatTimeout)
	}
	return stale
}

// Run sweeps on the configured interval until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if gone := r.Sweep(r.now()); len(gone) > 0 {
				r.log.Info(ctx, "swept silent connections", logger.Int("count", len(gone)))
			}
		}
	}
}

// Close flushes every connection's queue, then terminates it with a normal
// closure. New connections are refused afterwards.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	conns := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.Unlock()

	for _, c := range conns {
		_ = c.writer.Shutdown(ctx)
		r.Terminate(c.ID, ReasonShutdown)
	}
	return r.pool.Wait(ctx)
}

// Resync reports every connected judge as online again. Used after the
// live state was replaced wholesale.
func (r *Registry) Resync(ctx context.Context) {
	for _, j := range r.OnlineJudges() {
		r.setJudgeOnline(ctx, j, true)
	}
}

// Counts returns live connections per role; every role is present.
func (r *Registry) Counts() map[protocol.Role]int {
	out := make(map[protocol.Role]int, len(protocol.Roles))
	for _, role := range protocol.Roles {
		out[role] = 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.conns {
		out[c.Role()]++
	}
	return out
}

// OnlineJudges returns the sorted ids of judges with a live connection.
func (r *Registry) OnlineJudges() []string {
	r.mu.RLock()
	seen := make(map[string]struct{})
	for _, c := range r.conns {
		if j := c.JudgeID(); j != "" {
			seen[j] = struct{}{}
		}
	}
	r.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for j := range seen {
		out = append(out, j)
	}
	sort.Strings(out)
	return out
}

// targets snapshots the connections a broadcast goes to.
func (r *Registry) targets(role protocol.Role, excludeID string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Conn, 0, len(r.conns))
	for id, c := range r.conns {
		if id == excludeID {
			continue
		}
		if role != "" && c.Role() != role {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (r *Registry) judgeConnected(judgeID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.conns {
		if c.JudgeID() == judgeID {
			return true
		}
	}
	return false
}

func (r *Registry) judgeMaybeOffline(ctx context.Context, judgeID string) {
	if !r.judgeConnected(judgeID) {
		r.setJudgeOnline(ctx, judgeID, false)
	}
}

func (r *Registry) setJudgeOnline(ctx context.Context, judgeID string, online bool) {
	if r.judges == nil {
		return
	}
	if err := r.judges.SetJudgeOnline(judgeID, online); err != nil {
		r.log.Warn(ctx, "judge presence not recorded",
			logger.String("judge_id", judgeID),
			logger.Bool("online", online),
			logger.Error(err),
		)
	}
}

func (r *Registry) updateGauges() {
	for role, n := range r.Counts() {
		metrics.UpdateConnectionsActive(string(role), n)
	}
}
