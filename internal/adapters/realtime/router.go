package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/judgeboard/internal/adapters/mq/queue"
	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/protocol"
	"github.com/okian/judgeboard/pkg/logger"
	"github.com/okian/judgeboard/pkg/metrics"
)

const (
	defaultChurnDelay      = 2 * time.Second
	defaultStreamQueueSize = 64
)

// Router fans envelopes out to connections and SSE streams. Delivery is a
// non-blocking enqueue; a full queue drops the envelope for that receiver
// only.
type Router struct {
	reg   *Registry
	churn *Churn

	mu      sync.RWMutex
	streams map[string]*Stream

	churnDelay      time.Duration
	streamQueueSize int
	log             logger.Logger
}

// NewRouter creates a router over reg and wires reg's churn notes into the
// coalesced connection_status_update broadcast. Create it before serving.
func NewRouter(reg *Registry, opts ...RouterOption) *Router {
	r := &Router{
		reg:             reg,
		streams:         make(map[string]*Stream),
		churnDelay:      defaultChurnDelay,
		streamQueueSize: defaultStreamQueueSize,
		log:             logger.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.churn = NewChurn(r.churnDelay, r.publishStatus)
	reg.notify = r.churn.Note
	return r
}

// Broadcast delivers env to every connection except excludeID and to every
// stream. It returns the number of receivers that accepted it.
func (r *Router) Broadcast(env protocol.Envelope, excludeID string) int {
	return r.deliver(env, "", excludeID)
}

// BroadcastToRole delivers env to connections of one role, and to streams
// opened for that role.
func (r *Router) BroadcastToRole(env protocol.Envelope, role protocol.Role, excludeID string) int {
	return r.deliver(env, role, excludeID)
}

// SendToClient delivers env to a single connection.
func (r *Router) SendToClient(id string, env protocol.Envelope) error {
	c, ok := r.reg.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConnection, id)
	}
	if err := c.send(context.Background(), env); err != nil {
		metrics.RecordDroppedDelivery()
		return err
	}
	return nil
}

// Forward turns a domain event into an event envelope and broadcasts it.
// It runs on the publisher's goroutine, under the store lock, and must not
// call back into the store.
func (r *Router) Forward(ev model.Event) {
	env, err := protocol.NewEvent(protocol.EventType(ev.Type), ev.Data)
	if err != nil {
		r.log.Error(context.Background(), "domain event not forwarded",
			logger.String("event_type", string(ev.Type)),
			logger.Error(err),
		)
		return
	}
	if !ev.At.IsZero() {
		env.Timestamp = ev.At.UnixMilli()
	}
	r.Broadcast(env, "")
}

// FlushChurn sends any pending connection status now.
func (r *Router) FlushChurn() {
	r.churn.Flush()
}

// Close stops the churn timer and ends every stream.
func (r *Router) Close() {
	r.churn.Stop()
	r.mu.Lock()
	streams := r.streams
	r.streams = make(map[string]*Stream)
	r.mu.Unlock()
	for _, s := range streams {
		_ = s.queue.Close()
	}
	metrics.UpdateStreamSubscribers(0)
}

// Status builds the current connection summary.
func (r *Router) Status(d Delta) protocol.ConnectionStatus {
	counts := r.reg.Counts()
	total := 0
	for _, n := range counts {
		total += n
	}
	return protocol.ConnectionStatus{
		Counts:       counts,
		Total:        total,
		OnlineJudges: r.reg.OnlineJudges(),
		Connected:    d.Connected,
		Disconnected: d.Disconnected,
	}
}

func (r *Router) publishStatus(d Delta) {
	env, err := protocol.NewEvent(protocol.EventConnectionStatus, r.Status(d))
	if err != nil {
		r.log.Error(context.Background(), "connection status not built", logger.Error(err))
		return
	}
	r.Broadcast(env, "")
}

func (r *Router) deliver(env protocol.Envelope, role protocol.Role, excludeID string) int {
	data, err := protocol.Encode(env)
	if err != nil {
		r.log.Error(context.Background(), "envelope not encoded", logger.Error(err))
		return 0
	}
	f := queue.Frame{Data: data, EventType: frameType(env), Enqueued: time.Now()}
	metrics.RecordBroadcast(f.EventType)

	ctx := context.Background()
	delivered := 0
	for _, c := range r.reg.targets(role, excludeID) {
		if err := c.enqueue(ctx, f); err != nil {
			metrics.RecordDroppedDelivery()
			r.log.Debug(ctx, "delivery dropped", logger.String("client_id", c.ID), logger.Error(err))
			continue
		}
		delivered++
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.streams {
		if role != "" && s.Role != "" && s.Role != role {
			continue
		}
		if err := s.queue.Enqueue(ctx, f); err != nil {
			metrics.RecordDroppedDelivery()
			continue
		}
		delivered++
	}
	return delivered
}

// Stream is a receive-only subscriber, used by the SSE endpoint.
type Stream struct {
	ID    string
	Role  protocol.Role
	queue *queue.InMemoryQueue
}

// Frames returns the channel envelopes arrive on; it is closed when the
// stream is removed.
func (s *Stream) Frames() <-chan queue.Frame {
	return s.queue.Dequeue()
}

// AddStream subscribes a new stream. An empty role receives everything.
func (r *Router) AddStream(role protocol.Role) *Stream {
	s := &Stream{
		ID:    uuid.NewString(),
		Role:  role,
		queue: queue.NewInMemoryQueue(queue.WithCapacity(r.streamQueueSize)),
	}
	r.mu.Lock()
	r.streams[s.ID] = s
	n := len(r.streams)
	r.mu.Unlock()
	metrics.UpdateStreamSubscribers(n)
	return s
}

// RemoveStream unsubscribes a stream and closes its channel.
func (r *Router) RemoveStream(id string) {
	r.mu.Lock()
	s, ok := r.streams[id]
	delete(r.streams, id)
	n := len(r.streams)
	r.mu.Unlock()
	if ok {
		_ = s.queue.Close()
	}
	metrics.UpdateStreamSubscribers(n)
}

// Streams returns the number of open streams.
func (r *Router) Streams() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.streams)
}
