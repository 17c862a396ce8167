// Package realtime keeps track of live socket connections and fans domain
// events out to them.
package realtime

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/websocket"

	"github.com/okian/judgeboard/internal/adapters/mq/queue"
	"github.com/okian/judgeboard/internal/adapters/mq/worker"
	"github.com/okian/judgeboard/internal/protocol"
)

const writeTimeout = 10 * time.Second

// Transport is the socket under a connection. Only the connection's writer
// calls WriteFrame and Ping.
type Transport interface {
	worker.Sink
	Close() error
}

// Conn is one live socket. It is never persisted.
type Conn struct {
	ID          string
	ConnectedAt time.Time
	RemoteAddr  string

	mu      sync.RWMutex
	role    protocol.Role
	judgeID string

	lastHeartbeat atomic.Int64 // unix nanos

	queue     *queue.InMemoryQueue
	writer    *worker.Writer
	transport Transport
	cancel    context.CancelFunc
}

// Role returns the connection role.
func (c *Conn) Role() protocol.Role {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role
}

// JudgeID returns the judge bound to the connection, if any.
func (c *Conn) JudgeID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.judgeID
}

// LastHeartbeat returns the last time the client was heard from.
func (c *Conn) LastHeartbeat() time.Time {
	return time.Unix(0, c.lastHeartbeat.Load())
}

func (c *Conn) touch(now time.Time) {
	c.lastHeartbeat.Store(now.UnixNano())
}

func (c *Conn) setRole(role protocol.Role, judgeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.role = role
	c.judgeID = judgeID
}

// send encodes env onto the connection's outbound queue.
func (c *Conn) send(ctx context.Context, env protocol.Envelope) error {
	data, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, queue.Frame{Data: data, EventType: frameType(env)})
}

func (c *Conn) enqueue(ctx context.Context, f queue.Frame) error {
	if err := c.queue.Enqueue(ctx, f); err != nil {
		return fmt.Errorf("send to %s: %w", c.ID, err)
	}
	return nil
}

func frameType(env protocol.Envelope) string {
	if env.EventType != "" {
		return string(env.EventType)
	}
	return string(env.Kind)
}

// wsTransport adapts a websocket connection.
type wsTransport struct {
	ws *websocket.Conn
}

// NewWSTransport wraps ws for use by the registry.
func NewWSTransport(ws *websocket.Conn) Transport {
	return &wsTransport{ws: ws}
}

func (t *wsTransport) WriteFrame(_ context.Context, data []byte) error {
	if err := t.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return websocket.Message.Send(t.ws, string(data))
}

// Ping writes a control frame. The writer goroutine is the only caller, so
// flipping PayloadType does not race with data frames, which set their own.
func (t *wsTransport) Ping(context.Context) error {
	if err := t.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	t.ws.PayloadType = websocket.PingFrame
	_, err := t.ws.Write(nil)
	t.ws.PayloadType = websocket.TextFrame
	return err
}

func (t *wsTransport) Close() error {
	return t.ws.Close()
}
