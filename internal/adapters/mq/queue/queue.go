// Package queue holds the bounded outbound buffer each connection writes from.
//
// Enqueue never blocks: a slow consumer loses frames instead of stalling the
// broadcaster.
package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/judgeboard/pkg/metrics"
)

const defaultCapacity = 256

// Frame is one encoded envelope waiting for the socket.
type Frame struct {
	Data      []byte
	EventType string
	Enqueued  time.Time
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a frame. It returns ErrFull or ErrClosed when the frame
	// was dropped.
	Enqueue(ctx context.Context, f Frame) error

	// Dequeue returns the channel frames arrive on. It is closed by Close.
	Dequeue() <-chan Frame

	// Len returns the number of queued frames.
	Len() int

	// Close stops accepting frames. Frames already queued stay readable.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	frames   chan Frame
	capacity int
	dropped  atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.frames = make(chan Frame, q.capacity)
	return q
}

// Enqueue adds a frame without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, f Frame) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueRejected("closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueRejected("context_cancelled")
		return err
	}
	if f.Enqueued.IsZero() {
		f.Enqueued = time.Now()
	}

	select {
	case q.frames <- f:
		metrics.RecordQueueEnqueue()
		return nil
	default:
		q.dropped.Add(1)
		metrics.RecordQueueRejected("full")
		return ErrFull
	}
}

// Dequeue returns the receive side of the buffer.
func (q *InMemoryQueue) Dequeue() <-chan Frame {
	return q.frames
}

// Len returns the current number of queued frames.
func (q *InMemoryQueue) Len() int {
	return len(q.frames)
}

// Capacity returns the configured bound.
func (q *InMemoryQueue) Capacity() int {
	return q.capacity
}

// Dropped returns how many frames were rejected because the queue was full.
func (q *InMemoryQueue) Dropped() int64 {
	return q.dropped.Load()
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.frames)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
