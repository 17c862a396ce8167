// Package worker drains an outbound queue onto a connection.
//
// Each connection gets one Writer; it is the only goroutine that writes to
// the socket, so frames and pings never interleave.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/judgeboard/internal/adapters/mq/queue"
	"github.com/okian/judgeboard/pkg/logger"
	"github.com/okian/judgeboard/pkg/metrics"
)

// Sink is the write side of a connection.
type Sink interface {
	WriteFrame(ctx context.Context, data []byte) error
	Ping(ctx context.Context) error
}

// Queue defines how writers receive frames.
type Queue interface {
	Dequeue() <-chan queue.Frame
}

// Writer copies frames from a queue to a sink until stopped.
type Writer struct {
	queue        Queue
	sink         Sink
	name         string
	pingInterval time.Duration
	onError      func(error)

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewWriter creates a writer with configuration options.
func NewWriter(q Queue, sink Sink, opts ...Option) *Writer {
	w := &Writer{
		queue:    q,
		sink:     sink,
		name:     "writer",
		onError:  func(error) {},
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.GetOr(logger.NewNop()).Named("writer"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run writes frames until ctx is cancelled, Shutdown is called, the queue is
// closed or a write fails.
func (w *Writer) Run(ctx context.Context) {
	defer close(w.done)

	var ping <-chan time.Time
	if w.pingInterval > 0 {
		t := time.NewTicker(w.pingInterval)
		defer t.Stop()
		ping = t.C
	}

	frames := w.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			w.drain(ctx, frames)
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			if err := w.write(ctx, f); err != nil {
				w.fail(ctx, err)
				return
			}
		case <-ping:
			if err := w.sink.Ping(ctx); err != nil {
				w.fail(ctx, fmt.Errorf("ping: %w", err))
				return
			}
		}
	}
}

// Shutdown asks the writer to flush what is queued and stop.
func (w *Writer) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out", logger.String("writer", w.name))
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *Writer) Done() <-chan struct{} {
	return w.done
}

// drain writes whatever is already buffered without waiting for more.
func (w *Writer) drain(ctx context.Context, frames <-chan queue.Frame) {
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				return
			}
			if err := w.write(ctx, f); err != nil {
				w.fail(ctx, err)
				return
			}
		default:
			return
		}
	}
}

func (w *Writer) write(ctx context.Context, f queue.Frame) error {
	if err := w.sink.WriteFrame(ctx, f.Data); err != nil {
		return fmt.Errorf("write %s: %w", f.EventType, err)
	}
	metrics.RecordDelivery()
	metrics.RecordQueueWriteLatency(float64(time.Since(f.Enqueued).Microseconds()) / 1000)
	return nil
}

func (w *Writer) fail(ctx context.Context, err error) {
	metrics.RecordWriterError()
	w.logger.Debug(ctx, "writer stopped", logger.String("writer", w.name), logger.Error(err))
	w.onError(err)
}

// Pool tracks the writers of every live connection so shutdown can wait for
// all of them.
type Pool struct {
	mu      sync.Mutex
	writers map[string]*Writer
	wg      sync.WaitGroup
	logger  logger.Logger
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{
		writers: make(map[string]*Writer),
		logger:  logger.GetOr(logger.NewNop()).Named("writer-pool"),
	}
}

// Go runs w under ctx and tracks it under id until it returns.
func (p *Pool) Go(ctx context.Context, id string, w *Writer) {
	p.mu.Lock()
	p.writers[id] = w
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		w.Run(ctx)

		p.mu.Lock()
		if p.writers[id] == w {
			delete(p.writers, id)
		}
		p.mu.Unlock()
	}()
}

// Len returns the number of running writers.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.writers)
}

// Shutdown flushes and stops every writer, then waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	writers := make([]*Writer, 0, len(p.writers))
	for _, w := range p.writers {
		writers = append(writers, w)
	}
	p.mu.Unlock()

	for _, w := range writers {
		if err := w.Shutdown(ctx); err != nil {
			p.logger.Warn(ctx, "writer shutdown timed out", logger.String("writer", w.name))
		}
	}
	return p.Wait(ctx)
}

// Wait blocks until every tracked writer has returned.
func (p *Pool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for writers: %w", ctx.Err())
	}
}
