package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"

	"github.com/okian/judgeboard/internal/adapters/mq/queue"
	"github.com/okian/judgeboard/internal/adapters/mq/worker"
)

type mockSink struct {
	mu       sync.Mutex
	frames   []string
	pings    atomic.Int32
	writeErr error
	pingErr  error
}

func (s *mockSink) WriteFrame(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.frames = append(s.frames, string(data))
	return nil
}

func (s *mockSink) Ping(context.Context) error {
	s.pings.Add(1)
	return s.pingErr
}

func (s *mockSink) written() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.frames...)
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

func TestWriter(t *testing.T) {
	defer goleak.VerifyNone(t)

	convey.Convey("Given a writer over a queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		sink := &mockSink{}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		convey.Convey("When frames are enqueued", func() {
			w := worker.NewWriter(q, sink, worker.WithName("c-1"))
			go w.Run(ctx)
			for _, s := range []string{"a", "b", "c"} {
				convey.So(q.Enqueue(ctx, queue.Frame{Data: []byte(s)}), convey.ShouldBeNil)
			}

			convey.Convey("Then they are written in order", func() {
				convey.So(eventually(func() bool { return len(sink.written()) == 3 }), convey.ShouldBeTrue)
				convey.So(sink.written(), convey.ShouldResemble, []string{"a", "b", "c"})
				cancel()
				<-w.Done()
			})
		})

		convey.Convey("When a write fails", func() {
			boom := errors.New("broken pipe")
			sink.writeErr = boom
			var got error
			var calls atomic.Int32
			w := worker.NewWriter(q, sink, worker.WithErrorHandler(func(err error) {
				calls.Add(1)
				got = err
			}))
			go w.Run(ctx)
			_ = q.Enqueue(ctx, queue.Frame{Data: []byte("x"), EventType: "stage_changed"})

			convey.Convey("Then the error handler fires once and the writer stops", func() {
				<-w.Done()
				convey.So(calls.Load(), convey.ShouldEqual, 1)
				convey.So(errors.Is(got, boom), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When pings are enabled", func() {
			w := worker.NewWriter(q, sink, worker.WithPingInterval(5*time.Millisecond))
			go w.Run(ctx)

			convey.Convey("Then the sink is pinged periodically", func() {
				convey.So(eventually(func() bool { return sink.pings.Load() >= 2 }), convey.ShouldBeTrue)
				cancel()
				<-w.Done()
			})
		})

		convey.Convey("When a ping fails", func() {
			sink.pingErr = errors.New("timeout")
			failed := make(chan error, 1)
			w := worker.NewWriter(q, sink,
				worker.WithPingInterval(5*time.Millisecond),
				worker.WithErrorHandler(func(err error) { failed <- err }),
			)
			go w.Run(ctx)

			convey.Convey("Then the writer tears down", func() {
				err := <-failed
				<-w.Done()
				convey.So(err.Error(), convey.ShouldContainSubstring, "ping")
			})
		})

		convey.Convey("When shut down with frames still queued", func() {
			w := worker.NewWriter(q, sink)
			for _, s := range []string{"1", "2"} {
				_ = q.Enqueue(ctx, queue.Frame{Data: []byte(s)})
			}
			go w.Run(ctx)
			err := w.Shutdown(context.Background())

			convey.Convey("Then the buffered frames are flushed first", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(sink.written(), convey.ShouldResemble, []string{"1", "2"})
			})

			convey.Convey("Then a second shutdown is harmless", func() {
				convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the queue is closed", func() {
			w := worker.NewWriter(q, sink)
			go w.Run(ctx)
			_ = q.Close()

			convey.Convey("Then the writer returns", func() {
				select {
				case <-w.Done():
				case <-time.After(time.Second):
					convey.So("writer still running", convey.ShouldBeEmpty)
				}
			})
		})
	})
}

func TestPool(t *testing.T) {
	defer goleak.VerifyNone(t)

	convey.Convey("Given a pool with two writers", t, func() {
		p := worker.NewPool()
		ctx := context.Background()
		sinks := []*mockSink{{}, {}}
		queues := []*queue.InMemoryQueue{queue.NewInMemoryQueue(), queue.NewInMemoryQueue()}
		for i, id := range []string{"a", "b"} {
			p.Go(ctx, id, worker.NewWriter(queues[i], sinks[i]))
		}
		convey.So(p.Len(), convey.ShouldEqual, 2)

		convey.Convey("When one queue closes", func() {
			_ = queues[0].Close()

			convey.Convey("Then its writer leaves the pool", func() {
				convey.So(eventually(func() bool { return p.Len() == 1 }), convey.ShouldBeTrue)
				convey.So(p.Shutdown(ctx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the pool shuts down", func() {
			_ = queues[1].Enqueue(ctx, queue.Frame{Data: []byte("last")})
			err := p.Shutdown(ctx)

			convey.Convey("Then every writer has stopped after flushing", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(p.Len(), convey.ShouldEqual, 0)
				convey.So(sinks[1].written(), convey.ShouldResemble, []string{"last"})
			})
		})
	})
}
