package realtime

import (
	"sync"
	"time"

	"github.com/okian/judgeboard/pkg/metrics"
)

// Churn coalesces connection notes with a trailing debounce: every note
// restarts the timer, and one flush reports the accumulated totals.
type Churn struct {
	mu      sync.Mutex
	delay   time.Duration
	pending Delta
	armed   bool
	timer   *time.Timer
	stopped bool
	flush   func(Delta)
}

// NewChurn creates a debouncer that calls flush after delay of quiet.
func NewChurn(delay time.Duration, flush func(Delta)) *Churn {
	return &Churn{delay: delay, flush: flush}
}

// Note adds d to the pending totals and restarts the timer.
func (c *Churn) Note(d Delta) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.pending.Connected += d.Connected
	c.pending.Disconnected += d.Disconnected
	c.armed = true
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.delay, c.fire)
}

// Flush reports pending churn now.
func (c *Churn) Flush() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	d, ok := c.take()
	c.mu.Unlock()
	if ok {
		c.report(d)
	}
}

// Stop cancels the pending flush and ignores later notes.
func (c *Churn) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Churn) fire() {
	c.mu.Lock()
	c.timer = nil
	d, ok := c.take()
	stopped := c.stopped
	c.mu.Unlock()
	if ok && !stopped {
		c.report(d)
	}
}

// take resets the pending totals. Caller holds c.mu.
func (c *Churn) take() (Delta, bool) {
	if !c.armed {
		return Delta{}, false
	}
	d := c.pending
	c.pending = Delta{}
	c.armed = false
	return d, true
}

func (c *Churn) report(d Delta) {
	metrics.RecordChurnFlush()
	c.flush(d)
}
