package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/pkg/logger"
	"github.com/okian/judgeboard/pkg/metrics"
)

const (
	defaultDebounce = time.Second
	maxRetryDelay   = 30 * time.Second
)

// Flusher coalesces dirty signals into one trailing save. A failed save
// leaves the flusher dirty and schedules a retry on its own, backing off
// up to maxRetryDelay while the store keeps failing.
type Flusher struct {
	store    Store
	source   func() model.Document
	debounce time.Duration
	log      logger.Logger

	saving sync.Mutex // serializes saves

	mu        sync.Mutex
	dirty     bool
	timer     *time.Timer
	closed    bool
	lastFlush time.Time
	lastErr   error
	retry     *backoff.ExponentialBackOff
}

// NewFlusher creates a flusher that saves source() into store.
func NewFlusher(store Store, source func() model.Document, opts ...FlusherOption) *Flusher {
	f := &Flusher{
		store:    store,
		source:   source,
		debounce: defaultDebounce,
		log:      logger.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	initial := f.debounce
	if initial <= 0 {
		initial = defaultDebounce
	}
	f.retry = backoff.NewExponentialBackOff()
	f.retry.InitialInterval = initial
	f.retry.MaxInterval = maxRetryDelay
	f.retry.Reset()
	return f
}

// MarkDirty records a mutation and schedules a save if none is pending.
func (f *Flusher) MarkDirty() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirty = true
	if f.closed || f.timer != nil {
		return
	}
	f.timer = time.AfterFunc(f.debounce, f.fire)
}

// ForceSave cancels any pending save and writes now, dirty or not.
func (f *Flusher) ForceSave(ctx context.Context) error {
	f.mu.Lock()
	f.stopTimer()
	f.dirty = true
	f.mu.Unlock()
	return f.flush(ctx)
}

// Close stops scheduling and writes pending changes. A save already in
// flight is waited for first.
func (f *Flusher) Close(ctx context.Context) error {
	f.mu.Lock()
	f.closed = true
	f.stopTimer()
	f.mu.Unlock()
	return f.flush(ctx)
}

// Dirty reports whether changes are waiting to be written.
func (f *Flusher) Dirty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirty
}

// LastFlush returns the time of the last successful save and the error of
// the last failed one since then.
func (f *Flusher) LastFlush() (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastFlush, f.lastErr
}

// stopTimer cancels the pending save. Caller holds f.mu.
func (f *Flusher) stopTimer() {
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}

func (f *Flusher) fire() {
	f.mu.Lock()
	f.timer = nil
	f.mu.Unlock()
	_ = f.flush(context.Background())
}

func (f *Flusher) flush(ctx context.Context) (err error) {
	f.saving.Lock()
	defer f.saving.Unlock()

	f.mu.Lock()
	if !f.dirty {
		f.mu.Unlock()
		return nil
	}
	f.dirty = false
	f.mu.Unlock()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrWrite, r)
		}
		metrics.RecordFlushDuration(float64(time.Since(start).Milliseconds()))

		f.mu.Lock()
		defer f.mu.Unlock()
		if err != nil {
			f.dirty = true
			f.lastErr = err
			metrics.RecordFlushError()
			f.scheduleRetry(ctx)
			return
		}
		f.lastFlush = time.Now()
		f.lastErr = nil
		f.retry.Reset()
	}()

	return f.store.Save(ctx, f.source())
}

// scheduleRetry arms the next attempt after a failed save unless one is
// already pending or the flusher is closed. Caller holds f.mu.
func (f *Flusher) scheduleRetry(ctx context.Context) {
	if f.closed || f.timer != nil {
		f.log.Error(ctx, "snapshot save failed", logger.Error(f.lastErr))
		return
	}
	next := f.retry.NextBackOff()
	if next < 0 {
		next = maxRetryDelay
	}
	f.log.Error(ctx, "snapshot save failed, retrying",
		logger.Error(f.lastErr),
		logger.Duration("retry_in", next),
	)
	f.timer = time.AfterFunc(next, f.fire)
}
