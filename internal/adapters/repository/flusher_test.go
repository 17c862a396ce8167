package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/okian/judgeboard/internal/domain/model"
)

type fakeStore struct {
	mu    sync.Mutex
	saves []model.Document
	fail  error
}

func (f *fakeStore) Save(_ context.Context, doc model.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.saves = append(f.saves, doc)
	return nil
}

func (f *fakeStore) Load(context.Context) Loaded { return Loaded{} }

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

func (f *fakeStore) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFlusherCoalescesDirtySignals(t *testing.T) {
	defer goleak.VerifyNone(t)

	fs := &fakeStore{}
	round := 0
	var mu sync.Mutex
	f := NewFlusher(fs, func() model.Document {
		mu.Lock()
		defer mu.Unlock()
		return model.Document{State: model.State{Session: model.DisplaySession{CurrentRound: round}}}
	}, WithDebounce(30*time.Millisecond))

	for i := 1; i <= 5; i++ {
		mu.Lock()
		round = i
		mu.Unlock()
		f.MarkDirty()
	}
	if !f.Dirty() {
		t.Fatal("expected flusher to be dirty before the debounce elapses")
	}

	waitFor(t, func() bool { return fs.count() == 1 })
	time.Sleep(60 * time.Millisecond)

	if got := fs.count(); got != 1 {
		t.Fatalf("expected one coalesced save, got %d", got)
	}
	if got := fs.saves[0].State.Session.CurrentRound; got != 5 {
		t.Errorf("expected the save to see the latest state, got round %d", got)
	}
	if f.Dirty() {
		t.Error("expected flusher to be clean after the save")
	}
	if last, err := f.LastFlush(); last.IsZero() || err != nil {
		t.Errorf("expected a recorded flush, got %v / %v", last, err)
	}
}

func TestFlusherRetriesAfterFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	boom := errors.New("disk full")
	fs := &fakeStore{fail: boom}
	f := NewFlusher(fs, func() model.Document { return model.Document{} }, WithDebounce(10*time.Millisecond))

	f.MarkDirty()
	waitFor(t, func() bool {
		_, err := f.LastFlush()
		return err != nil
	})
	if !f.Dirty() {
		t.Fatal("a failed save must leave the flusher dirty")
	}
	if _, err := f.LastFlush(); !errors.Is(err, boom) {
		t.Fatalf("expected last error to wrap the store error, got %v", err)
	}

	// No further mutation arrives; the flusher retries on its own.
	fs.setFail(nil)
	waitFor(t, func() bool {
		last, err := f.LastFlush()
		return err == nil && !last.IsZero()
	})

	if fs.count() != 1 {
		t.Errorf("expected one successful save, got %d", fs.count())
	}
	if f.Dirty() {
		t.Error("expected flusher to be clean after the retry")
	}
	if err := f.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestFlusherStopsRetryingWhenClosed(t *testing.T) {
	defer goleak.VerifyNone(t)

	fs := &fakeStore{fail: errors.New("read-only filesystem")}
	f := NewFlusher(fs, func() model.Document { return model.Document{} }, WithDebounce(10*time.Millisecond))

	f.MarkDirty()
	waitFor(t, func() bool {
		_, err := f.LastFlush()
		return err != nil
	})
	_ = f.Close(context.Background())
	if !f.Dirty() {
		t.Fatal("expected the unsaved change to stay dirty")
	}

	fs.setFail(nil)
	time.Sleep(50 * time.Millisecond)
	if fs.count() != 0 {
		t.Errorf("expected no saves after close, got %d", fs.count())
	}
}

func TestFlusherForceSaveAndClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	fs := &fakeStore{}
	f := NewFlusher(fs, func() model.Document { return model.Document{} }, WithDebounce(time.Hour))

	if err := f.ForceSave(context.Background()); err != nil {
		t.Fatalf("force save: %v", err)
	}
	if fs.count() != 1 {
		t.Fatalf("force save should write even when clean, got %d saves", fs.count())
	}

	f.MarkDirty()
	if err := f.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if fs.count() != 2 {
		t.Fatalf("close should write pending changes, got %d saves", fs.count())
	}

	f.MarkDirty()
	if err := f.Close(context.Background()); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if fs.count() != 3 {
		t.Fatalf("close should still write a dirty state, got %d saves", fs.count())
	}
}

func TestFlusherRecoversFromPanickingSource(t *testing.T) {
	fs := &fakeStore{}
	f := NewFlusher(fs, func() model.Document { panic("boom") })

	err := f.ForceSave(context.Background())
	if !errors.Is(err, ErrWrite) {
		t.Fatalf("expected ErrWrite from a panicking source, got %v", err)
	}
	if !f.Dirty() {
		t.Error("expected flusher to stay dirty")
	}
	if err := f.Close(context.Background()); !errors.Is(err, ErrWrite) {
		t.Errorf("expected close to hit the same panic, got %v", err)
	}
}

func TestFlusherWithFileStore(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(dir)
	doc := DefaultDocument(time.Now(), seqIDs("d"))
	f := NewFlusher(s, func() model.Document { return doc }, WithDebounce(5*time.Millisecond))

	f.MarkDirty()
	waitFor(t, func() bool {
		last, _ := f.LastFlush()
		return !last.IsZero()
	})
	if err := f.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	got := s.Load(context.Background())
	if got.Source != SourceEnhanced {
		t.Fatalf("expected the flushed document on disk, got source %s (%v)", got.Source, got.Reason)
	}
}
