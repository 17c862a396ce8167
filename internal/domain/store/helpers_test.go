package store_test

import (
	"fmt"
	"sync"
	"time"

	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/domain/store"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recorder) record(ev model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []model.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func (r *recorder) last() model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type fixture struct {
	store  *store.Store
	clock  *fakeClock
	events *recorder
	dirty  int
}

// newFixture builds a store holding two judges (a, b), two dimensions
// (dim1, dim2, max 20 each), an interview score item (60%), a written item
// (40%) and candidates c1, c2.
func newFixture() *fixture {
	f := &fixture{clock: newFakeClock(), events: &recorder{}}
	n := 0
	f.store = store.New(
		store.WithClock(f.clock.Now),
		store.WithOnChange(func() { f.dirty++ }),
		store.WithIDGenerator(func() string { n++; return fmt.Sprintf("id-%d", n) }),
	)
	err := f.store.Restore(model.State{
		Judges: []model.Judge{
			{ID: "a", Name: "Judge A", Password: "pa", IsActive: true},
			{ID: "b", Name: "Judge B", Password: "pb", IsActive: true},
		},
		Dimensions: []model.ScoringDimension{
			{ID: "dim1", Name: "Clarity", MaxScore: 20, Weight: 50, Order: 1, IsActive: true},
			{ID: "dim2", Name: "Depth", MaxScore: 20, Weight: 50, Order: 2, IsActive: true},
		},
		ScoreItems: []model.ScoreItem{
			{ID: "interview", Name: "Interview", MaxScore: 100, Weight: 60, IsActive: true, IsInterviewScore: true},
			{ID: "written", Name: "Written", MaxScore: 100, Weight: 40, IsActive: true},
		},
		InterviewItems: []model.InterviewItem{
			{ID: "q1", Kind: model.KindQuestion, Title: "Why this role?", TimeLimit: 90, Order: 1, IsActive: true},
			{ID: "st1", Kind: model.KindInterviewStage, Title: "Free talk", Order: 2, IsActive: true},
		},
		Candidates: []model.Candidate{
			{ID: "c1", Number: 1, Name: "Lin"},
			{ID: "c2", Number: 2, Name: "Mo"},
		},
	})
	if err != nil {
		panic(err)
	}
	f.store.Bus().SubscribeAll(f.events.record)
	f.dirty = 0
	return f
}
