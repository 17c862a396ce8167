// Package store is the authoritative in-memory owner of every domain
// entity. All mutations run behind one mutex, so a cascade touching many
// entities is observed atomically, and committed events are published in
// mutation order while the lock is still held.
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/okian/judgeboard/internal/domain/bus"
	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/domain/scoring"
	"github.com/okian/judgeboard/internal/domain/types"
	"github.com/okian/judgeboard/pkg/logger"
	"github.com/okian/judgeboard/pkg/metrics"
)

// Store holds the live entities. Bus handlers run under the store lock and
// must never call back into the Store.
type Store struct {
	mu    sync.Mutex
	state model.State

	bus      *bus.Bus[model.EventType, model.Event]
	onChange func()
	now      func() time.Time
	newID    func() string
	log      logger.Logger
}

// New creates an empty store with round 1 and the opening stage.
func New(opts ...Option) *Store {
	s := &Store{
		bus:      bus.New[model.EventType, model.Event](),
		onChange: func() {},
		now:      time.Now,
		newID:    defaultID,
		log:      logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state = normalize(model.State{}, s.now())
	return s
}

// Bus returns the bus committed events are published on.
func (s *Store) Bus() *bus.Bus[model.EventType, model.Event] { return s.bus }

// Subscribe is a shorthand for Bus().Subscribe.
func (s *Store) Subscribe(t model.EventType, fn bus.Handler[model.Event]) bus.Token {
	return s.bus.Subscribe(t, fn)
}

// emit publishes one event. Caller holds s.mu.
func (s *Store) emit(t model.EventType, data any) {
	metrics.RecordStoreMutation(string(t))
	s.bus.Publish(t, model.Event{Type: t, Data: data, At: s.now()})
}

// changed fires the dirty signal and refreshes gauges. Caller holds s.mu.
func (s *Store) changed() {
	metrics.UpdateCandidatesTotal(len(s.state.Candidates))
	s.onChange()
}

// Snapshot returns a deep copy of the live state.
func (s *Store) Snapshot() model.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Restore replaces the live state. Derived totals are recomputed, online
// flags are cleared and structural problems are rejected. Nothing is
// published; the caller announces the replacement.
func (s *Store) Restore(st model.State) error {
	if err := Validate(st); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = normalize(st.Clone(), s.now())
	s.changed()
	s.updateOnlineGauge()
	return nil
}

// Validate checks the structural rules a state must satisfy.
func Validate(st model.State) error {
	interviewing := 0
	ids := make(map[string]struct{}, len(st.Candidates))
	for _, c := range st.Candidates {
		if c.ID == "" {
			return fmt.Errorf("%w: candidate without id", ErrInvalidInput)
		}
		if _, dup := ids[c.ID]; dup {
			return fmt.Errorf("%w: duplicate candidate id %s", ErrInvalidInput, c.ID)
		}
		ids[c.ID] = struct{}{}
		if c.Status != "" && !c.Status.Valid() {
			return fmt.Errorf("%w: candidate %s has status %q", ErrInvalidInput, c.ID, c.Status)
		}
		if c.Status == model.StatusInterviewing {
			interviewing++
		}
	}
	if interviewing > 1 {
		return fmt.Errorf("%w: %d candidates are interviewing", ErrInvalidInput, interviewing)
	}
	for _, j := range st.Judges {
		if j.ID == "" {
			return fmt.Errorf("%w: judge without id", ErrInvalidInput)
		}
	}
	for _, d := range st.Dimensions {
		if d.ID == "" {
			return fmt.Errorf("%w: dimension without id", ErrInvalidInput)
		}
	}
	for _, it := range st.ScoreItems {
		if it.ID == "" {
			return fmt.Errorf("%w: score item without id", ErrInvalidInput)
		}
	}
	for _, it := range st.InterviewItems {
		if it.ID == "" {
			return fmt.Errorf("%w: interview item without id", ErrInvalidInput)
		}
	}
	if st.Session.CurrentRound < 0 {
		return fmt.Errorf("%w: round %d", ErrInvalidInput, st.Session.CurrentRound)
	}
	return nil
}

// normalize fills defaults on a state about to become live.
func normalize(st model.State, now time.Time) model.State {
	if st.Candidates == nil {
		st.Candidates = []model.Candidate{}
	}
	if st.Judges == nil {
		st.Judges = []model.Judge{}
	}
	if st.Dimensions == nil {
		st.Dimensions = []model.ScoringDimension{}
	}
	if st.ScoreItems == nil {
		st.ScoreItems = []model.ScoreItem{}
	}
	if st.InterviewItems == nil {
		st.InterviewItems = []model.InterviewItem{}
	}
	if st.Session.CurrentRound < 1 {
		st.Session.CurrentRound = 1
	}
	if st.Session.CurrentStage == "" {
		st.Session.CurrentStage = model.StageOpening
	}
	if st.Session.UpdatedAt.IsZero() {
		st.Session.UpdatedAt = now
	}
	for i := range st.Judges {
		st.Judges[i].IsOnline = false
	}
	current := ""
	for i := range st.Candidates {
		c := &st.Candidates[i]
		if c.Status == "" {
			c.Status = model.StatusWaiting
		}
		if c.Scores == nil {
			c.Scores = []model.Score{}
		}
		if c.OtherScores == nil {
			c.OtherScores = []model.OtherScore{}
		}
		if c.Status == model.StatusInterviewing {
			current = c.ID
		}
		scoring.Recompute(c, st.ScoreItems, st.Session.CurrentRound)
	}
	st.Session.CurrentCandidateID = current
	return st
}

// Leaderboard ranks candidates by final score, then interview total, then
// candidate number.
func (s *Store) Leaderboard() []types.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return leaderboard(s.state.Candidates, s.state.Session.CurrentRound)
}
