// Package batch runs the batch lifecycle: draft -> active <-> paused ->
// completed. At most one batch is active system-wide and starting or
// resuming another one is rejected rather than implicitly pausing it.
package batch

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/judgeboard/internal/domain/bus"
	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/domain/store"
	"github.com/okian/judgeboard/pkg/logger"
	"github.com/okian/judgeboard/pkg/metrics"
)

// Store is the part of the state store the manager drives.
type Store interface {
	Snapshot() model.State
	Restore(model.State) error
}

// Transition actions, also used as batch_changed actions.
const (
	ActionCreate   = "create"
	ActionStart    = "start"
	ActionPause    = "pause"
	ActionResume   = "resume"
	ActionComplete = "complete"
	ActionDelete   = "delete"
)

// Manager owns the batch list and the active pointer. Lock order is always
// manager then store.
//
// liveID names the batch whose entities the store currently holds. It
// outlives a pause: the store keeps serving a paused batch until another
// one starts, and anything written meanwhile belongs to the paused batch.
type Manager struct {
	mu       sync.Mutex
	batches  []model.Batch
	activeID string
	liveID   string

	store    Store
	bus      *bus.Bus[model.EventType, model.Event]
	onChange func()
	now      func() time.Time
	newID    func() string
	log      logger.Logger
}

// New creates a manager with no batches.
func New(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		bus:      bus.New[model.EventType, model.Event](),
		onChange: func() {},
		now:      time.Now,
		newID:    uuid.NewString,
		log:      logger.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create adds a draft batch. Config templates must pass the catalog rules,
// are copied and never change afterwards; candidates get fresh ids.
func (m *Manager) Create(name, description string, cfg model.BatchConfig, candidates []model.Candidate) (model.Batch, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Batch{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if err := store.CheckConfig(cfg); err != nil {
		metrics.RecordBatchTransition(ActionCreate, "invalid")
		return model.Batch{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b := model.Batch{
		ID:          m.newID(),
		Name:        name,
		Description: description,
		Status:      model.BatchDraft,
		Config:      cfg,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	b = b.Clone()
	b.Runtime = model.BatchRuntime{
		Candidates: freshCandidates(candidates, m.newID, now),
		Session:    model.DisplaySession{CurrentRound: 1, CurrentStage: model.StageOpening, UpdatedAt: now},
	}
	b.Runtime.Metadata = computeMetadata(b.Runtime.Candidates)

	m.batches = append(m.batches, b)
	m.publish(ActionCreate, b)
	metrics.RecordBatchTransition(ActionCreate, "ok")
	m.onChange()
	return b.Clone(), nil
}

// CreateFromCurrent builds a draft batch whose templates and candidate
// roster are taken from the live store. Scores are not carried over.
func (m *Manager) CreateFromCurrent(name, description string) (model.Batch, error) {
	st := m.store.Snapshot()
	return m.Create(name, description, TemplatesFrom(st), st.Candidates)
}

// TemplatesFrom strips ids from live entities.
func TemplatesFrom(st model.State) model.BatchConfig {
	cfg := model.BatchConfig{
		Judges:         make([]model.JudgeTemplate, 0, len(st.Judges)),
		Dimensions:     make([]model.DimensionTemplate, 0, len(st.Dimensions)),
		ScoreItems:     make([]model.ScoreItemTemplate, 0, len(st.ScoreItems)),
		InterviewItems: make([]model.InterviewItemTemplate, 0, len(st.InterviewItems)),
	}
	for _, j := range st.Judges {
		cfg.Judges = append(cfg.Judges, model.JudgeTemplate{Name: j.Name, Password: j.Password, IsActive: j.IsActive})
	}
	for _, d := range st.Dimensions {
		cfg.Dimensions = append(cfg.Dimensions, model.DimensionTemplate{
			Name: d.Name, Description: d.Description, MaxScore: d.MaxScore, Weight: d.Weight, Order: d.Order, IsActive: d.IsActive,
		})
	}
	for _, it := range st.ScoreItems {
		cfg.ScoreItems = append(cfg.ScoreItems, model.ScoreItemTemplate{
			Name: it.Name, MaxScore: it.MaxScore, Weight: it.Weight, Order: it.Order, IsActive: it.IsActive, IsInterviewScore: it.IsInterviewScore,
		})
	}
	for _, it := range st.InterviewItems {
		cfg.InterviewItems = append(cfg.InterviewItems, model.InterviewItemTemplate{
			Kind: it.Kind, Title: it.Title, Content: it.Content, TimeLimit: it.TimeLimit, Order: it.Order, IsActive: it.IsActive,
		})
	}
	return cfg
}

// List returns all batches in creation order with fresh metadata.
func (m *Manager) List() []model.Batch {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshLive()
	out := make([]model.Batch, len(m.batches))
	for i, b := range m.batches {
		out[i] = b.Clone()
	}
	return out
}

// Get returns one batch with fresh metadata.
func (m *Manager) Get(id string) (model.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(id)
	if i < 0 {
		return model.Batch{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.refreshLive()
	return m.batches[i].Clone(), nil
}

// Active returns the active batch, if any.
func (m *Manager) Active() (model.Batch, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(m.activeID)
	if i < 0 {
		return model.Batch{}, false
	}
	m.refreshLive()
	return m.batches[i].Clone(), true
}

// Stats recomputes a batch's runtime metadata.
func (m *Manager) Stats(id string) (model.BatchMetadata, error) {
	b, err := m.Get(id)
	if err != nil {
		return model.BatchMetadata{}, err
	}
	return b.Runtime.Metadata, nil
}

// Delete removes a batch that is not active.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if m.batches[i].Status == model.BatchActive {
		metrics.RecordBatchTransition(ActionDelete, "conflict")
		return fmt.Errorf("%w: cannot delete active batch %s", ErrConflict, id)
	}
	b := m.batches[i]
	m.batches = append(m.batches[:i], m.batches[i+1:]...)
	if m.liveID == id {
		m.liveID = ""
	}
	m.publish(ActionDelete, b)
	metrics.RecordBatchTransition(ActionDelete, "ok")
	m.onChange()
	return nil
}

// Start moves a draft batch to active and materializes its templates into
// the store with fresh ids.
func (m *Manager) Start(id string) (model.Batch, error) {
	return m.transition(id, ActionStart, []model.BatchStatus{model.BatchDraft}, func(b *model.Batch, now time.Time) error {
		st := materialize(b, m.newID, now)
		if err := m.store.Restore(st); err != nil {
			return fmt.Errorf("materialize batch %s: %w", b.ID, err)
		}
		b.Runtime = model.RuntimeFromState(m.store.Snapshot(), b.Runtime.Metadata)
		b.Status = model.BatchActive
		b.StartedAt = &now
		m.activeID = b.ID
		m.liveID = b.ID
		return nil
	})
}

// Pause captures the store into the batch and releases the active pointer.
// The store keeps showing the paused batch until another one starts.
func (m *Manager) Pause(id string) (model.Batch, error) {
	return m.transition(id, ActionPause, []model.BatchStatus{model.BatchActive}, func(b *model.Batch, _ time.Time) error {
		b.Runtime = model.RuntimeFromState(m.store.Snapshot(), b.Runtime.Metadata)
		b.Status = model.BatchPaused
		m.activeID = ""
		return nil
	})
}

// Resume makes a paused batch active again. When the store still holds the
// batch, edits made while paused are kept and captured into the runtime;
// otherwise the saved runtime is restored.
func (m *Manager) Resume(id string) (model.Batch, error) {
	return m.transition(id, ActionResume, []model.BatchStatus{model.BatchPaused}, func(b *model.Batch, _ time.Time) error {
		if m.liveID == b.ID {
			b.Runtime = model.RuntimeFromState(m.store.Snapshot(), b.Runtime.Metadata)
		} else if err := m.store.Restore(b.Runtime.State()); err != nil {
			return fmt.Errorf("restore batch %s: %w", b.ID, err)
		}
		b.Status = model.BatchActive
		m.activeID = b.ID
		m.liveID = b.ID
		return nil
	})
}

// Complete ends a batch for good. When the store holds the batch its
// runtime is captured first, and later store edits no longer reach it.
func (m *Manager) Complete(id string) (model.Batch, error) {
	return m.transition(id, ActionComplete, []model.BatchStatus{model.BatchActive, model.BatchPaused}, func(b *model.Batch, now time.Time) error {
		if m.liveID == b.ID {
			b.Runtime = model.RuntimeFromState(m.store.Snapshot(), b.Runtime.Metadata)
			m.liveID = ""
		}
		b.Status = model.BatchCompleted
		b.CompletedAt = &now
		if m.activeID == b.ID {
			m.activeID = ""
		}
		return nil
	})
}

// Apply runs the transition named by action: start, pause, resume or
// complete.
func (m *Manager) Apply(id, action string) (model.Batch, error) {
	switch action {
	case ActionStart:
		return m.Start(id)
	case ActionPause:
		return m.Pause(id)
	case ActionResume:
		return m.Resume(id)
	case ActionComplete:
		return m.Complete(id)
	}
	return model.Batch{}, fmt.Errorf("%w: unknown action %q", ErrInvalidInput, action)
}

func (m *Manager) transition(id, action string, from []model.BatchStatus, apply func(b *model.Batch, now time.Time) error) (model.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.index(id)
	if i < 0 {
		metrics.RecordBatchTransition(action, "not_found")
		return model.Batch{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	b := m.batches[i].Clone()
	if !allowed(b.Status, from) {
		metrics.RecordBatchTransition(action, "invalid")
		return model.Batch{}, fmt.Errorf("%w: cannot %s a %s batch", ErrInvalidTransition, action, b.Status)
	}
	if (action == ActionStart || action == ActionResume) && m.activeID != "" && m.activeID != id {
		metrics.RecordBatchTransition(action, "conflict")
		return model.Batch{}, fmt.Errorf("%w: %s is active", ErrConflict, m.activeID)
	}

	now := m.now()
	if err := apply(&b, now); err != nil {
		metrics.RecordBatchTransition(action, "error")
		return model.Batch{}, err
	}
	b.Runtime.Metadata = computeMetadata(b.Runtime.Candidates)
	b.UpdatedAt = now
	m.batches[i] = b

	m.log.Info(context.Background(), "batch transition",
		logger.String("batch_id", b.ID),
		logger.String("action", action),
		logger.String("status", string(b.Status)),
	)
	m.publish(action, b)
	metrics.RecordBatchTransition(action, "ok")
	m.onChange()
	return b.Clone(), nil
}

// Document returns the persistence unit: every batch plus the live state,
// read under the manager lock so the two agree.
func (m *Manager) Document() model.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.store.Snapshot()
	m.refreshLiveFrom(st)
	batches := make([]model.Batch, len(m.batches))
	for i, b := range m.batches {
		batches[i] = b.Clone()
	}
	return model.Document{
		Version:       model.SchemaVersion,
		SavedAt:       m.now().UTC(),
		ActiveBatchID: m.activeID,
		LiveBatchID:   m.liveID,
		Batches:       batches,
		State:         st,
	}
}

// Restore replaces batches and the live state from a loaded document.
func (m *Manager) Restore(doc model.Document) error {
	active := ""
	for _, b := range doc.Batches {
		if b.Status != model.BatchActive {
			continue
		}
		if active != "" {
			return fmt.Errorf("%w: batches %s and %s are both active", ErrInvalidInput, active, b.ID)
		}
		active = b.ID
	}
	if doc.ActiveBatchID != active {
		return fmt.Errorf("%w: active pointer %q does not match active batch %q", ErrInvalidInput, doc.ActiveBatchID, active)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Restore(doc.State); err != nil {
		return fmt.Errorf("restore state: %w", err)
	}
	m.batches = make([]model.Batch, len(doc.Batches))
	for i, b := range doc.Batches {
		m.batches[i] = b.Clone()
		m.batches[i].Runtime.Metadata = computeMetadata(b.Runtime.Candidates)
	}
	m.activeID = active
	m.liveID = active
	if i := m.index(doc.LiveBatchID); i >= 0 && m.batches[i].Status == model.BatchPaused && active == "" {
		m.liveID = doc.LiveBatchID
	}
	return nil
}

// ActiveID returns the active batch id or "".
func (m *Manager) ActiveID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID
}

// Len returns the number of batches.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

func (m *Manager) refreshLive() {
	if m.liveID == "" {
		return
	}
	m.refreshLiveFrom(m.store.Snapshot())
}

// refreshLiveFrom copies the live state into the runtime of the batch the
// store holds, whether it is active or paused.
func (m *Manager) refreshLiveFrom(st model.State) {
	i := m.index(m.liveID)
	if i < 0 {
		return
	}
	b := &m.batches[i]
	b.Runtime = model.RuntimeFromState(st, computeMetadata(st.Candidates))
}

func (m *Manager) publish(action string, b model.Batch) {
	m.bus.Publish(model.EventBatchChanged, model.Event{
		Type: model.EventBatchChanged,
		Data: model.ChangePayload{Action: action, ID: b.ID, Entity: b.Clone()},
		At:   m.now(),
	})
}

func (m *Manager) index(id string) int {
	if id == "" {
		return -1
	}
	for i := range m.batches {
		if m.batches[i].ID == id {
			return i
		}
	}
	return -1
}

func allowed(s model.BatchStatus, from []model.BatchStatus) bool {
	for _, f := range from {
		if s == f {
			return true
		}
	}
	return false
}

func freshCandidates(src []model.Candidate, newID func() string, now time.Time) []model.Candidate {
	out := make([]model.Candidate, 0, len(src))
	for i, c := range src {
		n := c.Number
		if n == 0 {
			n = i + 1
		}
		out = append(out, model.Candidate{
			ID:          newID(),
			Number:      n,
			Name:        c.Name,
			Department:  c.Department,
			Position:    c.Position,
			Status:      model.StatusWaiting,
			Scores:      []model.Score{},
			OtherScores: []model.OtherScore{},
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return out
}

// materialize turns a draft batch into a live state. Templates get fresh
// ids; runtime candidates keep theirs.
func materialize(b *model.Batch, newID func() string, now time.Time) model.State {
	st := model.State{
		Candidates: b.Clone().Runtime.Candidates,
		Session:    model.DisplaySession{CurrentRound: 1, CurrentStage: model.StageOpening, UpdatedAt: now},
	}
	for _, j := range b.Config.Judges {
		st.Judges = append(st.Judges, model.Judge{ID: newID(), Name: j.Name, Password: j.Password, IsActive: j.IsActive})
	}
	for _, d := range b.Config.Dimensions {
		st.Dimensions = append(st.Dimensions, model.ScoringDimension{
			ID: newID(), Name: d.Name, Description: d.Description, MaxScore: d.MaxScore, Weight: d.Weight, Order: d.Order, IsActive: d.IsActive,
		})
	}
	for _, it := range b.Config.ScoreItems {
		st.ScoreItems = append(st.ScoreItems, model.ScoreItem{
			ID: newID(), Name: it.Name, MaxScore: it.MaxScore, Weight: it.Weight, Order: it.Order, IsActive: it.IsActive, IsInterviewScore: it.IsInterviewScore,
		})
	}
	for _, it := range b.Config.InterviewItems {
		st.InterviewItems = append(st.InterviewItems, model.InterviewItem{
			ID: newID(), Kind: it.Kind, Title: it.Title, Content: it.Content, TimeLimit: it.TimeLimit, Order: it.Order, IsActive: it.IsActive,
		})
	}
	return st
}

// computeMetadata counts candidates and averages the final score of the
// completed ones.
func computeMetadata(cands []model.Candidate) model.BatchMetadata {
	md := model.BatchMetadata{CandidateCount: len(cands)}
	sum := 0
	for _, c := range cands {
		if c.Status == model.StatusCompleted {
			md.CompletedCount++
			sum += c.FinalScore
		}
	}
	if md.CompletedCount > 0 {
		md.AverageScore = math.Round(float64(sum)/float64(md.CompletedCount)*100) / 100
	}
	return md
}
