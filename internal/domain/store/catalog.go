package store

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/domain/scoring"
)

// Dimensions returns copies of all dimensions ordered by Order.
func (s *Store) Dimensions() []model.ScoringDimension {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]model.ScoringDimension{}, s.state.Dimensions...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// AddDimension registers a scoring dimension.
func (s *Store) AddDimension(d model.ScoringDimension) (model.ScoringDimension, error) {
	if err := checkDimension(d); err != nil {
		return model.ScoringDimension{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.ID == "" {
		d.ID = s.newID()
	} else if s.dimensionIndex(d.ID) >= 0 {
		return model.ScoringDimension{}, fmt.Errorf("%w: dimension %s exists", ErrConflict, d.ID)
	}
	s.state.Dimensions = append(s.state.Dimensions, d)
	s.emit(model.EventDimensionChanged, model.ChangePayload{Action: model.ActionCreated, ID: d.ID, Entity: d})
	s.changed()
	return d, nil
}

// UpdateDimension replaces a dimension. Existing submissions keep their
// values even if they now exceed MaxScore.
func (s *Store) UpdateDimension(d model.ScoringDimension) (model.ScoringDimension, error) {
	if err := checkDimension(d); err != nil {
		return model.ScoringDimension{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.dimensionIndex(d.ID)
	if i < 0 {
		return model.ScoringDimension{}, fmt.Errorf("%w: dimension %s", ErrNotFound, d.ID)
	}
	s.state.Dimensions[i] = d
	s.emit(model.EventDimensionChanged, model.ChangePayload{Action: model.ActionUpdated, ID: d.ID, Entity: d})
	s.changed()
	return d, nil
}

// DeleteDimension removes a dimension, strips its values from every
// submission and recomputes submission totals, aggregates and finals.
func (s *Store) DeleteDimension(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.dimensionIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: dimension %s", ErrNotFound, id)
	}
	s.state.Dimensions = append(s.state.Dimensions[:i], s.state.Dimensions[i+1:]...)

	for k := range s.state.Candidates {
		c := &s.state.Candidates[k]
		for n := range c.Scores {
			sc := &c.Scores[n]
			if _, ok := sc.DimensionScores[id]; !ok {
				continue
			}
			delete(sc.DimensionScores, id)
			sc.TotalScore = scoring.SubmissionTotal(sc.DimensionScores)
		}
	}
	moved := s.recomputeAll()

	s.emit(model.EventDimensionChanged, model.ChangePayload{Action: model.ActionDeleted, ID: id})
	s.emitCandidates(moved)
	s.changed()
	return nil
}

func checkDimension(d model.ScoringDimension) error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: dimension name is required", ErrInvalidInput)
	}
	if !finite(d.MaxScore) || d.MaxScore <= 0 {
		return fmt.Errorf("%w: dimension max score must be positive", ErrInvalidInput)
	}
	if !finite(d.Weight) || d.Weight < 0 {
		return fmt.Errorf("%w: dimension weight must not be negative", ErrInvalidInput)
	}
	return nil
}

func (s *Store) dimensionIndex(id string) int {
	for i := range s.state.Dimensions {
		if s.state.Dimensions[i].ID == id {
			return i
		}
	}
	return -1
}

// ScoreItems returns copies of all score items ordered by Order.
func (s *Store) ScoreItems() []model.ScoreItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]model.ScoreItem{}, s.state.ScoreItems...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// AddScoreItem registers a score item and recomputes every final score.
func (s *Store) AddScoreItem(it model.ScoreItem) (model.ScoreItem, error) {
	if err := checkScoreItem(it); err != nil {
		return model.ScoreItem{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if it.ID == "" {
		it.ID = s.newID()
	} else if s.scoreItemIndex(it.ID) >= 0 {
		return model.ScoreItem{}, fmt.Errorf("%w: score item %s exists", ErrConflict, it.ID)
	}
	if it.IsInterviewScore && s.interviewScoreItem() >= 0 {
		return model.ScoreItem{}, fmt.Errorf("%w: an interview score item already exists", ErrConflict)
	}
	s.state.ScoreItems = append(s.state.ScoreItems, it)
	moved := s.recomputeAll()

	s.emit(model.EventScoreItemChanged, model.ChangePayload{Action: model.ActionCreated, ID: it.ID, Entity: it})
	s.emitCandidates(moved)
	s.changed()
	return it, nil
}

// UpdateScoreItem replaces a score item and recomputes every final score.
func (s *Store) UpdateScoreItem(it model.ScoreItem) (model.ScoreItem, error) {
	if err := checkScoreItem(it); err != nil {
		return model.ScoreItem{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.scoreItemIndex(it.ID)
	if i < 0 {
		return model.ScoreItem{}, fmt.Errorf("%w: score item %s", ErrNotFound, it.ID)
	}
	if it.IsInterviewScore {
		if k := s.interviewScoreItem(); k >= 0 && k != i {
			return model.ScoreItem{}, fmt.Errorf("%w: an interview score item already exists", ErrConflict)
		}
	}
	s.state.ScoreItems[i] = it
	moved := s.recomputeAll()

	s.emit(model.EventScoreItemChanged, model.ChangePayload{Action: model.ActionUpdated, ID: it.ID, Entity: it})
	s.emitCandidates(moved)
	s.changed()
	return it, nil
}

// DeleteScoreItem removes a score item, strips the entered values that
// referenced it and recomputes every final score.
func (s *Store) DeleteScoreItem(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.scoreItemIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: score item %s", ErrNotFound, id)
	}
	s.state.ScoreItems = append(s.state.ScoreItems[:i], s.state.ScoreItems[i+1:]...)

	affected := make(map[int]struct{})
	for k := range s.state.Candidates {
		c := &s.state.Candidates[k]
		kept := c.OtherScores[:0]
		for _, o := range c.OtherScores {
			if o.ScoreItemID != id {
				kept = append(kept, o)
			}
		}
		if len(kept) != len(c.OtherScores) {
			affected[k] = struct{}{}
		}
		c.OtherScores = kept
	}
	for _, k := range s.recomputeAll() {
		affected[k] = struct{}{}
	}

	s.emit(model.EventScoreItemChanged, model.ChangePayload{Action: model.ActionDeleted, ID: id})
	s.emitCandidates(sortedKeys(affected))
	s.changed()
	return nil
}

// WeightSum returns the total weight of active score items.
func (s *Store) WeightSum() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return scoring.WeightSum(s.state.ScoreItems)
}

func checkScoreItem(it model.ScoreItem) error {
	if strings.TrimSpace(it.Name) == "" {
		return fmt.Errorf("%w: score item name is required", ErrInvalidInput)
	}
	if !finite(it.Weight) || it.Weight < 0 {
		return fmt.Errorf("%w: score item weight must not be negative", ErrInvalidInput)
	}
	if !finite(it.MaxScore) || it.MaxScore < 0 {
		return fmt.Errorf("%w: score item max score must not be negative", ErrInvalidInput)
	}
	// Entered values are bounded by MaxScore; the interview item is computed.
	if !it.IsInterviewScore && it.MaxScore == 0 {
		return fmt.Errorf("%w: score item %q needs a max score", ErrInvalidInput, it.Name)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (s *Store) scoreItemIndex(id string) int {
	for i := range s.state.ScoreItems {
		if s.state.ScoreItems[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) interviewScoreItem() int {
	for i := range s.state.ScoreItems {
		if s.state.ScoreItems[i].IsInterviewScore {
			return i
		}
	}
	return -1
}

// InterviewItems returns copies of all interview items ordered by Order.
func (s *Store) InterviewItems() []model.InterviewItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]model.InterviewItem{}, s.state.InterviewItems...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// AddInterviewItem registers a question or interview stage.
func (s *Store) AddInterviewItem(it model.InterviewItem) (model.InterviewItem, error) {
	if err := checkInterviewItem(&it); err != nil {
		return model.InterviewItem{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if it.ID == "" {
		it.ID = s.newID()
	} else if s.interviewItemIndex(it.ID) >= 0 {
		return model.InterviewItem{}, fmt.Errorf("%w: interview item %s exists", ErrConflict, it.ID)
	}
	s.state.InterviewItems = append(s.state.InterviewItems, it)
	s.emit(model.EventInterviewItemChanged, model.ChangePayload{Action: model.ActionCreated, ID: it.ID, Entity: it})
	s.changed()
	return it, nil
}

// UpdateInterviewItem replaces an interview item. The running timer of a
// current item is left alone.
func (s *Store) UpdateInterviewItem(it model.InterviewItem) (model.InterviewItem, error) {
	if err := checkInterviewItem(&it); err != nil {
		return model.InterviewItem{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.interviewItemIndex(it.ID)
	if i < 0 {
		return model.InterviewItem{}, fmt.Errorf("%w: interview item %s", ErrNotFound, it.ID)
	}
	s.state.InterviewItems[i] = it
	s.emit(model.EventInterviewItemChanged, model.ChangePayload{Action: model.ActionUpdated, ID: it.ID, Entity: it})
	s.changed()
	return it, nil
}

// DeleteInterviewItem removes an interview item and clears the session
// pointers and timer if it was current.
func (s *Store) DeleteInterviewItem(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.interviewItemIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: interview item %s", ErrNotFound, id)
	}
	s.state.InterviewItems = append(s.state.InterviewItems[:i], s.state.InterviewItems[i+1:]...)

	sess := &s.state.Session
	if sess.CurrentInterviewItemID == id {
		sess.CurrentInterviewItemID = ""
		sess.Timer = nil
		sess.UpdatedAt = s.now()
	}
	if sess.CurrentQuestionID == id {
		sess.CurrentQuestionID = ""
		sess.UpdatedAt = s.now()
	}
	s.emit(model.EventInterviewItemChanged, model.ChangePayload{Action: model.ActionDeleted, ID: id})
	s.changed()
	return nil
}

func checkInterviewItem(it *model.InterviewItem) error {
	if strings.TrimSpace(it.Title) == "" {
		return fmt.Errorf("%w: interview item title is required", ErrInvalidInput)
	}
	if it.Kind == "" {
		it.Kind = model.KindQuestion
	}
	if it.Kind != model.KindQuestion && it.Kind != model.KindInterviewStage {
		return fmt.Errorf("%w: interview item type %q", ErrInvalidInput, it.Kind)
	}
	if it.TimeLimit < 0 {
		return fmt.Errorf("%w: time limit must not be negative", ErrInvalidInput)
	}
	return nil
}

func (s *Store) interviewItemIndex(id string) int {
	for i := range s.state.InterviewItems {
		if s.state.InterviewItems[i].ID == id {
			return i
		}
	}
	return -1
}

func sortedKeys(m map[int]struct{}) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
