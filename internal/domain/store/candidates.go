package store

import (
	"fmt"
	"sort"
	"strings"

	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/domain/scoring"
	"github.com/okian/judgeboard/internal/domain/types"
)

// Candidates returns copies of all candidates ordered by number.
func (s *Store) Candidates() []model.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Candidate, len(s.state.Candidates))
	for i, c := range s.state.Candidates {
		out[i] = c.Clone()
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// Candidate returns a copy of one candidate.
func (s *Store) Candidate(id string) (model.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.candidateIndex(id)
	if i < 0 {
		return model.Candidate{}, fmt.Errorf("%w: candidate %s", ErrNotFound, id)
	}
	return s.state.Candidates[i].Clone(), nil
}

// AddCandidate registers a waiting candidate. A zero Number takes the next
// free number; an empty ID is generated.
func (s *Store) AddCandidate(c model.Candidate) (model.Candidate, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return model.Candidate{}, fmt.Errorf("%w: candidate name is required", ErrInvalidInput)
	}
	if c.Number < 0 {
		return model.Candidate{}, fmt.Errorf("%w: candidate number %d", ErrInvalidInput, c.Number)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = s.newID()
	} else if s.candidateIndex(c.ID) >= 0 {
		return model.Candidate{}, fmt.Errorf("%w: candidate %s exists", ErrConflict, c.ID)
	}
	if c.Number == 0 {
		c.Number = s.nextCandidateNumber()
	} else if s.candidateByNumber(c.Number) >= 0 {
		return model.Candidate{}, fmt.Errorf("%w: candidate number %d is taken", ErrConflict, c.Number)
	}

	now := s.now()
	c.Status = model.StatusWaiting
	c.Scores = []model.Score{}
	c.OtherScores = []model.OtherScore{}
	c.CreatedAt, c.UpdatedAt = now, now
	scoring.Recompute(&c, s.state.ScoreItems, s.state.Session.CurrentRound)

	s.state.Candidates = append(s.state.Candidates, c)
	s.emit(model.EventCandidateChanged, model.ChangePayload{Action: model.ActionCreated, ID: c.ID, Entity: c.Clone()})
	s.changed()
	return c.Clone(), nil
}

// UpdateCandidate replaces the descriptive fields of a candidate. Scores,
// status and derived totals are kept.
func (s *Store) UpdateCandidate(c model.Candidate) (model.Candidate, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return model.Candidate{}, fmt.Errorf("%w: candidate name is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.candidateIndex(c.ID)
	if i < 0 {
		return model.Candidate{}, fmt.Errorf("%w: candidate %s", ErrNotFound, c.ID)
	}
	if c.Number > 0 {
		if j := s.candidateByNumber(c.Number); j >= 0 && j != i {
			return model.Candidate{}, fmt.Errorf("%w: candidate number %d is taken", ErrConflict, c.Number)
		}
	}

	cur := &s.state.Candidates[i]
	cur.Name = c.Name
	cur.Department = c.Department
	cur.Position = c.Position
	if c.Number > 0 {
		cur.Number = c.Number
	}
	cur.UpdatedAt = s.now()
	s.emit(model.EventCandidateChanged, model.ChangePayload{Action: model.ActionUpdated, ID: cur.ID, Entity: cur.Clone()})
	s.changed()
	return cur.Clone(), nil
}

// DeleteCandidate removes a candidate and clears the current pointer if it
// referenced it.
func (s *Store) DeleteCandidate(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.candidateIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: candidate %s", ErrNotFound, id)
	}
	s.state.Candidates = append(s.state.Candidates[:i], s.state.Candidates[i+1:]...)
	if s.state.Session.CurrentCandidateID == id {
		s.state.Session.CurrentCandidateID = ""
		s.state.Session.UpdatedAt = s.now()
	}
	s.emit(model.EventCandidateChanged, model.ChangePayload{Action: model.ActionDeleted, ID: id})
	s.changed()
	return nil
}

// SetCurrentCandidate makes id the one interviewing candidate. A different
// candidate that was interviewing goes back to waiting and its change is
// published first.
func (s *Store) SetCurrentCandidate(id string) (model.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.candidateIndex(id)
	if i < 0 {
		return model.Candidate{}, fmt.Errorf("%w: candidate %s", ErrNotFound, id)
	}
	now := s.now()
	for j := range s.state.Candidates {
		prev := &s.state.Candidates[j]
		if j == i || prev.Status != model.StatusInterviewing {
			continue
		}
		prev.Status = model.StatusWaiting
		prev.UpdatedAt = now
		s.emit(model.EventCandidateChanged, model.ChangePayload{Action: model.ActionUpdated, ID: prev.ID, Entity: prev.Clone()})
	}

	cur := &s.state.Candidates[i]
	cur.Status = model.StatusInterviewing
	cur.UpdatedAt = now
	s.state.Session.CurrentCandidateID = cur.ID
	s.state.Session.UpdatedAt = now
	s.emit(model.EventCandidateChanged, model.ChangePayload{Action: model.ActionUpdated, ID: cur.ID, Entity: cur.Clone()})
	s.changed()
	return cur.Clone(), nil
}

// CompleteCandidate marks a candidate completed.
func (s *Store) CompleteCandidate(id string) (model.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.candidateIndex(id)
	if i < 0 {
		return model.Candidate{}, fmt.Errorf("%w: candidate %s", ErrNotFound, id)
	}
	now := s.now()
	c := &s.state.Candidates[i]
	c.Status = model.StatusCompleted
	c.UpdatedAt = now
	if s.state.Session.CurrentCandidateID == id {
		s.state.Session.CurrentCandidateID = ""
		s.state.Session.UpdatedAt = now
	}
	s.emit(model.EventCandidateChanged, model.ChangePayload{Action: model.ActionUpdated, ID: c.ID, Entity: c.Clone()})
	s.changed()
	return c.Clone(), nil
}

// ResetCandidateScores drops every score and entered value of a candidate.
func (s *Store) ResetCandidateScores(id string) (model.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.candidateIndex(id)
	if i < 0 {
		return model.Candidate{}, fmt.Errorf("%w: candidate %s", ErrNotFound, id)
	}
	c := &s.state.Candidates[i]
	c.Scores = []model.Score{}
	c.OtherScores = []model.OtherScore{}
	if c.Status == model.StatusCompleted {
		c.Status = model.StatusWaiting
	}
	scoring.Recompute(c, s.state.ScoreItems, s.state.Session.CurrentRound)
	c.UpdatedAt = s.now()
	s.emit(model.EventCandidateChanged, model.ChangePayload{Action: model.ActionReset, ID: c.ID, Entity: c.Clone()})
	s.changed()
	return c.Clone(), nil
}

// SetOtherScore records an externally entered value for a score item and
// recomputes the final score.
func (s *Store) SetOtherScore(candidateID, scoreItemID string, value float64) (model.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.candidateIndex(candidateID)
	if i < 0 {
		return model.Candidate{}, fmt.Errorf("%w: candidate %s", ErrNotFound, candidateID)
	}
	k := s.scoreItemIndex(scoreItemID)
	if k < 0 {
		return model.Candidate{}, fmt.Errorf("%w: score item %s", ErrNotFound, scoreItemID)
	}
	item := s.state.ScoreItems[k]
	if item.IsInterviewScore {
		return model.Candidate{}, fmt.Errorf("%w: %s is computed from judge scores", ErrInvalidInput, item.Name)
	}
	if !finite(value) || value < 0 || value > item.MaxScore {
		return model.Candidate{}, fmt.Errorf("%w: %v outside [0, %v]", ErrInvalidInput, value, item.MaxScore)
	}

	c := &s.state.Candidates[i]
	replaced := false
	for j := range c.OtherScores {
		if c.OtherScores[j].ScoreItemID == scoreItemID {
			c.OtherScores[j].Value = value
			replaced = true
		}
	}
	if !replaced {
		c.OtherScores = append(c.OtherScores, model.OtherScore{ScoreItemID: scoreItemID, Value: value})
	}
	c.FinalScore = scoring.FinalScore(s.state.ScoreItems, c.TotalScore, c.OtherScores)
	c.UpdatedAt = s.now()
	s.emit(model.EventCandidateChanged, model.ChangePayload{Action: model.ActionUpdated, ID: c.ID, Entity: c.Clone()})
	s.changed()
	return c.Clone(), nil
}

// CalculateFinalScore recomputes and returns a candidate's final score.
func (s *Store) CalculateFinalScore(candidateID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.candidateIndex(candidateID)
	if i < 0 {
		return 0, fmt.Errorf("%w: candidate %s", ErrNotFound, candidateID)
	}
	c := &s.state.Candidates[i]
	c.FinalScore = scoring.FinalScore(s.state.ScoreItems, c.TotalScore, c.OtherScores)
	return c.FinalScore, nil
}

func (s *Store) candidateIndex(id string) int {
	for i := range s.state.Candidates {
		if s.state.Candidates[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) candidateByNumber(n int) int {
	for i := range s.state.Candidates {
		if s.state.Candidates[i].Number == n {
			return i
		}
	}
	return -1
}

func (s *Store) nextCandidateNumber() int {
	highest := 0
	for _, c := range s.state.Candidates {
		if c.Number > highest {
			highest = c.Number
		}
	}
	return highest + 1
}

// recomputeAll refreshes every candidate's totals and returns the indexes
// whose totals moved.
func (s *Store) recomputeAll() []int {
	var moved []int
	for i := range s.state.Candidates {
		c := &s.state.Candidates[i]
		total, final := c.TotalScore, c.FinalScore
		scoring.Recompute(c, s.state.ScoreItems, s.state.Session.CurrentRound)
		if c.TotalScore != total || c.FinalScore != final {
			moved = append(moved, i)
		}
	}
	return moved
}

// emitCandidates publishes candidate_changed for each index. Caller holds s.mu.
func (s *Store) emitCandidates(idx []int) {
	now := s.now()
	for _, i := range idx {
		c := &s.state.Candidates[i]
		c.UpdatedAt = now
		s.emit(model.EventCandidateChanged, model.ChangePayload{Action: model.ActionUpdated, ID: c.ID, Entity: c.Clone()})
	}
}

func leaderboard(cands []model.Candidate, round int) []types.Entry {
	out := make([]types.Entry, 0, len(cands))
	for _, c := range cands {
		judged := 0
		for _, sc := range c.Scores {
			if sc.Round == round {
				judged++
			}
		}
		out = append(out, types.Entry{
			CandidateID:     c.ID,
			CandidateNumber: c.Number,
			Name:            c.Name,
			Department:      c.Department,
			Status:          string(c.Status),
			TotalScore:      c.TotalScore,
			FinalScore:      c.FinalScore,
			Judged:          judged,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FinalScore != out[j].FinalScore {
			return out[i].FinalScore > out[j].FinalScore
		}
		if out[i].TotalScore != out[j].TotalScore {
			return out[i].TotalScore > out[j].TotalScore
		}
		return out[i].CandidateNumber < out[j].CandidateNumber
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
