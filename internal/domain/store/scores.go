package store

import (
	"fmt"

	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/domain/scoring"
	"github.com/okian/judgeboard/pkg/metrics"
)

// SubmitScore records judgeID's submission for candidateID in the current
// round. A previous submission by the same judge for the same round is
// replaced. The candidate aggregate and final score are recomputed before
// score_updated is published.
func (s *Store) SubmitScore(candidateID, judgeID string, values map[string]float64) (model.Score, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	score, err := s.submitLocked(candidateID, judgeID, values)
	if err != nil {
		metrics.RecordScoreSubmission("rejected")
		return model.Score{}, err
	}
	metrics.RecordScoreSubmission("accepted")
	return score, nil
}

func (s *Store) submitLocked(candidateID, judgeID string, values map[string]float64) (model.Score, error) {
	ci := s.candidateIndex(candidateID)
	if ci < 0 {
		return model.Score{}, fmt.Errorf("%w: candidate %s", ErrNotFound, candidateID)
	}
	ji := s.judgeIndex(judgeID)
	if ji < 0 {
		return model.Score{}, fmt.Errorf("%w: judge %s", ErrNotFound, judgeID)
	}
	if !s.state.Judges[ji].IsActive {
		return model.Score{}, fmt.Errorf("%w: judge %s is disabled", ErrInvalidInput, judgeID)
	}
	if err := scoring.ValidateSubmission(values, s.state.Dimensions); err != nil {
		return model.Score{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	now := s.now()
	round := s.state.Session.CurrentRound
	score := model.Score{
		ID:              s.newID(),
		JudgeID:         judgeID,
		CandidateID:     candidateID,
		Round:           round,
		DimensionScores: make(map[string]float64, len(values)),
		TotalScore:      scoring.SubmissionTotal(values),
		SubmittedAt:     now,
	}
	for k, v := range values {
		score.DimensionScores[k] = v
	}

	c := &s.state.Candidates[ci]
	kept := c.Scores[:0]
	for _, prev := range c.Scores {
		if prev.JudgeID == judgeID && prev.Round == round {
			continue
		}
		kept = append(kept, prev)
	}
	c.Scores = append(kept, score)
	scoring.Recompute(c, s.state.ScoreItems, round)
	c.UpdatedAt = now

	s.emit(model.EventScoreUpdated, model.ScorePayload{Score: score.Clone(), Candidate: c.Clone()})
	s.changed()
	return score.Clone(), nil
}

// ScoresFor returns the current-round submissions for a candidate.
func (s *Store) ScoresFor(candidateID string) ([]model.Score, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.candidateIndex(candidateID)
	if i < 0 {
		return nil, fmt.Errorf("%w: candidate %s", ErrNotFound, candidateID)
	}
	round := s.state.Session.CurrentRound
	var out []model.Score
	for _, sc := range s.state.Candidates[i].Scores {
		if sc.Round == round {
			out = append(out, sc.Clone())
		}
	}
	return out, nil
}
