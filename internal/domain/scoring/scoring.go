// Package scoring holds the aggregation math behind candidate totals.
package scoring

import (
	"fmt"
	"math"

	"github.com/okian/judgeboard/internal/domain/model"
)

// Round rounds half away from zero.
func Round(v float64) int {
	return int(math.Round(v))
}

// SubmissionTotal is the plain sum of one submission's dimension values.
// Dimension weights do not apply here.
func SubmissionTotal(values map[string]float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum
}

// ValidateSubmission checks every value against the active dimensions.
func ValidateSubmission(values map[string]float64, dims []model.ScoringDimension) error {
	if len(values) == 0 {
		return ErrEmptySubmission
	}
	byID := make(map[string]model.ScoringDimension, len(dims))
	for _, d := range dims {
		if d.IsActive {
			byID[d.ID] = d
		}
	}
	for id, v := range values {
		d, ok := byID[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownDimension, id)
		}
		if math.IsNaN(v) || v < 0 || (d.MaxScore > 0 && v > d.MaxScore) {
			return fmt.Errorf("%w: %s=%v (max %v)", ErrOutOfRange, id, v, d.MaxScore)
		}
	}
	return nil
}

// InterviewAggregate is round(mean of the round's submission totals), or 0
// when nobody has scored the round.
func InterviewAggregate(scores []model.Score, round int) int {
	var (
		sum float64
		n   int
	)
	for _, s := range scores {
		if s.Round != round {
			continue
		}
		sum += s.TotalScore
		n++
	}
	if n == 0 {
		return 0
	}
	return Round(sum / float64(n))
}

// FinalScore is round(Σ value × weight/100) over active score items. The
// interview item takes interview; other items take the matching entered
// value or 0. Weights are used as given, without normalizing to 100.
func FinalScore(items []model.ScoreItem, interview int, other []model.OtherScore) int {
	entered := make(map[string]float64, len(other))
	for _, o := range other {
		entered[o.ScoreItemID] = o.Value
	}
	var sum float64
	for _, it := range items {
		if !it.IsActive {
			continue
		}
		v := entered[it.ID]
		if it.IsInterviewScore {
			v = float64(interview)
		}
		sum += v * it.Weight / 100
	}
	return Round(sum)
}

// WeightSum returns the total weight of active score items. A result other
// than 100 is tolerated by FinalScore; callers may surface it as a warning.
func WeightSum(items []model.ScoreItem) float64 {
	var sum float64
	for _, it := range items {
		if it.IsActive {
			sum += it.Weight
		}
	}
	return sum
}

// Recompute refreshes a candidate's derived totals for round in place.
func Recompute(c *model.Candidate, items []model.ScoreItem, round int) {
	c.TotalScore = InterviewAggregate(c.Scores, round)
	c.FinalScore = FinalScore(items, c.TotalScore, c.OtherScores)
}
