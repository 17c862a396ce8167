package panelsim

import (
	"crypto/rand"
	"math"
	"math/big"

	"github.com/okian/judgeboard/internal/domain/model"
)

const randomFloatDivisor = 1000000

// Performer profiles as a share of each dimension's maximum.
var profiles = []struct{ min, span float64 }{
	{0.30, 0.40}, // average, most common
	{0.30, 0.40},
	{0.70, 0.20}, // strong
	{0.90, 0.10}, // exceptional
	{0.05, 0.25}, // weak
	{0.00, 1.00}, // erratic
}

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

func randomIndex(n int) int {
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// generateSubmissions gives every judge a submission for every candidate.
// Each candidate draws one profile so the judges roughly agree.
func generateSubmissions(judges []model.Judge, candidates []model.Candidate, dims []model.ScoringDimension) []Submission {
	out := make([]Submission, 0, len(judges)*len(candidates))
	for _, c := range candidates {
		p := profiles[randomIndex(len(profiles))]
		for _, j := range judges {
			values := make(map[string]float64, len(dims))
			for _, d := range dims {
				if !d.IsActive {
					continue
				}
				values[d.ID] = quantize((p.min+getRandomFloat()*p.span)*d.MaxScore, d.MaxScore)
			}
			out = append(out, Submission{CandidateID: c.ID, JudgeID: j.ID, DimensionScores: values})
		}
	}
	return out
}

// quantize rounds v to the score step and clamps it into [0, limit].
func quantize(v, limit float64) float64 {
	v = math.Round(v/scoreStep) * scoreStep
	return math.Min(math.Max(v, 0), limit)
}
