package panelsim

import (
	"context"
	"fmt"

	"github.com/okian/judgeboard/internal/domain/types"
	"github.com/okian/judgeboard/pkg/logger"
)

const topShown = 10

// verifyResults checks that the leaderboard is ordered and that every
// candidate carries a submission from each seated judge.
func verifyResults(ctx context.Context, board []types.Entry, judgeIDs []string, verbose bool) error {
	log := logger.GetOr(logger.NewNop()).Named("panelsim")

	if len(board) == 0 {
		return fmt.Errorf("empty leaderboard")
	}
	if err := verifyOrdering(board); err != nil {
		return err
	}
	for _, e := range board {
		if e.Judged < len(judgeIDs) {
			return fmt.Errorf("candidate %s has %d submissions, want at least %d", e.CandidateID, e.Judged, len(judgeIDs))
		}
	}

	n := min(topShown, len(board))
	for _, e := range board[:n] {
		log.Info(ctx, "leaderboard",
			logger.Int("rank", e.Rank),
			logger.Int("number", e.CandidateNumber),
			logger.String("name", e.Name),
			logger.Int("total", e.TotalScore),
			logger.Int("final", e.FinalScore))
	}
	if verbose {
		log.Info(ctx, "score statistics",
			logger.Float64("average", averageFinal(board)),
			logger.Int("maximum", board[0].FinalScore),
			logger.Int("minimum", board[len(board)-1].FinalScore))
	}
	return nil
}

// verifyOrdering checks that ranks run 1..n and final scores never rise.
func verifyOrdering(board []types.Entry) error {
	for i, e := range board {
		if e.Rank != i+1 {
			return fmt.Errorf("entry %d has rank %d", i, e.Rank)
		}
		if i > 0 && e.FinalScore > board[i-1].FinalScore {
			return fmt.Errorf("leaderboard not sorted: entry %d outscores entry %d", i, i-1)
		}
	}
	return nil
}

func averageFinal(board []types.Entry) float64 {
	if len(board) == 0 {
		return 0
	}
	sum := 0
	for _, e := range board {
		sum += e.FinalScore
	}
	return float64(sum) / float64(len(board))
}
