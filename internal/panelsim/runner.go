package panelsim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// ErrNothingToScore is returned when the server has no active judges,
// candidates or dimensions to simulate with.
var ErrNothingToScore = errors.New("nothing to score")

// Run executes a complete simulation and returns its statistics.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.GetOr(logger.NewNop()).Named("panelsim")

	log.Info(ctx, "starting panel simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("judges", config.Judges),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout))

	api := newHTTPClient(config.BaseURL, config.Timeout)

	// Step 1: Check service health
	if err := api.Get(ctx, "/healthz", nil); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Read the live state and pick the panel
	st, err := api.state(ctx)
	if err != nil {
		return stats, fmt.Errorf("state retrieval failed: %w", err)
	}
	judges := activeJudges(st.Judges, config.Judges)
	if len(judges) == 0 || len(st.Candidates) == 0 || len(st.Dimensions) == 0 {
		return stats, fmt.Errorf("%w: %d judges, %d candidates, %d dimensions",
			ErrNothingToScore, len(judges), len(st.Candidates), len(st.Dimensions))
	}
	stats.JudgesSeated = len(judges)
	stats.Candidates = len(st.Candidates)

	// Step 3: Seat the panel
	ids := make([]string, len(judges))
	for i, j := range judges {
		ids[i] = j.ID
	}
	p, err := seatPanel(ctx, api.socketURL(), ids, config.Timeout)
	if err != nil {
		return stats, fmt.Errorf("panel seating failed: %w", err)
	}
	defer func() { _ = p.close() }()

	// Step 4: Generate and submit scores
	subs := generateSubmissions(judges, st.Candidates, st.Dimensions)
	stats.Failed = p.submitAll(ctx, subs, config.Workers, config.Verbose)
	stats.Submitted = len(subs) - stats.Failed

	// Step 5: Wait for acknowledgements
	settle := config.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}
	if !p.settle(ctx, stats.Submitted, settle) {
		log.Warn(ctx, "not every submission was acknowledged", logger.Duration("settle", settle))
	}
	stats.Accepted = int(p.accepted.Load())
	stats.Rejected = int(p.rejected.Load())
	stats.BroadcastsSeen = int(p.broadcasts.Load())

	// Step 6: Fetch the leaderboard and verify it
	board, err := api.leaderboard(ctx)
	if err != nil {
		return stats, fmt.Errorf("leaderboard retrieval failed: %w", err)
	}
	stats.LeaderboardEntries = len(board)
	if err := verifyResults(ctx, board, ids, config.Verbose); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}

	// Step 7: Save submissions to file
	if config.OutputFile != "" {
		if err := saveSubmissions(config.OutputFile, subs); err != nil {
			log.Warn(ctx, "failed to save submissions", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)
	return stats, nil
}

// activeJudges returns up to limit active judges; limit 0 means all.
func activeJudges(all []model.Judge, limit int) []model.Judge {
	out := make([]model.Judge, 0, len(all))
	for _, j := range all {
		if !j.IsActive {
			continue
		}
		out = append(out, j)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func saveSubmissions(filename string, subs []Submission) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(subs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal submissions: %w", err)
	}
	return os.WriteFile(filename, append(data, '\n'), filePermission)
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var acceptRate, perSecond float64
	if stats.Submitted > 0 {
		acceptRate = float64(stats.Accepted) / float64(stats.Submitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}

	log.Info(ctx, "final statistics",
		logger.Int("judges", stats.JudgesSeated),
		logger.Int("candidates", stats.Candidates),
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed),
		logger.Int("broadcastsSeen", stats.BroadcastsSeen),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.Duration("duration", stats.Duration),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("submissionsPerSecond", perSecond))
}
