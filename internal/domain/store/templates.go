package store

import (
	"fmt"
	"strings"

	"github.com/okian/judgeboard/internal/domain/model"
)

// CheckConfig applies the catalog rules of the Add* operations to a set of
// batch templates, so a batch cannot go live with entities the store would
// have refused one by one.
func CheckConfig(cfg model.BatchConfig) error {
	names := make(map[string]struct{}, len(cfg.Judges))
	for i, j := range cfg.Judges {
		name := strings.ToLower(strings.TrimSpace(j.Name))
		if name == "" {
			return fmt.Errorf("%w: judge %d: name is required", ErrInvalidInput, i+1)
		}
		if _, dup := names[name]; dup {
			return fmt.Errorf("%w: judge %q appears twice", ErrConflict, j.Name)
		}
		names[name] = struct{}{}
	}
	for i, d := range cfg.Dimensions {
		err := checkDimension(model.ScoringDimension{Name: d.Name, MaxScore: d.MaxScore, Weight: d.Weight})
		if err != nil {
			return fmt.Errorf("dimension %d: %w", i+1, err)
		}
	}
	interview := 0
	for i, it := range cfg.ScoreItems {
		err := checkScoreItem(model.ScoreItem{Name: it.Name, MaxScore: it.MaxScore, Weight: it.Weight, IsInterviewScore: it.IsInterviewScore})
		if err != nil {
			return fmt.Errorf("score item %d: %w", i+1, err)
		}
		if it.IsInterviewScore {
			interview++
		}
	}
	if interview > 1 {
		return fmt.Errorf("%w: %d interview score items, at most one is allowed", ErrConflict, interview)
	}
	for i, it := range cfg.InterviewItems {
		item := model.InterviewItem{Kind: it.Kind, Title: it.Title, TimeLimit: it.TimeLimit}
		if err := checkInterviewItem(&item); err != nil {
			return fmt.Errorf("interview item %d: %w", i+1, err)
		}
	}
	return nil
}
