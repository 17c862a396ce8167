package repository

import (
	"fmt"
	"time"

	"github.com/okian/judgeboard/internal/domain/model"
)

// DefaultDocument is the dataset served when nothing usable is on disk:
// three judges, four dimensions summing to 100, an interview item worth 60%
// of the final score and a written test worth 40%.
func DefaultDocument(now time.Time, newID func() string) model.Document {
	now = now.UTC()
	st := model.State{
		Candidates:     []model.Candidate{},
		Judges:         []model.Judge{},
		Dimensions:     []model.ScoringDimension{},
		ScoreItems:     []model.ScoreItem{},
		InterviewItems: []model.InterviewItem{},
		Session: model.DisplaySession{
			CurrentStage: model.StageOpening,
			CurrentRound: 1,
			UpdatedAt:    now,
		},
	}

	for i := 1; i <= 3; i++ {
		st.Judges = append(st.Judges, model.Judge{
			ID:       newID(),
			Name:     fmt.Sprintf("Judge %d", i),
			Password: fmt.Sprintf("judge%d", i),
			IsActive: true,
		})
	}

	for i, d := range []struct {
		name, desc string
		max        float64
	}{
		{"Professional knowledge", "Depth and accuracy in the field", 30},
		{"Communication", "Clarity and structure of answers", 25},
		{"Reasoning", "Analysis and problem solving", 25},
		{"Presence", "Composure and adaptability", 20},
	} {
		st.Dimensions = append(st.Dimensions, model.ScoringDimension{
			ID:          newID(),
			Name:        d.name,
			Description: d.desc,
			MaxScore:    d.max,
			Weight:      d.max,
			Order:       i + 1,
			IsActive:    true,
		})
	}

	st.ScoreItems = append(st.ScoreItems,
		model.ScoreItem{ID: newID(), Name: "Interview", MaxScore: 100, Weight: 60, Order: 1, IsActive: true, IsInterviewScore: true},
		model.ScoreItem{ID: newID(), Name: "Written test", MaxScore: 100, Weight: 40, Order: 2, IsActive: true},
	)

	st.InterviewItems = append(st.InterviewItems,
		model.InterviewItem{ID: newID(), Kind: model.KindInterviewStage, Title: "Self introduction", TimeLimit: 180, Order: 1, IsActive: true},
		model.InterviewItem{ID: newID(), Kind: model.KindQuestion, Title: "Describe a project you led", TimeLimit: 300, Order: 2, IsActive: true},
		model.InterviewItem{ID: newID(), Kind: model.KindQuestion, Title: "How do you handle conflicting priorities?", TimeLimit: 240, Order: 3, IsActive: true},
		model.InterviewItem{ID: newID(), Kind: model.KindInterviewStage, Title: "Questions from the panel", Order: 4, IsActive: true},
	)

	for i, name := range []string{"Candidate A", "Candidate B", "Candidate C"} {
		st.Candidates = append(st.Candidates, model.Candidate{
			ID:          newID(),
			Number:      i + 1,
			Name:        name,
			Status:      model.StatusWaiting,
			Scores:      []model.Score{},
			OtherScores: []model.OtherScore{},
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	return model.Document{
		Version: model.SchemaVersion,
		SavedAt: now,
		Batches: []model.Batch{},
		State:   st,
	}
}
