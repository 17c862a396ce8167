package model

import "time"

// BatchStatus is a batch lifecycle state.
type BatchStatus string

const (
	BatchDraft     BatchStatus = "draft"
	BatchActive    BatchStatus = "active"
	BatchPaused    BatchStatus = "paused"
	BatchCompleted BatchStatus = "completed"
)

// JudgeTemplate is a judge without an assigned id.
type JudgeTemplate struct {
	Name     string `json:"name"`
	Password string `json:"password,omitempty"`
	IsActive bool   `json:"isActive"`
}

// DimensionTemplate is a scoring dimension without an assigned id.
type DimensionTemplate struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	MaxScore    float64 `json:"maxScore"`
	Weight      float64 `json:"weight"`
	Order       int     `json:"order"`
	IsActive    bool    `json:"isActive"`
}

// ScoreItemTemplate is a score item without an assigned id.
type ScoreItemTemplate struct {
	Name             string  `json:"name"`
	MaxScore         float64 `json:"maxScore"`
	Weight           float64 `json:"weight"`
	Order            int     `json:"order"`
	IsActive         bool    `json:"isActive"`
	IsInterviewScore bool    `json:"isInterviewScore"`
}

// InterviewItemTemplate is an interview item without an assigned id.
type InterviewItemTemplate struct {
	Kind      InterviewItemKind `json:"type"`
	Title     string            `json:"title"`
	Content   string            `json:"content,omitempty"`
	TimeLimit int               `json:"timeLimit,omitempty"`
	Order     int               `json:"order"`
	IsActive  bool              `json:"isActive"`
}

// BatchConfig is immutable once the batch is created.
type BatchConfig struct {
	Judges         []JudgeTemplate         `json:"judges"`
	Dimensions     []DimensionTemplate     `json:"dimensions"`
	ScoreItems     []ScoreItemTemplate     `json:"scoreItems"`
	InterviewItems []InterviewItemTemplate `json:"interviewItems"`
}

// BatchMetadata is derived from the runtime candidates on demand.
type BatchMetadata struct {
	CandidateCount int     `json:"candidateCount"`
	CompletedCount int     `json:"completedCount"`
	AverageScore   float64 `json:"averageScore"`
}

// BatchRuntime is the living part of a batch. The materialized entities are
// filled on first start so a resumed batch gets back the same ids its
// scores refer to.
type BatchRuntime struct {
	Candidates []Candidate    `json:"candidates"`
	Session    DisplaySession `json:"session"`
	Metadata   BatchMetadata  `json:"metadata"`

	Judges         []Judge            `json:"judges,omitempty"`
	Dimensions     []ScoringDimension `json:"dimensions,omitempty"`
	ScoreItems     []ScoreItem        `json:"scoreItems,omitempty"`
	InterviewItems []InterviewItem    `json:"interviewItems,omitempty"`
}

// State returns the runtime as a full store state.
func (r BatchRuntime) State() State {
	return State{
		Candidates:     r.Candidates,
		Judges:         r.Judges,
		Dimensions:     r.Dimensions,
		ScoreItems:     r.ScoreItems,
		InterviewItems: r.InterviewItems,
		Session:        r.Session,
	}.Clone()
}

// RuntimeFromState captures a store state into a runtime, keeping the
// previous metadata.
func RuntimeFromState(s State, meta BatchMetadata) BatchRuntime {
	s = s.Clone()
	return BatchRuntime{
		Candidates:     s.Candidates,
		Session:        s.Session,
		Metadata:       meta,
		Judges:         s.Judges,
		Dimensions:     s.Dimensions,
		ScoreItems:     s.ScoreItems,
		InterviewItems: s.InterviewItems,
	}
}

// Batch is a named configuration plus its runtime session.
type Batch struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Status      BatchStatus  `json:"status"`
	Config      BatchConfig  `json:"config"`
	Runtime     BatchRuntime `json:"runtime"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	StartedAt   *time.Time   `json:"startedAt,omitempty"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
}

// Clone returns a deep copy.
func (b Batch) Clone() Batch {
	out := b
	out.Config = BatchConfig{
		Judges:         append([]JudgeTemplate{}, b.Config.Judges...),
		Dimensions:     append([]DimensionTemplate{}, b.Config.Dimensions...),
		ScoreItems:     append([]ScoreItemTemplate{}, b.Config.ScoreItems...),
		InterviewItems: append([]InterviewItemTemplate{}, b.Config.InterviewItems...),
	}
	out.Runtime = RuntimeFromState(b.Runtime.State(), b.Runtime.Metadata)
	if b.StartedAt != nil {
		t := *b.StartedAt
		out.StartedAt = &t
	}
	if b.CompletedAt != nil {
		t := *b.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// SchemaVersion is the current on-disk document version.
const SchemaVersion = 2

// Document is the versioned persistence unit: live state plus batches.
// LiveBatchID names the batch the live state belongs to, which may be a
// paused one.
type Document struct {
	Version       int       `json:"version"`
	SavedAt       time.Time `json:"savedAt"`
	ActiveBatchID string    `json:"activeBatchId,omitempty"`
	LiveBatchID   string    `json:"liveBatchId,omitempty"`
	Batches       []Batch   `json:"batches"`
	State         State     `json:"state"`
}
