package model

import "time"

// CandidateStatus is the interview progress of a candidate.
type CandidateStatus string

const (
	StatusWaiting      CandidateStatus = "waiting"
	StatusInterviewing CandidateStatus = "interviewing"
	StatusCompleted    CandidateStatus = "completed"
)

// Valid reports whether s is a known status.
func (s CandidateStatus) Valid() bool {
	switch s {
	case StatusWaiting, StatusInterviewing, StatusCompleted:
		return true
	}
	return false
}

// Candidate is a person being interviewed. TotalScore and FinalScore are
// derived and recomputed by the store.
type Candidate struct {
	ID          string          `json:"id"`
	Number      int             `json:"number"`
	Name        string          `json:"name"`
	Department  string          `json:"department,omitempty"`
	Position    string          `json:"position,omitempty"`
	Status      CandidateStatus `json:"status"`
	Scores      []Score         `json:"scores"`
	OtherScores []OtherScore    `json:"otherScores"`
	TotalScore  int             `json:"totalScore"`
	FinalScore  int             `json:"finalScore"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Clone returns a deep copy.
func (c Candidate) Clone() Candidate {
	out := c
	out.Scores = make([]Score, len(c.Scores))
	for i, s := range c.Scores {
		out.Scores[i] = s.Clone()
	}
	out.OtherScores = append([]OtherScore(nil), c.OtherScores...)
	if out.OtherScores == nil {
		out.OtherScores = []OtherScore{}
	}
	return out
}

// Judge is a scoring participant. IsOnline mirrors live connections and is
// never trusted from disk.
type Judge struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Password string `json:"password,omitempty"`
	IsActive bool   `json:"isActive"`
	IsOnline bool   `json:"isOnline"`
}

// Public returns the judge without its credential.
func (j Judge) Public() Judge {
	j.Password = ""
	return j
}

// ScoringDimension is a sub-criterion judges score.
type ScoringDimension struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	MaxScore    float64 `json:"maxScore"`
	Weight      float64 `json:"weight"`
	Order       int     `json:"order"`
	IsActive    bool    `json:"isActive"`
}

// ScoreItem is a weighted component of the final score. The item flagged
// IsInterviewScore takes the candidate's interview aggregate.
type ScoreItem struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	MaxScore         float64 `json:"maxScore"`
	Weight           float64 `json:"weight"`
	Order            int     `json:"order"`
	IsActive         bool    `json:"isActive"`
	IsInterviewScore bool    `json:"isInterviewScore"`
}

// OtherScore is an externally entered value for a score item.
type OtherScore struct {
	ScoreItemID string  `json:"scoreItemId"`
	Value       float64 `json:"value"`
}

// Score is one judge's submission for one candidate in one round.
type Score struct {
	ID              string             `json:"id"`
	JudgeID         string             `json:"judgeId"`
	CandidateID     string             `json:"candidateId"`
	Round           int                `json:"round"`
	DimensionScores map[string]float64 `json:"dimensionScores"`
	TotalScore      float64            `json:"totalScore"`
	SubmittedAt     time.Time          `json:"submittedAt"`
}

// Clone returns a deep copy.
func (s Score) Clone() Score {
	out := s
	out.DimensionScores = make(map[string]float64, len(s.DimensionScores))
	for k, v := range s.DimensionScores {
		out.DimensionScores[k] = v
	}
	return out
}

// InterviewItemKind distinguishes questions from named stages.
type InterviewItemKind string

const (
	KindQuestion       InterviewItemKind = "question"
	KindInterviewStage InterviewItemKind = "interview_stage"
)

// InterviewItem is a selectable unit of interview flow. TimeLimit is in
// seconds; zero means no countdown.
type InterviewItem struct {
	ID        string            `json:"id"`
	Kind      InterviewItemKind `json:"type"`
	Title     string            `json:"title"`
	Content   string            `json:"content,omitempty"`
	TimeLimit int               `json:"timeLimit,omitempty"`
	Order     int               `json:"order"`
	IsActive  bool              `json:"isActive"`
}

// TimerState is an elapsed-time countdown. Durations are milliseconds and
// StartTime is milliseconds since the epoch; RemainingTime is only exact
// while the timer is stopped.
type TimerState struct {
	IsRunning     bool  `json:"isRunning"`
	IsPaused      bool  `json:"isPaused"`
	RemainingTime int64 `json:"remainingTime"`
	TotalTime     int64 `json:"totalTime"`
	StartTime     int64 `json:"startTime,omitempty"`
}

// Remaining returns the time left at now without mutating the timer.
func (t TimerState) Remaining(now time.Time) int64 {
	if !t.IsRunning {
		return t.RemainingTime
	}
	left := t.RemainingTime - (now.UnixMilli() - t.StartTime)
	if left < 0 {
		return 0
	}
	return left
}

// Stage names used by the display.
const (
	StageOpening   = "opening"
	StageInterview = "interview"
	StageScoring   = "scoring"
	StageResults   = "results"
)

// DisplaySession is what the public screen currently shows.
type DisplaySession struct {
	CurrentStage           string      `json:"currentStage"`
	CurrentRound           int         `json:"currentRound"`
	CurrentCandidateID     string      `json:"currentCandidateId,omitempty"`
	CurrentInterviewItemID string      `json:"currentInterviewItemId,omitempty"`
	CurrentQuestionID      string      `json:"currentQuestionId,omitempty"`
	Timer                  *TimerState `json:"timer,omitempty"`
	UpdatedAt              time.Time   `json:"updatedAt"`
}

// Clone returns a deep copy.
func (s DisplaySession) Clone() DisplaySession {
	out := s
	if s.Timer != nil {
		t := *s.Timer
		out.Timer = &t
	}
	return out
}

// State is the full set of live entities owned by the store.
type State struct {
	Candidates     []Candidate        `json:"candidates"`
	Judges         []Judge            `json:"judges"`
	Dimensions     []ScoringDimension `json:"dimensions"`
	ScoreItems     []ScoreItem        `json:"scoreItems"`
	InterviewItems []InterviewItem    `json:"interviewItems"`
	Session        DisplaySession     `json:"session"`
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := State{
		Candidates:     make([]Candidate, len(s.Candidates)),
		Judges:         append([]Judge{}, s.Judges...),
		Dimensions:     append([]ScoringDimension{}, s.Dimensions...),
		ScoreItems:     append([]ScoreItem{}, s.ScoreItems...),
		InterviewItems: append([]InterviewItem{}, s.InterviewItems...),
		Session:        s.Session.Clone(),
	}
	for i, c := range s.Candidates {
		out.Candidates[i] = c.Clone()
	}
	return out
}
