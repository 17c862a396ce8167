// Package model contains domain models passed between layers.
package model

import "time"

// EventType names a committed domain change. Values match the wire
// vocabulary so the router can forward them without translation.
type EventType string

const (
	EventScoreUpdated         EventType = "score_updated"
	EventCandidateChanged     EventType = "candidate_changed"
	EventStageChanged         EventType = "stage_changed"
	EventQuestionChanged      EventType = "question_changed"
	EventInterviewItemChanged EventType = "interview_item_changed"
	EventJudgeChanged         EventType = "judge_changed"
	EventDimensionChanged     EventType = "dimension_changed"
	EventScoreItemChanged     EventType = "score_item_changed"
	EventBatchChanged         EventType = "batch_changed"
	EventTimerChanged         EventType = "timer_changed"
)

// Change actions carried in ChangePayload.Action.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
	ActionReset   = "reset"
)

// Event is published on the domain bus after a mutation commits.
type Event struct {
	Type EventType
	Data any
	At   time.Time
}

// ChangePayload wraps an entity change for observers.
type ChangePayload struct {
	Action string `json:"action"`
	ID     string `json:"id"`
	Entity any    `json:"entity,omitempty"`
}

// ScorePayload is the data of score_updated.
type ScorePayload struct {
	Score     Score     `json:"score"`
	Candidate Candidate `json:"candidate"`
}

// SessionPayload is the data of stage, question, interview item and timer
// events.
type SessionPayload struct {
	Session DisplaySession `json:"session"`
	Item    *InterviewItem `json:"item,omitempty"`
}
