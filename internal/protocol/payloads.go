package protocol

import (
	"fmt"
	"strings"
)

// Role is the class a connection belongs to.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDisplay Role = "display"
	RoleJudge   Role = "judge"
)

// Roles lists every role in a stable order.
var Roles = []Role{RoleAdmin, RoleDisplay, RoleJudge}

// ParseRole accepts a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleAdmin, RoleDisplay, RoleJudge:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

// Error codes carried in ErrorPayload.Code.
const (
	CodeMalformed    = "malformed"
	CodeUnknownEvent = "unknown_event"
	CodeInvalidRole  = "invalid_role"
	CodeUnauthorized = "unauthorized"
	CodeRejected     = "rejected"
	CodeUnsupported  = "unsupported"
)

// ErrorPayload is the data of a KindError envelope.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	ReplyTo string `json:"replyTo,omitempty"`
}

// ClientAuth is sent by a client right after connecting.
type ClientAuth struct {
	Type    string `json:"type"`
	JudgeID string `json:"judgeId,omitempty"`
}

// AuthSuccess acknowledges ClientAuth.
type AuthSuccess struct {
	ClientID string `json:"clientId"`
	Role     Role   `json:"role"`
	JudgeID  string `json:"judgeId,omitempty"`
}

// ConnectionEstablished is the first envelope a connection receives.
type ConnectionEstablished struct {
	ClientID string `json:"clientId"`
}

// ConnectionStatus summarizes connection churn since the previous summary.
type ConnectionStatus struct {
	Counts       map[Role]int `json:"counts"`
	Total        int          `json:"total"`
	OnlineJudges []string     `json:"onlineJudges"`
	Connected    int          `json:"connected"`
	Disconnected int          `json:"disconnected"`
}

// SubmitScore is a judge's score submission sent over the socket. JudgeID
// defaults to the judge bound to the connection.
type SubmitScore struct {
	CandidateID     string             `json:"candidateId"`
	JudgeID         string             `json:"judgeId,omitempty"`
	DimensionScores map[string]float64 `json:"dimensionScores"`
}

// ScoreAccepted acknowledges SubmitScore.
type ScoreAccepted struct {
	ScoreID     string  `json:"scoreId"`
	CandidateID string  `json:"candidateId"`
	TotalScore  float64 `json:"totalScore"`
	ReplyTo     string  `json:"replyTo,omitempty"`
}
