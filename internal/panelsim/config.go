// Package panelsim drives a live panel against a running server: one socket
// client per judge scores every candidate while a display client watches the
// broadcast, then the leaderboard is checked against what was submitted.
package panelsim

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Judges     int           // Number of judges to seat; 0 seats every active judge
	Workers    int           // Number of concurrent submitters
	Timeout    time.Duration // HTTP request and connect timeout
	Settle     time.Duration // How long to wait for outstanding acknowledgements
	OutputFile string        // Where submissions are written; empty skips it
	Verbose    bool          // Enable verbose logging
}

// Submission is one judge's scores for one candidate.
type Submission struct {
	CandidateID     string             `json:"candidateId"`
	JudgeID         string             `json:"judgeId"`
	DimensionScores map[string]float64 `json:"dimensionScores"`
}

// Stats holds run statistics.
type Stats struct {
	JudgesSeated       int
	Candidates         int
	Submitted          int
	Accepted           int
	Rejected           int
	Failed             int
	BroadcastsSeen     int
	LeaderboardEntries int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
