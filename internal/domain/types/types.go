// Package types contains common types used across the application
package types

// Entry represents a leaderboard entry
type Entry struct {
	Rank            int    `json:"rank"`
	CandidateID     string `json:"candidateId"`
	CandidateNumber int    `json:"candidateNumber"`
	Name            string `json:"name"`
	Department      string `json:"department,omitempty"`
	Status          string `json:"status"`
	TotalScore      int    `json:"totalScore"`
	FinalScore      int    `json:"finalScore"`
	Judged          int    `json:"judged"`
}

// Stats is a point-in-time summary served on /stats.
type Stats struct {
	Candidates     int            `json:"candidates"`
	Completed      int            `json:"completed"`
	Judges         int            `json:"judges"`
	JudgesOnline   int            `json:"judgesOnline"`
	Connections    map[string]int `json:"connections"`
	StreamClients  int            `json:"streamClients"`
	ActiveBatchID  string         `json:"activeBatchId,omitempty"`
	Batches        int            `json:"batches"`
	Dirty          bool           `json:"dirty"`
	LastFlush      string         `json:"lastFlush,omitempty"`
	LoadedFallback bool           `json:"loadedFallback"`
	WeightSum      float64        `json:"scoreItemWeightSum"`
	UptimeSeconds  float64        `json:"uptimeSeconds"`
}
