// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/judgeboard/internal/domain/batch"
	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/domain/store"
	"github.com/okian/judgeboard/internal/domain/types"
)

const maxBodyBytes = 1 << 20

// Store is the part of the state store the collaborator API drives.
type Store interface {
	Snapshot() model.State
	Leaderboard() []types.Entry

	Candidate(id string) (model.Candidate, error)
	AddCandidate(c model.Candidate) (model.Candidate, error)
	UpdateCandidate(c model.Candidate) (model.Candidate, error)
	DeleteCandidate(id string) error
	SetCurrentCandidate(id string) (model.Candidate, error)
	CompleteCandidate(id string) (model.Candidate, error)
	SetOtherScore(candidateID, scoreItemID string, value float64) (model.Candidate, error)
	SubmitScore(candidateID, judgeID string, values map[string]float64) (model.Score, error)

	Authenticate(login, password string) (model.Judge, error)
	AddJudge(j model.Judge) (model.Judge, error)
	UpdateJudge(j model.Judge) (model.Judge, error)
	SetJudgeActive(id string, active bool) (model.Judge, error)
	DeleteJudge(id string) error

	Dimensions() []model.ScoringDimension
	AddDimension(d model.ScoringDimension) (model.ScoringDimension, error)
	UpdateDimension(d model.ScoringDimension) (model.ScoringDimension, error)
	DeleteDimension(id string) error
	ScoreItems() []model.ScoreItem
	AddScoreItem(it model.ScoreItem) (model.ScoreItem, error)
	UpdateScoreItem(it model.ScoreItem) (model.ScoreItem, error)
	DeleteScoreItem(id string) error
	InterviewItems() []model.InterviewItem
	AddInterviewItem(it model.InterviewItem) (model.InterviewItem, error)
	UpdateInterviewItem(it model.InterviewItem) (model.InterviewItem, error)
	DeleteInterviewItem(id string) error

	SetCurrentInterviewItem(id string) (model.DisplaySession, error)
	SetCurrentStage(stage string) (model.DisplaySession, error)
	SetCurrentRound(round int) (model.DisplaySession, error)
	StartTimer() (model.TimerState, error)
	PauseTimer() (model.TimerState, error)
	ResumeTimer() (model.TimerState, error)
	ResetTimer() (model.TimerState, error)
	SetTimerDuration(seconds int) (model.TimerState, error)
}

// Batches is the batch lifecycle surface.
type Batches interface {
	List() []model.Batch
	Get(id string) (model.Batch, error)
	Stats(id string) (model.BatchMetadata, error)
	Create(name, description string, cfg model.BatchConfig, candidates []model.Candidate) (model.Batch, error)
	CreateFromCurrent(name, description string) (model.Batch, error)
	Delete(id string) error
	Apply(ctx context.Context, id, action string) (model.Batch, error)
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the collaborator API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	stateHandler       *StateHandler
	leaderboardHandler *LeaderboardHandler
	candidateHandler   *CandidateHandler
	judgeHandler       *JudgeHandler
	catalogHandler     *CatalogHandler
	sessionHandler     *SessionHandler
	batchHandler       *BatchHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(st Store, batches Batches, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		stateHandler:       NewStateHandler(st, batches),
		leaderboardHandler: NewLeaderboardHandler(st, defaultMaxLimit),
		candidateHandler:   NewCandidateHandler(st),
		judgeHandler:       NewJudgeHandler(st),
		catalogHandler:     NewCatalogHandler(st),
		sessionHandler:     NewSessionHandler(st),
		batchHandler:       NewBatchHandler(batches),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(h, endpoint))
	}

	route("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	route("GET /stats", "stats", s.statsHandler.HandleStats)
	route("GET /api/state", "state", s.stateHandler.HandleGetState)
	route("GET /api/leaderboard", "leaderboard", s.leaderboardHandler.HandleGetLeaderboard)

	route("POST /api/scores", "scores", s.candidateHandler.HandleSubmitScore)
	route("POST /api/candidates", "candidates", s.candidateHandler.HandleCreate)
	route("GET /api/candidates/{id}", "candidates", s.candidateHandler.HandleGet)
	route("PUT /api/candidates/{id}", "candidates", s.candidateHandler.HandleUpdate)
	route("DELETE /api/candidates/{id}", "candidates", s.candidateHandler.HandleDelete)
	route("POST /api/candidates/{id}/current", "candidates", s.candidateHandler.HandleSetCurrent)
	route("POST /api/candidates/{id}/complete", "candidates", s.candidateHandler.HandleComplete)
	route("POST /api/candidates/{id}/other-scores", "candidates", s.candidateHandler.HandleOtherScore)

	route("POST /api/judges/login", "judges", s.judgeHandler.HandleLogin)
	route("POST /api/judges", "judges", s.judgeHandler.HandleCreate)
	route("PUT /api/judges/{id}", "judges", s.judgeHandler.HandleUpdate)
	route("POST /api/judges/{id}/active", "judges", s.judgeHandler.HandleSetActive)
	route("DELETE /api/judges/{id}", "judges", s.judgeHandler.HandleDelete)

	route("GET /api/dimensions", "dimensions", s.catalogHandler.HandleListDimensions)
	route("POST /api/dimensions", "dimensions", s.catalogHandler.HandleCreateDimension)
	route("PUT /api/dimensions/{id}", "dimensions", s.catalogHandler.HandleUpdateDimension)
	route("DELETE /api/dimensions/{id}", "dimensions", s.catalogHandler.HandleDeleteDimension)
	route("GET /api/score-items", "score_items", s.catalogHandler.HandleListScoreItems)
	route("POST /api/score-items", "score_items", s.catalogHandler.HandleCreateScoreItem)
	route("PUT /api/score-items/{id}", "score_items", s.catalogHandler.HandleUpdateScoreItem)
	route("DELETE /api/score-items/{id}", "score_items", s.catalogHandler.HandleDeleteScoreItem)
	route("GET /api/interview-items", "interview_items", s.catalogHandler.HandleListInterviewItems)
	route("POST /api/interview-items", "interview_items", s.catalogHandler.HandleCreateInterviewItem)
	route("PUT /api/interview-items/{id}", "interview_items", s.catalogHandler.HandleUpdateInterviewItem)
	route("DELETE /api/interview-items/{id}", "interview_items", s.catalogHandler.HandleDeleteInterviewItem)
	route("POST /api/interview-items/{id}/current", "interview_items", s.sessionHandler.HandleSetInterviewItem)

	route("POST /api/session/stage", "session", s.sessionHandler.HandleSetStage)
	route("POST /api/session/round", "session", s.sessionHandler.HandleSetRound)
	route("POST /api/timer/{action}", "timer", s.sessionHandler.HandleTimer)

	route("GET /api/batches", "batches", s.batchHandler.HandleList)
	route("POST /api/batches", "batches", s.batchHandler.HandleCreate)
	route("GET /api/batches/{id}", "batches", s.batchHandler.HandleGet)
	route("GET /api/batches/{id}/stats", "batches", s.batchHandler.HandleStats)
	route("POST /api/batches/{id}/{action}", "batches", s.batchHandler.HandleTransition)
	route("DELETE /api/batches/{id}", "batches", s.batchHandler.HandleDelete)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps domain sentinels onto status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, batch.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrBodyTooBig):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, store.ErrInvalidInput), errors.Is(err, batch.ErrInvalidInput), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, store.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrNoTimer),
		errors.Is(err, batch.ErrConflict), errors.Is(err, batch.ErrInvalidTransition):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return ErrBodyTooBig
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", ErrBadRequest)
		}
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}
