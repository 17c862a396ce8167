package api

import (
	"net/http"

	"github.com/okian/judgeboard/internal/domain/model"
)

// CandidateHandler handles candidate and score requests.
type CandidateHandler struct {
	store Store
}

// NewCandidateHandler creates a new candidate handler.
func NewCandidateHandler(st Store) *CandidateHandler {
	return &CandidateHandler{store: st}
}

type candidateResponse struct {
	model.Candidate
	Rank int `json:"rank,omitempty"`
}

type scoreRequest struct {
	CandidateID     string             `json:"candidateId"`
	JudgeID         string             `json:"judgeId"`
	DimensionScores map[string]float64 `json:"dimensionScores"`
}

type otherScoreRequest struct {
	ScoreItemID string  `json:"scoreItemId"`
	Value       float64 `json:"value"`
}

// HandleGet handles GET /api/candidates/{id}, including the leaderboard rank.
func (h *CandidateHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	c, err := h.store.Candidate(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := candidateResponse{Candidate: c}
	for _, e := range h.store.Leaderboard() {
		if e.CandidateID == id {
			resp.Rank = e.Rank
			break
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleCreate handles POST /api/candidates.
func (h *CandidateHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var c model.Candidate
	if err := decodeJSON(w, r, &c); err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := h.store.AddCandidate(c)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// HandleUpdate handles PUT /api/candidates/{id}.
func (h *CandidateHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var c model.Candidate
	if err := decodeJSON(w, r, &c); err != nil {
		writeDomainError(w, err)
		return
	}
	c.ID = r.PathValue("id")
	out, err := h.store.UpdateCandidate(c)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleDelete handles DELETE /api/candidates/{id}.
func (h *CandidateHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteCandidate(r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetCurrent handles POST /api/candidates/{id}/current.
func (h *CandidateHandler) HandleSetCurrent(w http.ResponseWriter, r *http.Request) {
	out, err := h.store.SetCurrentCandidate(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleComplete handles POST /api/candidates/{id}/complete.
func (h *CandidateHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	out, err := h.store.CompleteCandidate(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleOtherScore handles POST /api/candidates/{id}/other-scores.
func (h *CandidateHandler) HandleOtherScore(w http.ResponseWriter, r *http.Request) {
	var req otherScoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := h.store.SetOtherScore(r.PathValue("id"), req.ScoreItemID, req.Value)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleSubmitScore handles POST /api/scores, the HTTP twin of the
// submit_score socket event.
func (h *CandidateHandler) HandleSubmitScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	score, err := h.store.SubmitScore(req.CandidateID, req.JudgeID, req.DimensionScores)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}
