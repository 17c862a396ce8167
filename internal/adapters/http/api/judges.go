package api

import (
	"fmt"
	"net/http"

	"github.com/okian/judgeboard/internal/domain/model"
)

// JudgeHandler handles judge administration and login.
type JudgeHandler struct {
	store Store
}

// NewJudgeHandler creates a new judge handler.
func NewJudgeHandler(st Store) *JudgeHandler {
	return &JudgeHandler{store: st}
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// HandleLogin handles POST /api/judges/login. login is a judge id or name.
func (h *JudgeHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	j, err := h.store.Authenticate(req.Login, req.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j.Public())
}

// HandleCreate handles POST /api/judges.
func (h *JudgeHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var j model.Judge
	if err := decodeJSON(w, r, &j); err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := h.store.AddJudge(j)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out.Public())
}

// HandleUpdate handles PUT /api/judges/{id}. An empty password keeps the
// stored one.
func (h *JudgeHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var j model.Judge
	if err := decodeJSON(w, r, &j); err != nil {
		writeDomainError(w, err)
		return
	}
	j.ID = r.PathValue("id")
	out, err := h.store.UpdateJudge(j)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type activeRequest struct {
	IsActive *bool `json:"isActive"`
}

// HandleSetActive handles POST /api/judges/{id}/active.
func (h *JudgeHandler) HandleSetActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if req.IsActive == nil {
		writeDomainError(w, fmt.Errorf("%w: isActive is required", ErrBadRequest))
		return
	}
	out, err := h.store.SetJudgeActive(r.PathValue("id"), *req.IsActive)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleDelete handles DELETE /api/judges/{id}.
func (h *JudgeHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteJudge(r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
