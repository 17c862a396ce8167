package api

import (
	"fmt"
	"net/http"

	"github.com/okian/judgeboard/internal/domain/model"
)

// SessionHandler handles the display session and the countdown timer.
type SessionHandler struct {
	store Store
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(st Store) *SessionHandler {
	return &SessionHandler{store: st}
}

type stageRequest struct {
	Stage string `json:"stage"`
}

type roundRequest struct {
	Round int `json:"round"`
}

type durationRequest struct {
	Seconds int `json:"seconds"`
}

// HandleSetStage handles POST /api/session/stage.
func (h *SessionHandler) HandleSetStage(w http.ResponseWriter, r *http.Request) {
	var req stageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	sess, err := h.store.SetCurrentStage(req.Stage)
	h.respond(w, sess, err)
}

// HandleSetRound handles POST /api/session/round.
func (h *SessionHandler) HandleSetRound(w http.ResponseWriter, r *http.Request) {
	var req roundRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	sess, err := h.store.SetCurrentRound(req.Round)
	h.respond(w, sess, err)
}

// HandleSetInterviewItem handles POST /api/interview-items/{id}/current.
func (h *SessionHandler) HandleSetInterviewItem(w http.ResponseWriter, r *http.Request) {
	sess, err := h.store.SetCurrentInterviewItem(r.PathValue("id"))
	h.respond(w, sess, err)
}

func (h *SessionHandler) respond(w http.ResponseWriter, sess model.DisplaySession, err error) {
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// HandleTimer handles POST /api/timer/{action} where action is start,
// pause, resume, reset or duration. duration takes {"seconds": n}.
func (h *SessionHandler) HandleTimer(w http.ResponseWriter, r *http.Request) {
	var (
		t   model.TimerState
		err error
	)
	switch action := r.PathValue("action"); action {
	case "start":
		t, err = h.store.StartTimer()
	case "pause":
		t, err = h.store.PauseTimer()
	case "resume":
		t, err = h.store.ResumeTimer()
	case "reset":
		t, err = h.store.ResetTimer()
	case "duration":
		var req durationRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeDomainError(w, err)
			return
		}
		t, err = h.store.SetTimerDuration(req.Seconds)
	default:
		writeError(w, http.StatusNotFound, "not_found", fmt.Errorf("unknown timer action %q", action))
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
