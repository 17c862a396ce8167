package api

import (
	"net/http"

	"github.com/okian/judgeboard/internal/domain/model"
)

// StateHandler serves the full live state for clients that (re)join.
type StateHandler struct {
	store   Store
	batches Batches
}

// NewStateHandler creates a new state handler.
func NewStateHandler(st Store, batches Batches) *StateHandler {
	return &StateHandler{store: st, batches: batches}
}

type stateResponse struct {
	model.State
	ActiveBatchID string `json:"activeBatchId,omitempty"`
}

// HandleGetState handles GET /api/state. Judge passwords are never served.
func (h *StateHandler) HandleGetState(w http.ResponseWriter, _ *http.Request) {
	st := h.store.Snapshot()
	for i, j := range st.Judges {
		st.Judges[i] = j.Public()
	}
	resp := stateResponse{State: st}
	for _, b := range h.batches.List() {
		if b.Status == model.BatchActive {
			resp.ActiveBatchID = b.ID
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
