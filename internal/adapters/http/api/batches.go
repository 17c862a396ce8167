package api

import (
	"fmt"
	"net/http"

	"github.com/okian/judgeboard/internal/domain/batch"
	"github.com/okian/judgeboard/internal/domain/model"
)

// BatchHandler handles the batch lifecycle.
type BatchHandler struct {
	batches Batches
}

// NewBatchHandler creates a new batch handler.
func NewBatchHandler(batches Batches) *BatchHandler {
	return &BatchHandler{batches: batches}
}

// batchRequest creates a batch either from explicit templates or, with
// fromCurrent, from the live state's configuration and candidates.
type batchRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	FromCurrent bool              `json:"fromCurrent"`
	Config      model.BatchConfig `json:"config"`
	Candidates  []model.Candidate `json:"candidates"`
}

// HandleList handles GET /api/batches.
func (h *BatchHandler) HandleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.batches.List())
}

// HandleGet handles GET /api/batches/{id}.
func (h *BatchHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	b, err := h.batches.Get(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// HandleStats handles GET /api/batches/{id}/stats.
func (h *BatchHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	meta, err := h.batches.Stats(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// HandleCreate handles POST /api/batches.
func (h *BatchHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	var (
		b   model.Batch
		err error
	)
	if req.FromCurrent {
		b, err = h.batches.CreateFromCurrent(req.Name, req.Description)
	} else {
		b, err = h.batches.Create(req.Name, req.Description, req.Config, req.Candidates)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// HandleTransition handles POST /api/batches/{id}/{action}.
func (h *BatchHandler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	action := r.PathValue("action")
	switch action {
	case batch.ActionStart, batch.ActionPause, batch.ActionResume, batch.ActionComplete:
	default:
		writeError(w, http.StatusNotFound, "not_found", fmt.Errorf("unknown batch action %q", action))
		return
	}
	b, err := h.batches.Apply(r.Context(), r.PathValue("id"), action)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// HandleDelete handles DELETE /api/batches/{id}.
func (h *BatchHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.batches.Delete(r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
