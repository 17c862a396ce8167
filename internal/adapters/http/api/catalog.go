package api

import (
	"net/http"

	"github.com/okian/judgeboard/internal/domain/model"
)

// CatalogHandler handles scoring dimensions, score items and interview
// items.
type CatalogHandler struct {
	store Store
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(st Store) *CatalogHandler {
	return &CatalogHandler{store: st}
}

func (h *CatalogHandler) HandleListDimensions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Dimensions())
}

func (h *CatalogHandler) HandleCreateDimension(w http.ResponseWriter, r *http.Request) {
	create(w, r, h.store.AddDimension)
}

func (h *CatalogHandler) HandleUpdateDimension(w http.ResponseWriter, r *http.Request) {
	update(w, r, h.store.UpdateDimension, func(d *model.ScoringDimension, id string) { d.ID = id })
}

func (h *CatalogHandler) HandleDeleteDimension(w http.ResponseWriter, r *http.Request) {
	remove(w, r, h.store.DeleteDimension)
}

func (h *CatalogHandler) HandleListScoreItems(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.store.ScoreItems())
}

func (h *CatalogHandler) HandleCreateScoreItem(w http.ResponseWriter, r *http.Request) {
	create(w, r, h.store.AddScoreItem)
}

func (h *CatalogHandler) HandleUpdateScoreItem(w http.ResponseWriter, r *http.Request) {
	update(w, r, h.store.UpdateScoreItem, func(it *model.ScoreItem, id string) { it.ID = id })
}

func (h *CatalogHandler) HandleDeleteScoreItem(w http.ResponseWriter, r *http.Request) {
	remove(w, r, h.store.DeleteScoreItem)
}

func (h *CatalogHandler) HandleListInterviewItems(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.store.InterviewItems())
}

func (h *CatalogHandler) HandleCreateInterviewItem(w http.ResponseWriter, r *http.Request) {
	create(w, r, h.store.AddInterviewItem)
}

func (h *CatalogHandler) HandleUpdateInterviewItem(w http.ResponseWriter, r *http.Request) {
	update(w, r, h.store.UpdateInterviewItem, func(it *model.InterviewItem, id string) { it.ID = id })
}

func (h *CatalogHandler) HandleDeleteInterviewItem(w http.ResponseWriter, r *http.Request) {
	remove(w, r, h.store.DeleteInterviewItem)
}

type catalogEntry interface {
	model.ScoringDimension | model.ScoreItem | model.InterviewItem
}

func create[T catalogEntry](w http.ResponseWriter, r *http.Request, add func(T) (T, error)) {
	var in T
	if err := decodeJSON(w, r, &in); err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := add(in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// update replaces an entry; the path id wins over any id in the body.
func update[T catalogEntry](w http.ResponseWriter, r *http.Request, put func(T) (T, error), setID func(*T, string)) {
	var in T
	if err := decodeJSON(w, r, &in); err != nil {
		writeDomainError(w, err)
		return
	}
	setID(&in, r.PathValue("id"))
	out, err := put(in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func remove(w http.ResponseWriter, r *http.Request, del func(string) error) {
	if err := del(r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
