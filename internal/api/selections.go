package api

import (
	"encoding/json"
	"net/http"

	"coinwatch/internal/interval"
	"coinwatch/internal/telemetry"

	"cloud.google.com/go/civil"
	"github.com/gorilla/mux"
)

type selectionView struct {
	ID string `json:"id"`
	interval.Snapshot
}

func (h *HTTP) createSelection(w http.ResponseWriter, _ *http.Request) {
	id, snap := h.selections.Create()
	writeJSON(w, http.StatusCreated, selectionView{ID: id, Snapshot: snap})
}

func (h *HTTP) getSelection(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	snap, err := h.selections.Get(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, selectionView{ID: id, Snapshot: snap})
}

func (h *HTTP) deleteSelection(w http.ResponseWriter, r *http.Request) {
	if !h.selections.Delete(mux.Vars(r)["id"]) {
		writeError(w, r, interval.ErrSessionNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) pickDate(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Date string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, r, &telemetry.ValidationError{Field: "body", Reason: "invalid json"})
		return
	}
	d, err := civil.ParseDate(in.Date)
	if err != nil {
		writeError(w, r, &telemetry.ValidationError{Field: "date", Reason: "expected YYYY-MM-DD"})
		return
	}
	h.apply(w, r, interval.Action{Kind: interval.Pick, Date: d})
}

func (h *HTTP) confirmSelection(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, interval.Action{Kind: interval.Confirm})
}

func (h *HTTP) clearSelection(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, interval.Action{Kind: interval.Clear})
}

func (h *HTTP) apply(w http.ResponseWriter, r *http.Request, a interval.Action) {
	id := mux.Vars(r)["id"]
	snap, err := h.selections.Do(id, a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, selectionView{ID: id, Snapshot: snap})
}
