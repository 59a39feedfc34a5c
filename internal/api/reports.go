package api

import (
	"fmt"
	"net/http"

	"coinwatch/internal/reporting"
	"coinwatch/internal/telemetry"

	"github.com/gorilla/mux"
)

// query reads the shared report parameters. A selection id, when given,
// must name a confirmed interval and then replaces the date parameters.
func (h *HTTP) query(r *http.Request) (reporting.Query, error) {
	v := r.URL.Query()
	q := reporting.Query{
		DeviceID:  v.Get("deviceId"),
		StartDate: v.Get("startDate"),
		EndDate:   v.Get("endDate"),
		Period:    v.Get("period"),
		Field:     v.Get("field"),
	}
	if id := v.Get("selection"); id != "" {
		snap, err := h.selections.Get(id)
		if err != nil {
			return q, err
		}
		rng, ok := snap.Range()
		if !ok {
			return q, &telemetry.ValidationError{Field: "selection", Reason: "selection is not confirmed"}
		}
		q.Range = &rng
		q.StartDate, q.EndDate = rng.Start.String(), rng.End.String()
	}
	return q, nil
}

func (h *HTTP) listReports(w http.ResponseWriter, r *http.Request) {
	q, err := h.query(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	events, err := h.svc.Reports(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if events == nil {
		events = []telemetry.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *HTTP) exportReports(w http.ResponseWriter, r *http.Request) {
	q, err := h.query(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ex, err := h.svc.Export(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ex.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(ex.Body())
}

func (h *HTTP) analytics(w http.ResponseWriter, r *http.Request) {
	q, err := h.query(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.svc.Analytics(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *HTTP) listDevices(w http.ResponseWriter, r *http.Request) {
	ds, err := h.roster.ListDevices(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ds == nil {
		ds = []telemetry.Device{}
	}
	writeJSON(w, http.StatusOK, ds)
}

func (h *HTTP) getDevice(w http.ResponseWriter, r *http.Request) {
	d, err := h.roster.GetDevice(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
