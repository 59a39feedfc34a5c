// Package api is the HTTP surface of the report service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"coinwatch/internal/interval"
	"coinwatch/internal/logs"
	"coinwatch/internal/middleware"
	"coinwatch/internal/models"
	"coinwatch/internal/reporting"
	"coinwatch/internal/store"
	"coinwatch/internal/telemetry"

	"github.com/gorilla/mux"
)

type HTTP struct {
	svc        *reporting.Service
	roster     store.Roster
	selections *interval.Registry
}

func NewHTTP(svc *reporting.Service, roster store.Roster, selections *interval.Registry) *HTTP {
	return &HTTP{svc: svc, roster: roster, selections: selections}
}

func (h *HTTP) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()

	// reports
	api.HandleFunc("/reports", h.listReports).Methods(http.MethodGet)
	api.HandleFunc("/reports/export", h.exportReports).Methods(http.MethodGet)
	api.HandleFunc("/analytics", h.analytics).Methods(http.MethodGet)

	// roster
	api.HandleFunc("/devices", h.listDevices).Methods(http.MethodGet)
	api.HandleFunc("/devices/{id}", h.getDevice).Methods(http.MethodGet)

	// interval selection sessions
	api.HandleFunc("/selections", h.createSelection).Methods(http.MethodPost)
	api.HandleFunc("/selections/{id}", h.getSelection).Methods(http.MethodGet)
	api.HandleFunc("/selections/{id}", h.deleteSelection).Methods(http.MethodDelete)
	api.HandleFunc("/selections/{id}/pick", h.pickDate).Methods(http.MethodPost)
	api.HandleFunc("/selections/{id}/confirm", h.confirmSelection).Methods(http.MethodPost)
	api.HandleFunc("/selections/{id}/clear", h.clearSelection).Methods(http.MethodPost)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *telemetry.ValidationError
	switch {
	case errors.As(err, &ve):
		models.WriteProblem(w, http.StatusBadRequest, "Invalid request", ve.Error(), map[string]string{"field": ve.Field})
	case errors.Is(err, telemetry.ErrDeviceNotFound):
		models.WriteProblem(w, http.StatusNotFound, "Not found", "device not found", nil)
	case errors.Is(err, reporting.ErrNoData):
		models.WriteProblem(w, http.StatusNotFound, "No data", "no data for the selected device and range", nil)
	case errors.Is(err, interval.ErrSessionNotFound):
		models.WriteProblem(w, http.StatusNotFound, "Not found", "selection not found", nil)
	case telemetry.IsStore(err):
		models.WriteProblem(w, http.StatusServiceUnavailable, "Store unavailable", "the event store could not be reached", nil)
	default:
		logs.WithRequest(middleware.RequestIDFrom(r.Context())).WithError(err).Error("unhandled error")
		models.WriteProblem(w, http.StatusInternalServerError, "Internal error", "unexpected server error", nil)
	}
}
