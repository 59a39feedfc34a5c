package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"coinwatch/internal/interval"
	"coinwatch/internal/models"
	"coinwatch/internal/reporting"
	"coinwatch/internal/store"
	"coinwatch/internal/telemetry"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()
	ctx := context.Background()
	ms := store.NewMemStore(5 * time.Minute)

	require.NoError(t, ms.UpsertDevice(ctx, telemetry.Device{
		ID: "A", Name: "Grua A", Type: "grua",
		Fields: []telemetry.Field{
			{ID: "1", Name: "Coin", Key: "coin", ValueType: telemetry.TNumber},
			{ID: "2", Name: "Premios", Key: "premios", ValueType: telemetry.TNumber},
		},
	}))
	require.NoError(t, ms.UpsertDevice(ctx, telemetry.Device{ID: "B", Name: "Arcade", Type: "videojuego"}))
	for _, e := range []telemetry.Event{
		{ID: "1", DeviceID: "A", Timestamp: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), Payload: telemetry.Payload{"coin": 5.0}},
		{ID: "2", DeviceID: "A", Timestamp: time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC), Payload: telemetry.Payload{"coin": 3.0, "premios": 1.0}},
		{ID: "3", DeviceID: "B", Timestamp: time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC), Payload: telemetry.Payload{"coin": 2.0}},
	} {
		require.NoError(t, ms.AppendEvent(ctx, e))
	}

	svc := reporting.NewService(store.NewAdapter(ms, store.WithLocation(time.UTC)), ms, reporting.Options{})
	r := mux.NewRouter()
	NewHTTP(svc, ms, interval.NewRegistry(0)).RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestListReports(t *testing.T) {
	r := newTestRouter(t)

	rec := do(r, http.MethodGet, "/api/reports?deviceId=all", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var events []telemetry.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 3)
	assert.Equal(t, "2", events[0].ID)
	assert.Contains(t, rec.Body.String(), `"deviceId":"A"`)
	assert.Contains(t, rec.Body.String(), `"data":{`)

	rec = do(r, http.MethodGet, "/api/reports?deviceId=A&startDate=2024-01-02&endDate=2024-01-02", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "2", events[0].ID)

	rec = do(r, http.MethodGet, "/api/reports?startDate=2023-01-01&endDate=2023-01-02", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListReports_InvertedRangeIs400(t *testing.T) {
	r := newTestRouter(t)
	rec := do(r, http.MethodGet, "/api/reports?startDate=2024-02-01&endDate=2024-01-01", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var p models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "endDate", p.Extra["field"])
}

func TestListReports_MalformedLoneBoundIs400(t *testing.T) {
	rec := do(newTestRouter(t), http.MethodGet, "/api/reports?startDate=garbage&endDate=", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var p models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "startDate", p.Extra["field"])
}

func TestListReports_UnknownDeviceIsEmpty(t *testing.T) {
	rec := do(newTestRouter(t), http.MethodGet, "/api/reports?deviceId=Z", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestExport(t *testing.T) {
	r := newTestRouter(t)

	rec := do(r, http.MethodGet, "/api/reports/export?deviceId=A&startDate=2024-01-01&endDate=2024-01-02", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="reports_Grua A_2024-01-01_2024-01-02.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Timestamp,Coin,Premios\n02/01/2024 09:00:00,3,1\n01/01/2024 10:00:00,5,N/A", rec.Body.String())

	rec = do(r, http.MethodGet, "/api/reports/export?deviceId=A&startDate=2020-01-01&endDate=2020-01-01", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "no data")
}

func TestAnalytics(t *testing.T) {
	rec := do(newTestRouter(t), http.MethodGet, "/api/analytics?startDate=2024-01-01&endDate=2024-01-02&field=coin", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Total         float64            `json:"total"`
		AveragePerDay int64              `json:"averagePerDay"`
		ByType        map[string]float64 `json:"byType"`
		Daily         []struct {
			Date  string  `json:"date"`
			Total float64 `json:"total"`
		} `json:"daily"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 10.0, body.Total)
	assert.Equal(t, int64(10), body.AveragePerDay)
	assert.Equal(t, map[string]float64{"grua": 8, "videojuego": 2}, body.ByType)
	require.Len(t, body.Daily, 2)
	assert.Equal(t, "2024-01-01", body.Daily[0].Date)
	assert.Equal(t, 7.0, body.Daily[0].Total)

	rec = do(newTestRouter(t), http.MethodGet, "/api/analytics?period=forever", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDevices(t *testing.T) {
	r := newTestRouter(t)

	rec := do(r, http.MethodGet, "/api/devices", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var ds []telemetry.Device
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ds))
	require.Len(t, ds, 2)
	assert.Equal(t, telemetry.StatusUnknown, ds[0].Status)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/devices/A", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/devices/nope", "").Code)
}

func TestSelectionFlowDrivesReports(t *testing.T) {
	r := newTestRouter(t)

	rec := do(r, http.MethodPost, "/api/selections", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var sel struct {
		ID        string `json:"id"`
		State     string `json:"state"`
		Confirmed bool   `json:"confirmed"`
		Days      int    `json:"days"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sel))
	require.NotEmpty(t, sel.ID)
	base := "/api/selections/" + sel.ID

	// unconfirmed selection cannot drive a query
	do(r, http.MethodPost, base+"/pick", `{"date":"2024-01-02"}`)
	rec = do(r, http.MethodGet, "/api/reports?selection="+sel.ID, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	do(r, http.MethodPost, base+"/pick", `{"date":"2024-01-02"}`)
	rec = do(r, http.MethodPost, base+"/confirm", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sel))
	assert.Equal(t, "confirmed", sel.State)
	assert.Equal(t, 1, sel.Days)

	rec = do(r, http.MethodGet, "/api/reports?selection="+sel.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var events []telemetry.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "2", events[0].ID)

	rec = do(r, http.MethodPost, base+"/clear", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sel))
	assert.Equal(t, "empty", sel.State)

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, base, "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, base, "").Code)
}

func TestPick_BadDate(t *testing.T) {
	r := newTestRouter(t)
	rec := do(r, http.MethodPost, "/api/selections", "")
	var sel struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sel))

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/selections/"+sel.ID+"/pick", `{"date":"01/02/2024"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/selections/"+sel.ID+"/pick", `not json`).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/api/selections/missing/pick", `{"date":"2024-01-01"}`).Code)
}
