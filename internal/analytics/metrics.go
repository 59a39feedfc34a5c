package analytics

import (
	"strings"
	"time"

	"coinwatch/internal/telemetry"

	"cloud.google.com/go/civil"
)

// DefaultPeriod is used when neither dates nor a period are given.
const DefaultPeriod = "7d"

var periodDays = map[string]int{
	"24h": 1,
	"7d":  7,
	"30d": 30,
	"90d": 90,
}

// PeriodRange turns a preset into [today - N days, today].
func PeriodRange(period string, today civil.Date) (telemetry.DateRange, error) {
	p := strings.ToLower(strings.TrimSpace(period))
	if p == "" {
		p = DefaultPeriod
	}
	n, ok := periodDays[p]
	if !ok {
		return telemetry.DateRange{}, &telemetry.ValidationError{Field: "period", Reason: "must be one of 24h|7d|30d|90d"}
	}
	return telemetry.DateRange{Start: today.AddDays(-n), End: today}, nil
}

// Metrics is the analytics bundle computed for one query.
type Metrics struct {
	Field         string               `json:"field"`
	Range         *telemetry.DateRange `json:"range,omitempty"`
	Events        int                  `json:"events"`
	Total         float64              `json:"total"`
	AveragePerDay int64                `json:"averagePerDay"`
	Daily         []DailyTotal         `json:"daily"`
	ByType        map[string]float64   `json:"byType"`
	ByDevice      map[string]float64   `json:"byDevice"`
	Fleet         Health               `json:"fleet"`
}

// Compute builds Metrics. With no range the average spans the first to the
// last event day; with no events it is 0.
func Compute(events []telemetry.Event, devices []telemetry.Device, key string, rng *telemetry.DateRange, loc *time.Location) Metrics {
	m := Metrics{
		Field:    key,
		Range:    rng,
		Events:   len(events),
		Total:    TotalOfField(events, key),
		Daily:    DailyTotals(events, key, loc),
		ByType:   TotalsByDeviceType(events, devices, key),
		ByDevice: TotalsByDevice(events, key),
		Fleet:    FleetHealth(devices),
	}
	if len(events) == 0 {
		return m
	}
	if rng != nil {
		m.AveragePerDay = AveragePerDay(m.Total, rng.Start, rng.End)
	} else {
		m.AveragePerDay = AveragePerDay(m.Total, m.Daily[0].Date, m.Daily[len(m.Daily)-1].Date)
	}
	return m
}
