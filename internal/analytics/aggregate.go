// Package analytics derives fleet metrics from an event sequence. Every
// function here is pure: same input multiset, same output.
package analytics

import (
	"math"
	"sort"
	"time"

	"coinwatch/internal/telemetry"

	"cloud.google.com/go/civil"
)

// DailyTotal is the sum of one field over one calendar day.
type DailyTotal struct {
	Date  civil.Date `json:"date"`
	Total float64    `json:"total"`
}

// Health partitions the roster by status.
type Health struct {
	Online            int `json:"online"`
	Offline           int `json:"offline"`
	Unknown           int `json:"unknown"`
	EfficiencyPercent int `json:"efficiencyPercent"`
}

// TotalOfField sums payload[key] over events; absent or non-numeric values count as 0.
func TotalOfField(events []telemetry.Event, key string) float64 {
	var sum float64
	for _, e := range events {
		sum += e.Payload.Number(key)
	}
	return sum
}

// DailyTotals groups by the calendar day of each timestamp in loc and
// returns one entry per day present in the input, ascending. Days without
// events are not filled in.
func DailyTotals(events []telemetry.Event, key string, loc *time.Location) []DailyTotal {
	if loc == nil {
		loc = time.Local
	}
	byDay := make(map[civil.Date]float64)
	for _, e := range events {
		d := telemetry.DateOf(e.Timestamp, loc)
		byDay[d] += e.Payload.Number(key)
	}
	out := make([]DailyTotal, 0, len(byDay))
	for d, total := range byDay {
		out = append(out, DailyTotal{Date: d, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// TotalsByDeviceType accumulates payload[key] per device type. Events whose
// device is not in the roster are skipped.
func TotalsByDeviceType(events []telemetry.Event, devices []telemetry.Device, key string) map[string]float64 {
	idx := telemetry.Index(devices)
	out := make(map[string]float64)
	for _, e := range events {
		d, ok := idx[e.DeviceID]
		if !ok {
			continue
		}
		out[d.Type] += e.Payload.Number(key)
	}
	return out
}

// TotalsByDevice accumulates payload[key] per device id, known or not.
func TotalsByDevice(events []telemetry.Event, key string) map[string]float64 {
	out := make(map[string]float64)
	for _, e := range events {
		out[e.DeviceID] += e.Payload.Number(key)
	}
	return out
}

// AveragePerDay is round(total / max(1, end - start in days)).
func AveragePerDay(total float64, start, end civil.Date) int64 {
	days := end.DaysSince(start)
	if days < 1 {
		days = 1
	}
	return round(total / float64(days))
}

// FleetHealth counts devices per status. Anything that is neither online
// nor offline is unknown.
func FleetHealth(devices []telemetry.Device) Health {
	var h Health
	for _, d := range devices {
		switch d.Status {
		case telemetry.StatusOnline:
			h.Online++
		case telemetry.StatusOffline:
			h.Offline++
		default:
			h.Unknown++
		}
	}
	if n := len(devices); n > 0 {
		h.EfficiencyPercent = int(round(float64(h.Online) / float64(n) * 100))
	}
	return h
}

// round is half-up rounding.
func round(x float64) int64 {
	return int64(math.Floor(x + 0.5))
}
