// Package seed fills an empty store with the sample fleet and a month of
// synthetic telemetry.
package seed

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"coinwatch/internal/store"
	"coinwatch/internal/telemetry"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

func numberFields(names ...string) []telemetry.Field {
	out := make([]telemetry.Field, 0, len(names)/2)
	for i := 0; i+1 < len(names); i += 2 {
		out = append(out, telemetry.Field{
			ID:        fmt.Sprint(len(out) + 1),
			Name:      names[i],
			Key:       names[i+1],
			ValueType: telemetry.TNumber,
			Required:  true,
		})
	}
	return out
}

// SampleDevices is the demo fleet: two claw machines, a token dispenser, an
// arcade cabinet and a ticket dispenser.
func SampleDevices() []telemetry.Device {
	grua := numberFields("Pesos", "pesos", "Coin", "coin", "Premios", "premios", "Banco", "banco")
	return []telemetry.Device{
		{ID: "ESP32_001", Name: "Máquina 1", Type: "grua", Locality: "Centro Comercial Plaza Norte", Fields: grua},
		{ID: "ESP32_002", Name: "Máquina 2", Type: "grua", Locality: "Mall del Sur", Fields: grua},
		{ID: "EXPENDEDORA_1", Name: "Expendedora 1", Type: "expendedora", Locality: "Centro Comercial Unicentro",
			Fields: numberFields("Fichas", "fichas", "Dinero", "dinero")},
		{ID: "Videojuego_1", Name: "Videojuego 1", Type: "videojuego", Locality: "Parque de Diversiones Central",
			Fields: numberFields("Coin", "coin")},
		{ID: "Ticket_1", Name: "Ticketera 1", Type: "ticketera", Locality: "Centro Comercial Santafé",
			Fields: numberFields("Coin", "coin", "Tickets", "tickets")},
	}
}

// Payload draws one synthetic reading for a device type.
func Payload(deviceType string, r *rand.Rand) telemetry.Payload {
	n := func(lo, span int) float64 { return float64(lo + r.IntN(span)) }
	switch deviceType {
	case "grua":
		return telemetry.Payload{"pesos": n(10, 50), "coin": n(1, 20), "premios": n(0, 5), "banco": n(-50, 200)}
	case "expendedora":
		return telemetry.Payload{"fichas": n(20, 100), "dinero": n(100, 500)}
	case "videojuego":
		return telemetry.Payload{"coin": n(1, 15)}
	case "ticketera":
		return telemetry.Payload{"coin": n(1, 10), "tickets": n(10, 50)}
	}
	return telemetry.Payload{}
}

type Options struct {
	Days   int // days of history ending yesterday; default 30
	Now    time.Time
	Loc    *time.Location
	Seed   uint64
	Events bool // false registers devices only
}

type Result struct {
	Devices int
	Events  int
}

// Run upserts SampleDevices and, if asked, 5 to 15 events per device per day.
func Run(ctx context.Context, dw store.DeviceWriter, ew store.EventWriter, o Options) (Result, error) {
	if o.Days <= 0 {
		o.Days = 30
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	if o.Loc == nil {
		o.Loc = time.Local
	}
	r := rand.New(rand.NewPCG(o.Seed, o.Seed^0x9e3779b97f4a7c15))

	var res Result
	devices := SampleDevices()
	for _, d := range devices {
		if err := dw.UpsertDevice(ctx, d); err != nil {
			return res, fmt.Errorf("seed device %s: %w", d.ID, err)
		}
		res.Devices++
	}
	if !o.Events {
		return res, nil
	}

	first := civil.DateOf(o.Now.In(o.Loc)).AddDays(-o.Days)
	for _, d := range devices {
		for day := 0; day < o.Days; day++ {
			date := first.AddDays(day)
			for i, n := 0, 5+r.IntN(11); i < n; i++ {
				ts := date.In(o.Loc).Add(time.Duration(r.IntN(24))*time.Hour + time.Duration(r.IntN(60))*time.Minute)
				e := telemetry.Event{
					ID:        uuid.NewString(),
					DeviceID:  d.ID,
					Timestamp: ts,
					Payload:   Payload(d.Type, r),
				}
				if err := ew.AppendEvent(ctx, e); err != nil {
					return res, fmt.Errorf("seed event for %s: %w", d.ID, err)
				}
				res.Events++
			}
		}
	}
	return res, nil
}
