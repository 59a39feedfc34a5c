// Package store is the read side of the event log: a thin adapter that
// turns a (device, day range) query into a bounded, newest-first slice of
// events regardless of which backend holds them.
package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"coinwatch/internal/telemetry"
)

// DefaultMaxResults caps a single query; excess rows are dropped oldest-first.
const DefaultMaxResults = 1000

// AllDevices is the device id that disables the device filter.
const AllDevices = "all"

// Filter is what a Source is asked for. Time bounds are half-open [From, To).
type Filter struct {
	DeviceID string
	From     *time.Time
	To       *time.Time
	Limit    int
}

// Source is a backend holding the append-only event log.
type Source interface {
	// FindEvents returns events matching f, newest first, at most f.Limit of them.
	FindEvents(ctx context.Context, f Filter) ([]telemetry.Event, error)
}

// Roster is the read-only device registry owned by device management.
type Roster interface {
	ListDevices(ctx context.Context) ([]telemetry.Device, error)
	// GetDevice returns telemetry.ErrDeviceNotFound for unknown ids.
	GetDevice(ctx context.Context, id string) (telemetry.Device, error)
}

// EventWriter appends to the event log (ingestion, seeding).
type EventWriter interface {
	AppendEvent(ctx context.Context, e telemetry.Event) error
}

// DeviceWriter maintains the roster (seeding, heartbeats).
type DeviceWriter interface {
	UpsertDevice(ctx context.Context, d telemetry.Device) error
	TouchDevice(ctx context.Context, id string, at time.Time, snapshot telemetry.Payload) error
}

// Adapter implements queryEvents on top of a Source.
type Adapter struct {
	src Source
	loc *time.Location
	max int
}

type Option func(*Adapter)

// WithLocation sets the location used to turn instants into calendar days.
func WithLocation(loc *time.Location) Option {
	return func(a *Adapter) {
		if loc != nil {
			a.loc = loc
		}
	}
}

// WithMaxResults overrides DefaultMaxResults.
func WithMaxResults(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.max = n
		}
	}
}

func NewAdapter(src Source, opts ...Option) *Adapter {
	a := &Adapter{src: src, loc: time.Local, max: DefaultMaxResults}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Location is the day-bucketing location of this adapter.
func (a *Adapter) Location() *time.Location { return a.loc }

// MaxResults is the result cap of this adapter.
func (a *Adapter) MaxResults() int { return a.max }

// QueryEvents returns events of deviceID (or every device for "" / "all")
// whose calendar day in the adapter's location falls inside rng (or all
// time for nil), newest first, truncated to the result cap.
func (a *Adapter) QueryEvents(ctx context.Context, deviceID string, rng *telemetry.DateRange) ([]telemetry.Event, error) {
	f := Filter{DeviceID: NormalizeDeviceID(deviceID), Limit: a.max}
	if rng != nil {
		if _, err := telemetry.NewDateRange(rng.Start, rng.End); err != nil {
			return nil, err
		}
		from, to := rng.Bounds(a.loc)
		f.From, f.To = &from, &to
	}

	events, err := a.src.FindEvents(ctx, f)
	if err != nil {
		var se *telemetry.StoreError
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, &telemetry.StoreError{Op: "query events", Err: err}
	}

	out := events[:0:0]
	for _, e := range events {
		if f.DeviceID != "" && e.DeviceID != f.DeviceID {
			continue
		}
		if rng != nil && !rng.Contains(telemetry.DateOf(e.Timestamp, a.loc)) {
			continue
		}
		out = append(out, e)
	}
	SortNewestFirst(out)
	if len(out) > a.max {
		out = out[:a.max]
	}
	return out, nil
}

// NormalizeDeviceID maps "all" and blanks to the empty (unfiltered) id.
func NormalizeDeviceID(id string) string {
	id = strings.TrimSpace(id)
	if strings.EqualFold(id, AllDevices) {
		return ""
	}
	return id
}

// SortNewestFirst orders by timestamp descending, ties broken by id.
func SortNewestFirst(events []telemetry.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].Timestamp.After(events[j].Timestamp)
		}
		return events[i].ID > events[j].ID
	})
}

// ParseRange parses the startDate/endDate query pair. Either bound blank
// means no range filter.
func ParseRange(start, end string) (*telemetry.DateRange, error) {
	return telemetry.ParseDateRange(start, end)
}
