// Package reporting answers report, analytics and export queries by running
// the event store adapter, the aggregation engine and the report formatter
// in sequence.
package reporting

import (
	"context"
	"errors"
	"strings"
	"time"

	"coinwatch/internal/analytics"
	"coinwatch/internal/logs"
	"coinwatch/internal/metrics"
	"coinwatch/internal/report"
	"coinwatch/internal/store"
	"coinwatch/internal/telemetry"

	"github.com/sirupsen/logrus"
)

// ErrNoData is returned by Export when the range holds no events.
var ErrNoData = errors.New("no data")

const DefaultField = "coin"

// Query is one caller request. Range, when set, wins over the date strings
// (it comes from a confirmed interval selection).
type Query struct {
	DeviceID  string
	StartDate string
	EndDate   string
	Period    string
	Field     string
	Range     *telemetry.DateRange
}

type Options struct {
	DefaultField    string
	TimestampLayout string
}

type Service struct {
	events       *store.Adapter
	roster       store.Roster
	formatter    report.Formatter
	defaultField string
	now          func() time.Time
}

func NewService(events *store.Adapter, roster store.Roster, o Options) *Service {
	if o.DefaultField == "" {
		o.DefaultField = DefaultField
	}
	return &Service{
		events:       events,
		roster:       roster,
		formatter:    report.Formatter{Layout: o.TimestampLayout, Loc: events.Location()},
		defaultField: o.DefaultField,
		now:          time.Now,
	}
}

// Export is a rendered CSV download.
type Export struct {
	Filename string
	Device   telemetry.Device
	Table    report.Table
}

func (e Export) Body() []byte { return []byte(e.Table.CSV()) }

// Reports returns raw events for the device (or all devices) and range,
// newest first and capped. It reads the event log only, so an unknown id
// yields an empty result and events of removed devices stay reachable.
func (s *Service) Reports(ctx context.Context, q Query) (events []telemetry.Event, err error) {
	started := time.Now()
	defer func() { s.observe("reports", started, len(events), err) }()

	rng, err := s.explicitRange(q)
	if err != nil {
		return nil, err
	}
	return s.events.QueryEvents(ctx, q.DeviceID, rng)
}

// Analytics computes the metrics bundle. Explicit dates win over the period
// preset; with neither, the default preset applies.
func (s *Service) Analytics(ctx context.Context, q Query) (m analytics.Metrics, err error) {
	started := time.Now()
	defer func() { s.observe("analytics", started, m.Events, err) }()

	rng, err := s.explicitRange(q)
	if err != nil {
		return analytics.Metrics{}, err
	}
	if rng == nil {
		today := telemetry.DateOf(s.now(), s.events.Location())
		r, err := analytics.PeriodRange(q.Period, today)
		if err != nil {
			return analytics.Metrics{}, err
		}
		rng = &r
	}

	devices, err := s.roster.ListDevices(ctx)
	if err != nil {
		return analytics.Metrics{}, err
	}
	events, err := s.events.QueryEvents(ctx, q.DeviceID, rng)
	if err != nil {
		return analytics.Metrics{}, err
	}
	return analytics.Compute(events, devices, s.field(q), rng, s.events.Location()), nil
}

// Export renders one device's events as CSV. It needs a concrete device and
// fails with ErrNoData on an empty result rather than returning a bare header.
func (s *Service) Export(ctx context.Context, q Query) (out Export, err error) {
	started := time.Now()
	defer func() { s.observe("export", started, len(out.Table.Rows), err) }()

	id := store.NormalizeDeviceID(q.DeviceID)
	if id == "" {
		return Export{}, &telemetry.ValidationError{Field: "deviceId", Reason: "export needs a single device"}
	}
	rng, err := s.explicitRange(q)
	if err != nil {
		return Export{}, err
	}
	d, err := s.roster.GetDevice(ctx, id)
	if err != nil {
		return Export{}, err
	}
	events, err := s.events.QueryEvents(ctx, id, rng)
	if err != nil {
		return Export{}, err
	}
	tbl := s.formatter.Format(events, d)
	if tbl.NoData {
		return Export{}, ErrNoData
	}

	var start, end string
	if rng != nil {
		start, end = rng.Start.String(), rng.End.String()
	}
	return Export{
		Filename: report.ExportFilename(d.Name, start, end),
		Device:   d,
		Table:    tbl,
	}, nil
}

func (s *Service) explicitRange(q Query) (*telemetry.DateRange, error) {
	if q.Range != nil {
		r, err := telemetry.NewDateRange(q.Range.Start, q.Range.End)
		if err != nil {
			return nil, err
		}
		return &r, nil
	}
	return store.ParseRange(q.StartDate, q.EndDate)
}

func (s *Service) field(q Query) string {
	if f := strings.TrimSpace(q.Field); f != "" {
		return f
	}
	return s.defaultField
}

func (s *Service) observe(kind string, started time.Time, n int, err error) {
	outcome := Outcome(err)
	metrics.ObserveQuery(kind, outcome, started, n)
	if outcome == metrics.OutcomeStoreError {
		logs.Logger.WithFields(logrus.Fields{"query": kind, "error": err}).Error("report query failed")
	}
}

// Outcome classifies err for metrics and HTTP status mapping.
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case telemetry.IsValidation(err):
		return metrics.OutcomeInvalid
	case errors.Is(err, telemetry.ErrDeviceNotFound), errors.Is(err, ErrNoData):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeStoreError
	}
}
