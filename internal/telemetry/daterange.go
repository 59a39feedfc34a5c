package telemetry

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start civil.Date `json:"start"`
	End   civil.Date `json:"end"`
}

// NewDateRange rejects inverted ranges instead of swapping them.
func NewDateRange(start, end civil.Date) (DateRange, error) {
	if !start.IsValid() {
		return DateRange{}, &ValidationError{Field: "startDate", Reason: "not a calendar date"}
	}
	if !end.IsValid() {
		return DateRange{}, &ValidationError{Field: "endDate", Reason: "not a calendar date"}
	}
	if end.Before(start) {
		return DateRange{}, &ValidationError{Field: "endDate", Reason: "endDate is before startDate"}
	}
	return DateRange{Start: start, End: end}, nil
}

// ParseDateRange parses YYYY-MM-DD bounds. Every non-blank bound must parse;
// the range filter applies only when both are given, otherwise nil is
// returned (all time).
func ParseDateRange(start, end string) (*DateRange, error) {
	s, hasStart, err := parseBound("startDate", start)
	if err != nil {
		return nil, err
	}
	e, hasEnd, err := parseBound("endDate", end)
	if err != nil {
		return nil, err
	}
	if !hasStart || !hasEnd {
		return nil, nil
	}
	r, err := NewDateRange(s, e)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func parseBound(field, v string) (civil.Date, bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return civil.Date{}, false, nil
	}
	d, err := civil.ParseDate(v)
	if err != nil {
		return civil.Date{}, false, &ValidationError{Field: field, Reason: "expected YYYY-MM-DD"}
	}
	return d, true, nil
}

// Contains reports whether d falls inside the range.
func (r DateRange) Contains(d civil.Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Days is the inclusive day count.
func (r DateRange) Days() int {
	return r.End.DaysSince(r.Start) + 1
}

// Bounds converts the range to the half-open instant interval
// [Start 00:00, End+1 00:00) in loc.
func (r DateRange) Bounds(loc *time.Location) (from, to time.Time) {
	return r.Start.In(loc), r.End.AddDays(1).In(loc)
}

// DateOf is the calendar day of t in loc.
func DateOf(t time.Time, loc *time.Location) civil.Date {
	return civil.DateOf(t.In(loc))
}
