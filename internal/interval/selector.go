// Package interval implements the two-click date range picker as a plain
// state machine, independent of any rendering layer.
//
//	Empty --pick--> PendingEnd --pick d>=start--> RangeSelected --confirm--> Confirmed
//	                PendingEnd --pick d<start---> PendingEnd (re-anchored)
//	RangeSelected, Confirmed --pick--> PendingEnd (new selection)
//	any --clear--> Empty
//
// A Selector is not safe for concurrent use; one selector belongs to one session.
package interval

import (
	"encoding/json"
	"errors"
	"fmt"

	"coinwatch/internal/telemetry"

	"cloud.google.com/go/civil"
)

type State string

const (
	Empty         State = "empty"
	PendingEnd    State = "pending_end"
	RangeSelected State = "range_selected"
	Confirmed     State = "confirmed"
)

type ActionKind string

const (
	Pick    ActionKind = "pick"
	Confirm ActionKind = "confirm"
	Clear   ActionKind = "clear"
)

// Action is one user input. Date is only read for Pick.
type Action struct {
	Kind ActionKind `json:"action"`
	Date civil.Date `json:"date"`
}

// Snapshot is the serializable selector state.
type Snapshot struct {
	State     State       `json:"state"`
	Start     *civil.Date `json:"start"`
	End       *civil.Date `json:"end"`
	Confirmed bool        `json:"confirmed"`
	Days      int         `json:"days,omitempty"`
}

// Transition applies a to s. Unknown actions and confirm without both
// endpoints leave s unchanged.
func Transition(s Snapshot, a Action) Snapshot {
	switch a.Kind {
	case Pick:
		d := a.Date
		if s.State == PendingEnd && s.Start != nil {
			if !d.Before(*s.Start) {
				start := *s.Start
				return Snapshot{State: RangeSelected, Start: &start, End: &d}
			}
		}
		return Snapshot{State: PendingEnd, Start: &d}
	case Confirm:
		if s.Start == nil || s.End == nil {
			return s
		}
		start, end := *s.Start, *s.End
		return Snapshot{
			State:     Confirmed,
			Start:     &start,
			End:       &end,
			Confirmed: true,
			Days:      end.DaysSince(start) + 1,
		}
	case Clear:
		return Snapshot{State: Empty}
	}
	return s
}

// Validate checks the snapshot invariants.
func (s Snapshot) Validate() error {
	switch s.State {
	case Empty:
		if s.Start != nil || s.End != nil || s.Confirmed {
			return errors.New("empty selection carries dates")
		}
	case PendingEnd:
		if s.Start == nil || s.End != nil || s.Confirmed {
			return errors.New("pending selection needs a start and no end")
		}
	case RangeSelected, Confirmed:
		if s.Start == nil || s.End == nil {
			return errors.New("selection needs both endpoints")
		}
		if s.End.Before(*s.Start) {
			return errors.New("selection end is before start")
		}
		if s.Confirmed != (s.State == Confirmed) {
			return errors.New("confirmed flag does not match state")
		}
	default:
		return errors.New("unknown selection state")
	}
	want := 0
	if s.State == Confirmed {
		want = s.End.DaysSince(*s.Start) + 1
	}
	if s.Days != want {
		return fmt.Errorf("selection days is %d, want %d", s.Days, want)
	}
	return nil
}

// Selector owns one in-progress or confirmed interval.
type Selector struct {
	s Snapshot
}

func New() *Selector { return &Selector{s: Snapshot{State: Empty}} }

// Pick handles a click on day d.
func (sel *Selector) Pick(d civil.Date) { sel.Apply(Action{Kind: Pick, Date: d}) }

// Confirm accepts the current range. It reports false (and does nothing)
// when an endpoint is missing.
func (sel *Selector) Confirm() bool {
	sel.Apply(Action{Kind: Confirm})
	return sel.s.Confirmed
}

// Clear drops the selection.
func (sel *Selector) Clear() { sel.Apply(Action{Kind: Clear}) }

// Apply runs one action.
func (sel *Selector) Apply(a Action) Snapshot {
	sel.s = Transition(sel.s, a)
	return sel.Snapshot()
}

func (sel *Selector) State() State { return sel.s.State }

// Days is the inclusive day count of a confirmed interval, 0 otherwise.
func (sel *Selector) Days() int { return sel.s.Days }

// Snapshot returns a copy of the state.
func (sel *Selector) Snapshot() Snapshot {
	out := sel.s
	if out.Start != nil {
		d := *out.Start
		out.Start = &d
	}
	if out.End != nil {
		d := *out.End
		out.End = &d
	}
	return out
}

// Restore replaces the state after checking it.
func (sel *Selector) Restore(s Snapshot) error {
	if s.State == "" {
		s.State = Empty
	}
	if err := s.Validate(); err != nil {
		return err
	}
	sel.s = s
	return nil
}

// Range returns the confirmed interval as a query range.
func (sel *Selector) Range() (telemetry.DateRange, bool) { return sel.s.Range() }

// Range returns the interval if it is confirmed.
func (s Snapshot) Range() (telemetry.DateRange, bool) {
	if !s.Confirmed || s.Start == nil || s.End == nil {
		return telemetry.DateRange{}, false
	}
	return telemetry.DateRange{Start: *s.Start, End: *s.End}, true
}

func (sel *Selector) MarshalJSON() ([]byte, error) { return json.Marshal(sel.s) }

func (sel *Selector) UnmarshalJSON(b []byte) error {
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return sel.Restore(s)
}
