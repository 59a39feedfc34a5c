package interval

import (
	"encoding/json"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jan(d int) civil.Date { return civil.Date{Year: 2024, Month: 1, Day: d} }

func TestSelector_PickPickConfirm(t *testing.T) {
	sel := New()
	assert.Equal(t, Empty, sel.State())

	sel.Pick(jan(3))
	assert.Equal(t, PendingEnd, sel.State())

	sel.Pick(jan(7))
	assert.Equal(t, RangeSelected, sel.State())
	_, ok := sel.Range()
	assert.False(t, ok, "unconfirmed range is not queryable")

	require.True(t, sel.Confirm())
	assert.Equal(t, Confirmed, sel.State())
	assert.Equal(t, 5, sel.Days())

	r, ok := sel.Range()
	require.True(t, ok)
	assert.Equal(t, jan(3), r.Start)
	assert.Equal(t, jan(7), r.End)
}

func TestSelector_EarlierSecondPickReanchors(t *testing.T) {
	sel := New()
	sel.Pick(jan(10))
	sel.Pick(jan(4))

	s := sel.Snapshot()
	assert.Equal(t, PendingEnd, s.State)
	assert.Equal(t, jan(4), *s.Start)
	assert.Nil(t, s.End)
}

func TestSelector_SameDayRange(t *testing.T) {
	sel := New()
	sel.Pick(jan(5))
	sel.Pick(jan(5))
	require.True(t, sel.Confirm())
	assert.Equal(t, 1, sel.Days())
}

func TestSelector_ConfirmWithoutRangeIsNoop(t *testing.T) {
	sel := New()
	assert.False(t, sel.Confirm())
	assert.Equal(t, Empty, sel.State())

	sel.Pick(jan(1))
	assert.False(t, sel.Confirm())
	assert.Equal(t, PendingEnd, sel.State())
}

func TestSelector_PickAfterConfirmStartsOver(t *testing.T) {
	sel := New()
	sel.Pick(jan(1))
	sel.Pick(jan(2))
	sel.Confirm()

	sel.Pick(jan(20))
	s := sel.Snapshot()
	assert.Equal(t, PendingEnd, s.State)
	assert.False(t, s.Confirmed)
	assert.Zero(t, s.Days)
	assert.Equal(t, jan(20), *s.Start)
}

func TestSelector_Clear(t *testing.T) {
	sel := New()
	sel.Pick(jan(1))
	sel.Pick(jan(2))
	sel.Confirm()
	sel.Clear()
	assert.Equal(t, Snapshot{State: Empty}, sel.Snapshot())
}

func TestSelector_SnapshotIsACopy(t *testing.T) {
	sel := New()
	sel.Pick(jan(1))
	s := sel.Snapshot()
	*s.Start = jan(30)
	assert.Equal(t, jan(1), *sel.Snapshot().Start)
}

func TestSelector_JSONRoundTrip(t *testing.T) {
	sel := New()
	sel.Pick(jan(2))
	sel.Pick(jan(9))
	sel.Confirm()

	b, err := json.Marshal(sel)
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"confirmed","start":"2024-01-02","end":"2024-01-09","confirmed":true,"days":8}`, string(b))

	var back Selector
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, sel.Snapshot(), back.Snapshot())
}

func TestSelector_RestoreRejectsBrokenState(t *testing.T) {
	start, end := jan(9), jan(2)
	tests := []struct {
		name string
		s    Snapshot
	}{
		{"end before start", Snapshot{State: RangeSelected, Start: &start, End: &end}},
		{"pending without start", Snapshot{State: PendingEnd}},
		{"confirmed flag on range", Snapshot{State: RangeSelected, Start: &end, End: &start, Confirmed: true}},
		{"unknown state", Snapshot{State: "dragging"}},
		{"empty with dates", Snapshot{State: Empty, Start: &start}},
		{"confirmed without days", Snapshot{State: Confirmed, Start: &end, End: &start, Confirmed: true}},
		{"confirmed with wrong days", Snapshot{State: Confirmed, Start: &end, End: &start, Confirmed: true, Days: 3}},
		{"days on unconfirmed range", Snapshot{State: RangeSelected, Start: &end, End: &start, Days: 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, New().Restore(tt.s))
		})
	}

	assert.NoError(t, New().Restore(Snapshot{}), "zero snapshot means empty")

	sel := New()
	require.NoError(t, sel.Restore(Snapshot{State: Confirmed, Start: &end, End: &start, Confirmed: true, Days: 8}))
	assert.Equal(t, 8, sel.Days())
}

func TestTransition_Table(t *testing.T) {
	d1, d3, d5 := jan(1), jan(3), jan(5)
	empty := Snapshot{State: Empty}
	pending := Snapshot{State: PendingEnd, Start: &d1}
	selected := Snapshot{State: RangeSelected, Start: &d1, End: &d3}
	confirmed := Snapshot{State: Confirmed, Start: &d1, End: &d3, Confirmed: true, Days: 3}

	tests := []struct {
		name string
		in   Snapshot
		a    Action
		want Snapshot
	}{
		{"clear from empty", empty, Action{Kind: Clear}, empty},
		{"clear from pending", pending, Action{Kind: Clear}, empty},
		{"clear from range", selected, Action{Kind: Clear}, empty},
		{"clear from confirmed", confirmed, Action{Kind: Clear}, empty},
		{"pick from empty", empty, Action{Kind: Pick, Date: d3}, Snapshot{State: PendingEnd, Start: &d3}},
		{"pick after unconfirmed range", selected, Action{Kind: Pick, Date: d5}, Snapshot{State: PendingEnd, Start: &d5}},
		{"pick after confirmed", confirmed, Action{Kind: Pick, Date: d5}, Snapshot{State: PendingEnd, Start: &d5}},
		{"confirm range", selected, Action{Kind: Confirm}, confirmed},
		{"confirm twice", confirmed, Action{Kind: Confirm}, confirmed},
		{"confirm pending", pending, Action{Kind: Confirm}, pending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Transition(tt.in, tt.a)
			assert.Equal(t, tt.want, got)
			require.NoError(t, got.Validate())
		})
	}
}

func TestTransition_IsPure(t *testing.T) {
	start := jan(1)
	in := Snapshot{State: PendingEnd, Start: &start}
	out := Transition(in, Action{Kind: Pick, Date: jan(3)})

	assert.Equal(t, RangeSelected, out.State)
	assert.Equal(t, PendingEnd, in.State)
	assert.Nil(t, in.End)

	assert.Equal(t, in, Transition(in, Action{Kind: "hover"}))
}
