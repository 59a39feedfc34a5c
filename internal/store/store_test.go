package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"coinwatch/internal/telemetry"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// looseSource ignores the filter, like a backend that returns unordered,
// unfiltered rows.
type looseSource struct {
	events []telemetry.Event
	err    error
	got    Filter
}

func (s *looseSource) FindEvents(_ context.Context, f Filter) ([]telemetry.Event, error) {
	s.got = f
	return append([]telemetry.Event(nil), s.events...), s.err
}

func at(d, h int) time.Time { return time.Date(2024, 1, d, h, 0, 0, 0, time.UTC) }

func rng(s, e int) *telemetry.DateRange {
	return &telemetry.DateRange{
		Start: civil.Date{Year: 2024, Month: 1, Day: s},
		End:   civil.Date{Year: 2024, Month: 1, Day: e},
	}
}

func TestQueryEvents_FiltersAndOrders(t *testing.T) {
	src := &looseSource{events: []telemetry.Event{
		{ID: "1", DeviceID: "A", Timestamp: at(1, 0)},
		{ID: "2", DeviceID: "B", Timestamp: at(2, 23)},
		{ID: "3", DeviceID: "A", Timestamp: at(3, 0)},
		{ID: "4", DeviceID: "A", Timestamp: at(2, 12)},
		{ID: "5", DeviceID: "A", Timestamp: at(2, 12)},
	}}
	a := NewAdapter(src, WithLocation(time.UTC))

	out, err := a.QueryEvents(context.Background(), "A", rng(1, 2))
	require.NoError(t, err)
	ids := make([]string, len(out))
	for i, e := range out {
		ids[i] = e.ID
	}
	assert.Equal(t, []string{"5", "4", "1"}, ids)

	assert.Equal(t, "A", src.got.DeviceID)
	assert.Equal(t, at(1, 0), *src.got.From)
	assert.Equal(t, at(3, 0), *src.got.To)
	assert.Equal(t, DefaultMaxResults, src.got.Limit)
}

func TestQueryEvents_EndDayIsInclusive(t *testing.T) {
	src := &looseSource{events: []telemetry.Event{
		{ID: "late", DeviceID: "A", Timestamp: time.Date(2024, 1, 2, 23, 59, 59, 0, time.UTC)},
		{ID: "next", DeviceID: "A", Timestamp: at(3, 0)},
	}}
	out, err := NewAdapter(src, WithLocation(time.UTC)).QueryEvents(context.Background(), "all", rng(2, 2))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "late", out[0].ID)
	assert.Empty(t, src.got.DeviceID)
}

func TestQueryEvents_CapKeepsMostRecent(t *testing.T) {
	src := &looseSource{}
	for i := 1; i <= 10; i++ {
		src.events = append(src.events, telemetry.Event{ID: fmt.Sprint(i), DeviceID: "A", Timestamp: at(i, 0)})
	}
	out, err := NewAdapter(src, WithMaxResults(3)).QueryEvents(context.Background(), "", nil)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "10", out[0].ID)
	assert.Equal(t, "8", out[2].ID)
}

func TestQueryEvents_Errors(t *testing.T) {
	_, err := NewAdapter(&looseSource{}).QueryEvents(context.Background(), "", rng(5, 1))
	assert.True(t, telemetry.IsValidation(err))

	cause := errors.New("connection refused")
	_, err = NewAdapter(&looseSource{err: cause}).QueryEvents(context.Background(), "", nil)
	assert.True(t, telemetry.IsStore(err))
	assert.ErrorIs(t, err, cause)

	se := &telemetry.StoreError{Op: "find events", Err: cause}
	_, err = NewAdapter(&looseSource{err: se}).QueryEvents(context.Background(), "", nil)
	assert.Same(t, se, err)
}

func TestNormalizeDeviceID(t *testing.T) {
	assert.Equal(t, "", NormalizeDeviceID("all"))
	assert.Equal(t, "", NormalizeDeviceID(" ALL "))
	assert.Equal(t, "", NormalizeDeviceID(""))
	assert.Equal(t, "ESP32_001", NormalizeDeviceID("ESP32_001"))
}

func TestMemStore(t *testing.T) {
	ctx := context.Background()
	now := at(10, 12)
	ms := NewMemStore(5 * time.Minute)
	ms.SetClock(func() time.Time { return now })

	require.NoError(t, ms.UpsertDevice(ctx, telemetry.Device{ID: "A", Name: "Grua", Fields: []telemetry.Field{{Key: "coin"}}}))
	assert.True(t, telemetry.IsValidation(ms.UpsertDevice(ctx, telemetry.Device{ID: "B", Fields: []telemetry.Field{{Key: "x"}, {Key: "x"}}})))

	require.NoError(t, ms.TouchDevice(ctx, "A", now.Add(-time.Minute), telemetry.Payload{"coin": 1.0}))
	require.NoError(t, ms.TouchDevice(ctx, "A", now.Add(-time.Hour), telemetry.Payload{"coin": 9.0}))
	assert.ErrorIs(t, ms.TouchDevice(ctx, "Z", now, nil), telemetry.ErrDeviceNotFound)

	d, err := ms.GetDevice(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, telemetry.StatusOnline, d.Status)
	assert.Equal(t, 1.0, d.Data["coin"], "older heartbeat does not overwrite")

	// re-upsert keeps heartbeat and snapshot
	require.NoError(t, ms.UpsertDevice(ctx, telemetry.Device{ID: "A", Name: "Grua 1", Fields: []telemetry.Field{{Key: "coin"}}}))
	d, _ = ms.GetDevice(ctx, "A")
	assert.Equal(t, "Grua 1", d.Name)
	assert.NotNil(t, d.LastHeartbeat)

	require.NoError(t, ms.AppendEvent(ctx, telemetry.Event{DeviceID: "A", Timestamp: at(1, 0)}))
	require.NoError(t, ms.AppendEvent(ctx, telemetry.Event{DeviceID: "A", Timestamp: at(2, 0)}))
	from, to := at(2, 0), at(3, 0)
	events, err := ms.FindEvents(ctx, Filter{DeviceID: "A", From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].ID)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = ms.FindEvents(cctx, Filter{})
	assert.ErrorIs(t, err, context.Canceled)
}
