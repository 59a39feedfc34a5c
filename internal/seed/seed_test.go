package seed

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"coinwatch/internal/store"
	"coinwatch/internal/telemetry"
	"coinwatch/internal/telemetry/fieldschema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleDevices_Valid(t *testing.T) {
	ds := SampleDevices()
	require.Len(t, ds, 5)
	for _, d := range ds {
		assert.NoError(t, d.ValidateFields(), d.ID)
	}
}

func TestPayload_MatchesDeviceFields(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for _, d := range SampleDevices() {
		p := Payload(d.Type, r)
		_, err := fieldschema.ValidatePayload(d.Fields, p)
		assert.NoError(t, err, d.ID)
		assert.Len(t, p, len(d.Fields), d.ID)
	}
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemStore(time.Minute)
	now := time.Date(2024, 3, 31, 15, 0, 0, 0, time.UTC)

	res, err := Run(ctx, ms, ms, Options{Days: 3, Now: now, Loc: time.UTC, Seed: 7, Events: true})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Devices)
	assert.GreaterOrEqual(t, res.Events, 5*3*5)
	assert.LessOrEqual(t, res.Events, 5*3*15)

	events, err := ms.FindEvents(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Len(t, events, res.Events)
	for _, e := range events {
		day := telemetry.DateOf(e.Timestamp, time.UTC)
		assert.False(t, day.Before(telemetry.DateOf(now, time.UTC).AddDays(-3)))
		assert.True(t, day.Before(telemetry.DateOf(now, time.UTC)))
	}
}

func TestRun_DevicesOnly(t *testing.T) {
	ms := store.NewMemStore(time.Minute)
	res, err := Run(context.Background(), ms, ms, Options{})
	require.NoError(t, err)
	assert.Equal(t, Result{Devices: 5}, res)
}
