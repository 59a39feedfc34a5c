package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"coinwatch/internal/telemetry"

	"github.com/google/uuid"
)

// MemStore keeps the roster and the event log in process memory. It backs
// the service when no database is configured, and the tests.
type MemStore struct {
	devices map[string]telemetry.Device
	events  []telemetry.Event
	timeout time.Duration
	now     func() time.Time
	mu      sync.RWMutex
}

func NewMemStore(heartbeatTimeout time.Duration) *MemStore {
	return &MemStore{
		devices: make(map[string]telemetry.Device),
		timeout: heartbeatTimeout,
		now:     time.Now,
	}
}

// SetClock replaces the clock used for status derivation.
func (m *MemStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemStore) UpsertDevice(_ context.Context, d telemetry.Device) error {
	if err := d.ValidateFields(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if ex, ok := m.devices[d.ID]; ok {
		if d.LastHeartbeat == nil {
			d.LastHeartbeat = ex.LastHeartbeat
		}
		if d.Data == nil {
			d.Data = ex.Data
		}
	}
	m.devices[d.ID] = d
	return nil
}

func (m *MemStore) TouchDevice(_ context.Context, id string, at time.Time, snapshot telemetry.Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[id]
	if !ok {
		return telemetry.ErrDeviceNotFound
	}
	if d.LastHeartbeat == nil || at.After(*d.LastHeartbeat) {
		t := at
		d.LastHeartbeat = &t
		if snapshot != nil {
			d.Data = map[string]any(snapshot)
		}
	}
	m.devices[id] = d
	return nil
}

func (m *MemStore) ListDevices(_ context.Context) ([]telemetry.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := m.now()
	out := make([]telemetry.Device, 0, len(m.devices))
	for _, d := range m.devices {
		d.Status = telemetry.StatusAt(d.LastHeartbeat, now, m.timeout)
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) GetDevice(_ context.Context, id string) (telemetry.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[id]
	if !ok {
		return telemetry.Device{}, telemetry.ErrDeviceNotFound
	}
	d.Status = telemetry.StatusAt(d.LastHeartbeat, m.now(), m.timeout)
	return d, nil
}

func (m *MemStore) AppendEvent(_ context.Context, e telemetry.Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *MemStore) FindEvents(ctx context.Context, f Filter) ([]telemetry.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]telemetry.Event, 0)
	for _, e := range m.events {
		if f.DeviceID != "" && e.DeviceID != f.DeviceID {
			continue
		}
		if f.From != nil && e.Timestamp.Before(*f.From) {
			continue
		}
		if f.To != nil && !e.Timestamp.Before(*f.To) {
			continue
		}
		out = append(out, e)
	}
	m.mu.RUnlock()

	SortNewestFirst(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
