package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"coinwatch/internal/models"
	"coinwatch/internal/store"
	"coinwatch/internal/telemetry"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EventStore reads and appends the device_data log through gorm.
type EventStore struct {
	db *gorm.DB
}

func NewEventStore(db *gorm.DB) *EventStore { return &EventStore{db: db} }

// eventsQuery builds the filtered, newest-first, limited select.
func eventsQuery(db *gorm.DB, f store.Filter) *gorm.DB {
	q := db.Model(&models.DeviceData{}).Select("id", "device_id", "data", "timestamp")
	if f.DeviceID != "" {
		q = q.Where("device_id = ?", f.DeviceID)
	}
	if f.From != nil {
		q = q.Where("timestamp >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("timestamp < ?", *f.To)
	}
	q = q.Order("timestamp DESC").Order("id DESC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	return q
}

func (s *EventStore) FindEvents(ctx context.Context, f store.Filter) ([]telemetry.Event, error) {
	var rows []models.DeviceData
	if err := eventsQuery(s.db.WithContext(ctx), f).Find(&rows).Error; err != nil {
		return nil, &telemetry.StoreError{Op: "find events", Err: err}
	}
	out := make([]telemetry.Event, 0, len(rows))
	for _, r := range rows {
		p, err := telemetry.DecodePayload(r.Data)
		if err != nil {
			return nil, &telemetry.StoreError{Op: "find events", Err: fmt.Errorf("row %s: %w", r.ID, err)}
		}
		out = append(out, telemetry.Event{
			ID:        r.ID,
			DeviceID:  r.DeviceID,
			Timestamp: r.Timestamp,
			Payload:   p,
		})
	}
	return out, nil
}

func (s *EventStore) AppendEvent(ctx context.Context, e telemetry.Event) error {
	raw, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	row := models.DeviceData{
		ID:        e.ID,
		DeviceID:  e.DeviceID,
		Data:      datatypes.JSON(raw),
		Timestamp: e.Timestamp,
	}
	if err := s.db.WithContext(ctx).Omit("Device").Create(&row).Error; err != nil {
		return &telemetry.StoreError{Op: "append event", Err: err}
	}
	return nil
}
