package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"coinwatch/internal/models"
	"coinwatch/internal/telemetry"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceStore is the gorm-backed device roster.
type DeviceStore struct {
	db      *gorm.DB
	timeout time.Duration
	now     func() time.Time
}

func NewDeviceStore(db *gorm.DB, heartbeatTimeout time.Duration) *DeviceStore {
	return &DeviceStore{db: db, timeout: heartbeatTimeout, now: time.Now}
}

func (s *DeviceStore) ListDevices(ctx context.Context) ([]telemetry.Device, error) {
	var rows []models.Device
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, &telemetry.StoreError{Op: "list devices", Err: err}
	}
	now := s.now()
	out := make([]telemetry.Device, 0, len(rows))
	for _, m := range rows {
		d, err := s.toDevice(m, now)
		if err != nil {
			return nil, &telemetry.StoreError{Op: "list devices", Err: err}
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *DeviceStore) GetDevice(ctx context.Context, id string) (telemetry.Device, error) {
	var m models.Device
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return telemetry.Device{}, telemetry.ErrDeviceNotFound
		}
		return telemetry.Device{}, &telemetry.StoreError{Op: "get device", Err: err}
	}
	d, err := s.toDevice(m, s.now())
	if err != nil {
		return telemetry.Device{}, &telemetry.StoreError{Op: "get device", Err: err}
	}
	return d, nil
}

// UpsertDevice creates the device or updates its descriptive columns.
// Heartbeat and snapshot are left alone on update.
func (s *DeviceStore) UpsertDevice(ctx context.Context, d telemetry.Device) error {
	if err := d.ValidateFields(); err != nil {
		return err
	}
	fields, err := json.Marshal(d.Fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	m := models.Device{
		ID:            d.ID,
		Name:          d.Name,
		Type:          d.Type,
		Locality:      d.Locality,
		Fields:        datatypes.JSON(fields),
		Data:          datatypes.JSON("{}"),
		LastHeartbeat: d.LastHeartbeat,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "type", "locality", "fields", "updated_at"}),
	}).Create(&m).Error
	if err != nil {
		return &telemetry.StoreError{Op: "upsert device", Err: err}
	}
	return nil
}

// TouchDevice records a heartbeat and the current-value snapshot. Older
// heartbeats than the stored one are ignored.
func (s *DeviceStore) TouchDevice(ctx context.Context, id string, at time.Time, snapshot telemetry.Payload) error {
	upd := map[string]any{"last_heartbeat": at}
	if snapshot != nil {
		raw, err := json.Marshal(snapshot)
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		upd["data"] = datatypes.JSON(raw)
	}
	tx := s.db.WithContext(ctx).Model(&models.Device{}).
		Where("id = ? AND (last_heartbeat IS NULL OR last_heartbeat < ?)", id, at).
		Updates(upd)
	if tx.Error != nil {
		return &telemetry.StoreError{Op: "touch device", Err: tx.Error}
	}
	if tx.RowsAffected == 0 {
		var n int64
		if err := s.db.WithContext(ctx).Model(&models.Device{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return &telemetry.StoreError{Op: "touch device", Err: err}
		}
		if n == 0 {
			return telemetry.ErrDeviceNotFound
		}
	}
	return nil
}

func (s *DeviceStore) toDevice(m models.Device, now time.Time) (telemetry.Device, error) {
	d := telemetry.Device{
		ID:            m.ID,
		Name:          m.Name,
		Type:          m.Type,
		Locality:      m.Locality,
		LastHeartbeat: m.LastHeartbeat,
		Status:        telemetry.StatusAt(m.LastHeartbeat, now, s.timeout),
	}
	if len(m.Fields) > 0 {
		if err := json.Unmarshal(m.Fields, &d.Fields); err != nil {
			return telemetry.Device{}, fmt.Errorf("device %s fields: %w", m.ID, err)
		}
	}
	if len(m.Data) > 0 {
		p, err := telemetry.DecodePayload(m.Data)
		if err != nil {
			return telemetry.Device{}, fmt.Errorf("device %s data: %w", m.ID, err)
		}
		d.Data = p
	}
	return d, nil
}
