package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DeviceData is one appended telemetry record. Rows are never updated;
// they go away only with their device.
type DeviceData struct {
	ID        string         `gorm:"primaryKey;size:64"`
	DeviceID  string         `gorm:"size:64;not null;index:idx_device_data_device_ts,priority:1"`
	Data      datatypes.JSON `gorm:"not null"`
	Timestamp time.Time      `gorm:"not null;index:idx_device_data_device_ts,priority:2;index:idx_device_data_ts"`
	Device    *Device        `gorm:"foreignKey:DeviceID;constraint:OnDelete:CASCADE"`
}

func (DeviceData) TableName() string { return "device_data" }

func (d *DeviceData) BeforeCreate(_ *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now()
	}
	return nil
}
