package models

import (
	"time"

	"gorm.io/datatypes"
)

// Device is a registered coin-operated machine. Fields holds the JSON list
// of payload field definitions, Data the latest reported payload.
type Device struct {
	ID            string `gorm:"primaryKey;size:64"`
	Name          string `gorm:"not null"`
	Type          string `gorm:"not null;index"`
	Locality      string `gorm:"default:''"`
	Fields        datatypes.JSON
	Data          datatypes.JSON
	LastHeartbeat *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (Device) TableName() string { return "devices" }
