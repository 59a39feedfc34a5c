package telemetry

import (
	"fmt"
	"time"
)

// ValueType is the declared scalar type of a device field.
type ValueType string

const (
	TNumber ValueType = "number"
	TString ValueType = "string"
	TBool   ValueType = "bool"
)

// Field describes one key of a device's telemetry payload.
type Field struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	ValueType ValueType `json:"type"`
	Required  bool      `json:"required"`
}

// Status is the externally derived connectivity state of a device.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusUnknown Status = "unknown"
)

// Device is a monitored unit with its payload schema. The core only reads it.
type Device struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Type          string         `json:"type"`
	Locality      string         `json:"locality"`
	Fields        []Field        `json:"fields"`
	Status        Status         `json:"status"`
	LastHeartbeat *time.Time     `json:"lastHeartbeat,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
}

// ValidateFields checks that field keys are non-empty and unique.
func (d Device) ValidateFields() error {
	seen := make(map[string]struct{}, len(d.Fields))
	for i, f := range d.Fields {
		if f.Key == "" {
			return &ValidationError{Field: fmt.Sprintf("fields[%d].key", i), Reason: "empty key"}
		}
		if _, dup := seen[f.Key]; dup {
			return &ValidationError{Field: fmt.Sprintf("fields[%d].key", i), Reason: fmt.Sprintf("duplicate key %q", f.Key)}
		}
		seen[f.Key] = struct{}{}
	}
	return nil
}

// StatusAt derives the status from the last heartbeat.
func StatusAt(lastHeartbeat *time.Time, now time.Time, timeout time.Duration) Status {
	if lastHeartbeat == nil || lastHeartbeat.IsZero() {
		return StatusUnknown
	}
	if now.Sub(*lastHeartbeat) <= timeout {
		return StatusOnline
	}
	return StatusOffline
}

// Index maps device id to device.
func Index(devices []Device) map[string]Device {
	out := make(map[string]Device, len(devices))
	for _, d := range devices {
		out[d.ID] = d
	}
	return out
}
