package telemetry

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Event is one telemetry record (a device_data row).
type Event struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"deviceId"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Payload   `json:"data"`
}

// Payload is the schemaless field-key -> scalar mapping sent by a device.
// Reads go through Lookup/Number/Text so aggregation never trips over
// missing or malformed keys.
type Payload map[string]any

// Lookup returns the raw value stored under key.
func (p Payload) Lookup(key string) (any, bool) {
	if p == nil {
		return nil, false
	}
	v, ok := p[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Number returns the numeric value under key, 0 when absent or non-numeric.
func (p Payload) Number(key string) float64 {
	v, ok := p.Lookup(key)
	if !ok {
		return 0
	}
	n, ok := AsNumber(v)
	if !ok {
		return 0
	}
	return n
}

// Text renders the value under key, or def when absent.
func (p Payload) Text(key, def string) string {
	v, ok := p.Lookup(key)
	if !ok {
		return def
	}
	if n, isNum := AsNumber(v); isNum {
		return FormatNumber(n)
	}
	return fmt.Sprint(v)
}

// AsNumber converts the scalar kinds produced by JSON decoding and by
// database drivers into a finite float64.
func AsNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		x, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = x
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// FormatNumber prints integers without a fraction and everything else in the
// shortest exact form.
func FormatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}

// DecodePayload parses a stored JSON object. Empty input yields an empty payload.
func DecodePayload(raw []byte) (Payload, error) {
	p := Payload{}
	if len(raw) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}
