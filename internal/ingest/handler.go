// Package ingest receives device telemetry over MQTT and appends it to the
// event log.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"coinwatch/internal/logs"
	"coinwatch/internal/metrics"
	"coinwatch/internal/store"
	"coinwatch/internal/telemetry"
	"coinwatch/internal/telemetry/fieldschema"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// message is the JSON body a device publishes.
type message struct {
	Timestamp *time.Time        `json:"timestamp"`
	Data      telemetry.Payload `json:"data"`
}

// DeviceIDFromTopic extracts {id} from ".../devices/{id}/data".
func DeviceIDFromTopic(topic string) (string, bool) {
	parts := strings.Split(strings.Trim(topic, "/"), "/")
	if len(parts) < 3 || parts[len(parts)-1] != "data" || parts[len(parts)-3] != "devices" {
		return "", false
	}
	id := parts[len(parts)-2]
	if id == "" || id == "+" || id == "#" {
		return "", false
	}
	return id, true
}

type Handler struct {
	roster  store.Roster
	events  store.EventWriter
	devices store.DeviceWriter
	now     func() time.Time
}

func NewHandler(roster store.Roster, events store.EventWriter, devices store.DeviceWriter) *Handler {
	return &Handler{roster: roster, events: events, devices: devices, now: time.Now}
}

// Process validates one message against the device's fields, appends it and
// refreshes the device heartbeat and current values.
func (h *Handler) Process(ctx context.Context, topic string, raw []byte) (err error) {
	defer func() { metrics.IngestedEvents.WithLabelValues(outcome(err)).Inc() }()

	id, ok := DeviceIDFromTopic(topic)
	if !ok {
		return &telemetry.ValidationError{Field: "topic", Reason: "expected devices/{id}/data"}
	}
	var msg message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return &telemetry.ValidationError{Field: "body", Reason: "invalid json"}
	}
	if len(msg.Data) == 0 {
		return &telemetry.ValidationError{Field: "data", Reason: "empty payload"}
	}

	d, err := h.roster.GetDevice(ctx, id)
	if err != nil {
		return err
	}
	payload, err := fieldschema.ValidatePayload(d.Fields, msg.Data)
	if err != nil {
		return err
	}

	ts := h.now()
	if msg.Timestamp != nil && !msg.Timestamp.IsZero() {
		ts = *msg.Timestamp
	}
	e := telemetry.Event{ID: uuid.NewString(), DeviceID: id, Timestamp: ts, Payload: payload}
	if err := h.events.AppendEvent(ctx, e); err != nil {
		return err
	}
	if err := h.devices.TouchDevice(ctx, id, ts, payload); err != nil {
		return err
	}

	logs.Logger.WithFields(logrus.Fields{"device_id": id, "event_id": e.ID}).Debug("event stored")
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case telemetry.IsValidation(err):
		return metrics.OutcomeInvalid
	case errors.Is(err, telemetry.ErrDeviceNotFound):
		return metrics.OutcomeDropped
	default:
		return metrics.OutcomeStoreError
	}
}
