package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coinwatch/internal/logs"
	"coinwatch/internal/telemetry"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

const DefaultTopic = "coinwatch/devices/+/data"

type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
}

// Subscriber feeds every message on Topic to a Handler.
type Subscriber struct {
	client  mqtt.Client
	handler *Handler
	topic   string
	timeout time.Duration
}

// Connect dials the broker. Subscriptions are (re)made on every connect so
// they survive auto-reconnects.
func Connect(o Options, h *Handler) (*Subscriber, error) {
	if o.Topic == "" {
		o.Topic = DefaultTopic
	}
	s := &Subscriber{handler: h, topic: o.Topic, timeout: 10 * time.Second}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(o.Broker)
	opts.SetClientID(o.ClientID)
	opts.SetUsername(o.Username)
	opts.SetPassword(o.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		logs.Logger.WithField("broker", o.Broker).Info("mqtt connected")
		if t := c.Subscribe(s.topic, 1, s.onMessage); t.Wait() && t.Error() != nil {
			logs.Logger.WithError(t.Error()).WithField("topic", s.topic).Error("mqtt subscribe failed")
			return
		}
		logs.Logger.WithField("topic", s.topic).Info("mqtt subscribed")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logs.Logger.WithError(err).Warn("mqtt connection lost")
	})

	s.client = mqtt.NewClient(opts)
	if t := s.client.Connect(); t.Wait() && t.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", o.Broker, t.Error())
	}
	return s, nil
}

func (s *Subscriber) onMessage(_ mqtt.Client, msg mqtt.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	err := s.handler.Process(ctx, msg.Topic(), msg.Payload())
	if err == nil {
		return
	}
	entry := logs.Logger.WithFields(logrus.Fields{"topic": msg.Topic(), "error": err})
	switch {
	case errors.Is(err, telemetry.ErrDeviceNotFound):
		entry.Warn("message from unknown device dropped")
	case telemetry.IsValidation(err):
		entry.Warn("invalid message dropped")
	default:
		entry.Error("storing message failed")
	}
}

// ErrDisconnected is reported by Ping while the client is offline.
var ErrDisconnected = errors.New("mqtt: not connected")

func (s *Subscriber) IsConnected() bool { return s.client.IsConnected() }

// Ping lets the subscriber serve as a readiness check.
func (s *Subscriber) Ping(context.Context) error {
	if !s.IsConnected() {
		return ErrDisconnected
	}
	return nil
}

func (s *Subscriber) Close() {
	s.client.Unsubscribe(s.topic)
	s.client.Disconnect(250)
	logs.Logger.Info("mqtt disconnected")
}
