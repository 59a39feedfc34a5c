// Package clickhouse stores the device_data event log in ClickHouse.
package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"coinwatch/internal/logs"
	"coinwatch/internal/store"
	"coinwatch/internal/telemetry"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"
)

// Options are the connection settings.
type Options struct {
	Addr     string
	Database string
	Username string
	Password string
}

// EventStore is a store.Source and store.EventWriter over ClickHouse.
type EventStore struct {
	conn driver.Conn
}

// Open connects, pings and creates the schema.
func Open(ctx context.Context, o Options) (*EventStore, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{o.Addr},
		Auth: clickhouse.Auth{
			Database: o.Database,
			Username: o.Username,
			Password: o.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}
	logs.Logger.Infof("connected to ClickHouse at %s", o.Addr)

	s := &EventStore{conn: conn}
	if err := s.InitSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// InitSchema creates the tables if they don't exist.
func (s *EventStore) InitSchema(ctx context.Context) error {
	for _, ddl := range AllTables() {
		if err := s.conn.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// selectQuery renders the filtered select and its positional args.
func selectQuery(f store.Filter) (string, []any) {
	var (
		preds []string
		args  []any
	)
	if f.DeviceID != "" {
		preds = append(preds, "device_id = ?")
		args = append(args, f.DeviceID)
	}
	if f.From != nil {
		preds = append(preds, "timestamp >= ?")
		args = append(args, *f.From)
	}
	if f.To != nil {
		preds = append(preds, "timestamp < ?")
		args = append(args, *f.To)
	}

	var b strings.Builder
	b.WriteString("SELECT id, device_id, data, timestamp FROM device_data")
	if len(preds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(preds, " AND "))
	}
	b.WriteString(" ORDER BY timestamp DESC, id DESC")
	if f.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, f.Limit)
	}
	return b.String(), args
}

func (s *EventStore) FindEvents(ctx context.Context, f store.Filter) ([]telemetry.Event, error) {
	query, args := selectQuery(f)
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, &telemetry.StoreError{Op: "find events", Err: err}
	}
	defer rows.Close()

	out := make([]telemetry.Event, 0)
	for rows.Next() {
		var (
			e   telemetry.Event
			raw string
		)
		if err := rows.Scan(&e.ID, &e.DeviceID, &raw, &e.Timestamp); err != nil {
			return nil, &telemetry.StoreError{Op: "scan event", Err: err}
		}
		p, err := telemetry.DecodePayload([]byte(raw))
		if err != nil {
			return nil, &telemetry.StoreError{Op: "scan event", Err: fmt.Errorf("row %s: %w", e.ID, err)}
		}
		e.Payload = p
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &telemetry.StoreError{Op: "find events", Err: err}
	}
	return out, nil
}

func (s *EventStore) AppendEvent(ctx context.Context, e telemetry.Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	raw, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	err = s.conn.Exec(ctx,
		"INSERT INTO device_data (id, device_id, data, timestamp) VALUES (?, ?, ?, ?)",
		e.ID, e.DeviceID, string(raw), e.Timestamp,
	)
	if err != nil {
		return &telemetry.StoreError{Op: "append event", Err: err}
	}
	return nil
}

// Ping checks the connection; used by readiness probes.
func (s *EventStore) Ping(ctx context.Context) error { return s.conn.Ping(ctx) }

func (s *EventStore) Close() error {
	if s.conn == nil {
		return nil
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("close clickhouse: %w", err)
	}
	return nil
}
