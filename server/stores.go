package server

import (
	"context"
	"fmt"

	"coinwatch/config"
	"coinwatch/internal/clickhouse"
	"coinwatch/internal/db"
	"coinwatch/internal/health"
	"coinwatch/internal/logs"
	"coinwatch/internal/repo"
	"coinwatch/internal/store"

	"gorm.io/gorm"
)

// Stores is the set of collaborators selected by store.backend.
type Stores struct {
	Roster  store.Roster
	Devices store.DeviceWriter
	Events  store.Source
	Writer  store.EventWriter
	Checks  map[string]health.Pinger

	db *gorm.DB
	ch *clickhouse.EventStore
}

// OpenStores connects the configured backends. The roster lives in the SQL
// database when one is configured and in memory otherwise; events follow
// store.backend.
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	s := &Stores{Checks: map[string]health.Pinger{}}

	if drv := cfg.Database.Driver; drv != "" {
		d, err := db.Open(drv, cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
		if err := db.Migrate(d); err != nil {
			return nil, err
		}
		s.db = d
		s.Checks["database"] = health.GormPinger(d)
	}

	var mem *store.MemStore
	if s.db != nil {
		ds := repo.NewDeviceStore(s.db, cfg.Fleet.HeartbeatTimeout)
		s.Roster, s.Devices = ds, ds
	} else {
		mem = store.NewMemStore(cfg.Fleet.HeartbeatTimeout)
		s.Roster, s.Devices = mem, mem
	}

	switch cfg.Store.Backend {
	case config.BackendGorm:
		es := repo.NewEventStore(s.db)
		s.Events, s.Writer = es, es
	case config.BackendClickHouse:
		ch, err := clickhouse.Open(ctx, clickhouse.Options{
			Addr:     cfg.ClickHouse.Addr,
			Database: cfg.ClickHouse.Database,
			Username: cfg.ClickHouse.Username,
			Password: cfg.ClickHouse.Password,
		})
		if err != nil {
			s.Close()
			return nil, err
		}
		s.ch = ch
		s.Events, s.Writer = ch, ch
		s.Checks["clickhouse"] = ch
	default:
		if mem == nil {
			mem = store.NewMemStore(cfg.Fleet.HeartbeatTimeout)
		}
		s.Events, s.Writer = mem, mem
	}

	logs.Logger.WithField("backend", cfg.Store.Backend).Info("stores ready")
	return s, nil
}

// Close releases the connections opened by OpenStores.
func (s *Stores) Close() {
	if s.ch != nil {
		if err := s.ch.Close(); err != nil {
			logs.Logger.WithError(err).Warn("clickhouse close")
		}
	}
	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
