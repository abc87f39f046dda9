package storage

import (
	"fmt"
	"log/slog"

	"github.com/rs/zerolog"
	"github.com/tramsim/consist/internal/config"
	"github.com/tramsim/consist/internal/influx"
	gormstorage "github.com/tramsim/consist/internal/storage/gorm"
	"github.com/tramsim/consist/internal/storage/memory"
	"github.com/tramsim/consist/internal/storage/postgres"
	sqlitestorage "github.com/tramsim/consist/internal/storage/sqlite"
)

// Dependencies are the settings and loggers the backends need besides
// StorageConfig.
type Dependencies struct {
	DB     config.DBConfig
	Influx config.InfluxConfig
	Logger *slog.Logger
	// StoreLogger is used by the influx manager.
	StoreLogger zerolog.Logger
}

// NewBackend creates a storage backend based on configuration. When influx
// is enabled and not already the primary backend, telemetry is written to
// it as well.
func NewBackend(cfg config.StorageConfig, deps Dependencies) (Backend, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	var primary Backend
	switch cfg.Type {
	case "postgres":
		primary = postgres.New(postgres.Dependencies{Config: deps.DB, Logger: deps.Logger})
	case "sqlite":
		b, err := sqlitestorage.New(sqlitestorage.Config{
			DumpPath:     cfg.SQLite.DumpPath,
			DumpInterval: cfg.SQLite.DumpInterval,
		}, deps.Logger)
		if err != nil {
			return nil, err
		}
		primary = b
	case "memory", "":
		primary = memory.New(cfg.Memory)
	case "influx":
		return influx.NewBackend(influx.NewManager(deps.StoreLogger, deps.Influx)), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}

	if deps.Influx.Enabled {
		return Multi{primary, influx.NewBackend(influx.NewManager(deps.StoreLogger, deps.Influx))}, nil
	}
	return primary, nil
}

var (
	_ Backend = (*memory.Backend)(nil)
	_ Backend = (*gormstorage.Backend)(nil)
	_ Backend = (*postgres.Backend)(nil)
	_ Backend = (*sqlitestorage.Backend)(nil)
	_ Backend = (*influx.Backend)(nil)
	_ Backend = Multi(nil)
)
