// Package postgres implements the storage.Backend interface on PostgreSQL.
// It connects on Init and adds time indexes suited to trace queries; the
// queueing and writing is the GORM backend's.
package postgres

import (
	"fmt"
	"log/slog"

	"github.com/tramsim/consist/internal/config"
	"github.com/tramsim/consist/internal/database"
	gormstorage "github.com/tramsim/consist/internal/storage/gorm"
	"gorm.io/gorm"
)

// Dependencies holds all dependencies for the Postgres storage backend.
type Dependencies struct {
	Config config.DBConfig
	Logger *slog.Logger
	// DB skips connecting, e.g. in tests.
	DB *gorm.DB
}

// timeIndexes are BRIN indexes on the append-only tables.
var timeIndexes = map[string]string{
	"coupler_samples": "idx_coupler_samples_time_brin",
	"coupling_events": "idx_coupling_events_time_brin",
	"messages":        "idx_messages_time_brin",
}

// Backend is a GORM backend with a Postgres connection.
type Backend struct {
	*gormstorage.Backend
	deps Dependencies
	log  *slog.Logger
}

// New creates a new Postgres storage backend. It does not connect.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{DB: deps.DB, Logger: deps.Logger}),
		deps:    deps,
		log:     deps.Logger,
	}
}

// Init connects if no DB was injected, migrates and starts the writer.
func (b *Backend) Init() error {
	db := b.deps.DB
	if db == nil {
		var err error
		db, err = database.GetPostgresDB(b.deps.Config)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		if err = sqlDB.Ping(); err != nil {
			return fmt.Errorf("failed to validate connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
		b.Backend.SetDB(db)
	}

	if err := b.Backend.Init(); err != nil {
		return err
	}
	return b.setupIndexes(db)
}

// setupIndexes creates the BRIN time indexes. Other dialects are skipped.
func (b *Backend) setupIndexes(db *gorm.DB) error {
	if db.Name() != "postgres" {
		b.log.Debug("Skipping time indexes", "dialect", db.Name())
		return nil
	}
	for table, index := range timeIndexes {
		stmt := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING BRIN (time);`, index, table)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", index, err)
		}
	}
	b.log.Info("Time indexes ready", "count", len(timeIndexes))
	return nil
}
