// Package database opens the gorm connections used by the SQL trace
// backends: Postgres when reachable, otherwise a local SQLite database.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/tramsim/consist/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MemoryDSN is the shared in-memory SQLite database.
const MemoryDSN = "file::memory:?cache=shared"

var sqlitePragmas = []string{
	"PRAGMA user_version = 1;",
	"PRAGMA journal_mode = MEMORY;",
	"PRAGMA synchronous = OFF;",
	"PRAGMA cache_size = -32000;",
	"PRAGMA temp_store = MEMORY;",
}

// Manager handles database connections and operations.
type Manager struct {
	DB              *gorm.DB
	SqlDB           *sql.DB
	IsValid         bool
	ShouldSaveLocal bool
	SqliteFilePath  string
	Logger          zerolog.Logger
}

// NewManager creates a new database manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		Logger: log,
	}
}

// Connect establishes a database connection, falling back to SQLite if Postgres fails.
func (m *Manager) Connect(cfg config.DBConfig) error {
	var err error

	m.DB, err = GetPostgresDB(cfg)
	if err == nil {
		m.SqlDB, err = m.DB.DB()
		if err == nil {
			err = m.SqlDB.Ping()
		}
	}
	if err != nil {
		m.Logger.Error().Err(err).Msg("Failed to connect to Postgres DB, trying SQLite")
		return m.fallback()
	}

	m.Logger.Info().Str("host", cfg.Host).Msg("Connected to database")
	m.SqlDB.SetMaxOpenConns(10)
	m.IsValid = true
	return nil
}

func (m *Manager) fallback() error {
	m.ShouldSaveLocal = true
	db, err := GetSqliteDB(m.SqliteFilePath)
	if err != nil {
		m.IsValid = false
		return fmt.Errorf("failed to get local SQLite DB: %w", err)
	}
	m.DB = db
	if m.SqlDB, err = db.DB(); err != nil {
		m.IsValid = false
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	if m.SqliteFilePath == "" {
		m.Logger.Info().Msg("Using local SQLite DB in memory")
	} else {
		m.Logger.Info().Str("path", m.SqliteFilePath).Msg("Using local SQLite DB")
	}
	m.IsValid = true
	return nil
}

// Setup migrates the given models.
func (m *Manager) Setup(models ...any) error {
	if m.DB == nil {
		return fmt.Errorf("db not connected")
	}
	m.Logger.Info().Int("models", len(models)).Msg("Migrating schema")
	if err := m.DB.AutoMigrate(models...); err != nil {
		m.IsValid = false
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	m.Logger.Info().Msg("Database setup complete")
	return nil
}

// DumpMemoryToDisk vacuums the connected database to path.
func (m *Manager) DumpMemoryToDisk(path string) error {
	start := time.Now()
	if err := DumpMemoryDBToDisk(m.DB, path); err != nil {
		return err
	}
	m.Logger.Debug().Dur("duration", time.Since(start)).Str("path", path).Msg("Dumped memory DB to disk")
	return nil
}

// GetBackupDBPaths returns paths to all .db files in the given directory.
func GetBackupDBPaths(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var dbPaths []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".db") {
			dbPaths = append(dbPaths, filepath.Join(dir, file.Name()))
		}
	}
	return dbPaths, nil
}

// GetPostgresDB opens a Postgres connection. It does not ping.
func GetPostgresDB(cfg config.DBConfig) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        10000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
}

// GetSqliteDB opens a SQLite database. If path is empty, the shared
// in-memory database is used.
func GetSqliteDB(path string) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = MemoryDSN
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		CreateBatchSize:        2000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	for _, pragma := range sqlitePragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}
	return db, nil
}

// DumpMemoryDBToDisk vacuums the database to a disk file, replacing any
// existing file.
func DumpMemoryDBToDisk(db *gorm.DB, sqliteFilePath string) error {
	if sqliteFilePath == "" {
		return fmt.Errorf("sqlite file path not set")
	}

	if _, err := os.Stat(sqliteFilePath); err == nil {
		if err := os.Remove(sqliteFilePath); err != nil {
			return fmt.Errorf("error removing existing DB file: %w", err)
		}
	}

	quoted := strings.ReplaceAll(sqliteFilePath, "'", "''")
	if err := db.Exec("VACUUM INTO '" + quoted + "';").Error; err != nil {
		return fmt.Errorf("error dumping memory DB to disk: %w", err)
	}
	return nil
}
