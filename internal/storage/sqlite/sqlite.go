// Package sqlitestorage implements the storage.Backend interface using an in-memory
// SQLite database with periodic disk dumps via VACUUM INTO.
// It wraps the GORM backend; the only SQLite-specific concerns are creating
// the in-memory DB and the dumps.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/tramsim/consist/internal/database"
	gormstorage "github.com/tramsim/consist/internal/storage/gorm"
	"gorm.io/gorm"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	DumpInterval time.Duration
	DumpPath     string // Path for periodic VACUUM INTO dumps
	// Path opens a file database instead of the shared in-memory one.
	Path string
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *gorm.DB
	cfg      Config
	log      *slog.Logger
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a new SQLite storage backend.
func New(cfg Config, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := database.GetSqliteDB(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQLite DB: %w", err)
	}

	return &Backend{
		Backend:  gormstorage.New(gormstorage.Dependencies{DB: db, Logger: logger}),
		db:       db,
		cfg:      cfg,
		log:      logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		go b.dumpLoop()
	} else {
		close(b.done)
	}
	return nil
}

// EndSession flushes the session and writes a final dump.
func (b *Backend) EndSession() error {
	if err := b.Backend.EndSession(); err != nil {
		return err
	}
	return b.Dump()
}

// Close stops the dump goroutine and closes the embedded GORM backend.
func (b *Backend) Close() error {
	select {
	case <-b.stopChan:
		return nil
	default:
		close(b.stopChan)
	}
	<-b.done
	return b.Backend.Close()
}

// Dump writes a snapshot to DumpPath. Without a DumpPath it does nothing.
func (b *Backend) Dump() error {
	if b.cfg.DumpPath == "" {
		return nil
	}
	start := time.Now()
	if err := b.Backend.Flush(); err != nil {
		return err
	}
	if err := database.DumpMemoryDBToDisk(b.db, b.cfg.DumpPath); err != nil {
		return err
	}
	b.log.Debug("Dumped to disk", "path", b.cfg.DumpPath, "duration", time.Since(start))
	return nil
}

// ExportedFilePath returns the dump path.
func (b *Backend) ExportedFilePath() string {
	return b.cfg.DumpPath
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Dump(); err != nil {
				b.log.Error("Error dumping to disk", "error", err)
			}
		}
	}
}
