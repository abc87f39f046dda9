// Package gormstorage implements the storage.Backend interface on any gorm
// dialect, with internal queues and a background DB writer goroutine.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tramsim/consist/internal/queue"
	"github.com/tramsim/consist/pkg/core"
	"gorm.io/gorm"
)

// DefaultFlushInterval is the period of the background writer.
const DefaultFlushInterval = 2 * time.Second

// ErrNoSession is returned by EndSession when StartSession was not called.
var ErrNoSession = errors.New("no session started")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	FlushInterval time.Duration
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Cars           *queue.Queue[Car]
	Samples        *queue.Queue[CouplerSample]
	Vars           *queue.Queue[VarWrite]
	CouplingEvents *queue.Queue[CouplingEvent]
	Messages       *queue.Queue[Message]
}

func newQueues() *queues {
	return &queues{
		Cars:           queue.New[Car](),
		Samples:        queue.New[CouplerSample](),
		Vars:           queue.New[VarWrite](),
		CouplingEvents: queue.New[CouplingEvent](),
		Messages:       queue.New[Message](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
// Without a DB it only queues, which is what the unit tests use.
type Backend struct {
	deps      Dependencies
	log       *slog.Logger
	queues    *queues
	sessionID atomic.Pointer[string]

	writeMu   sync.Mutex
	lastWrite atomic.Int64 // nanoseconds

	stopChan chan struct{}
	done     chan struct{}
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	return &Backend{
		deps:   deps,
		log:    deps.Logger,
		queues: newQueues(),
	}
}

// SetDB injects the connection before Init.
func (b *Backend) SetDB(db *gorm.DB) {
	b.deps.DB = db
}

// DB returns the connection, nil in queue-only mode.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration and starts the DB writer goroutine.
func (b *Backend) Init() error {
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})

	if b.deps.DB == nil {
		close(b.done)
		return nil
	}

	b.log.Info("Migrating schema", "dialect", b.deps.DB.Name())
	if err := b.deps.DB.AutoMigrate(Models...); err != nil {
		close(b.done)
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	go b.writerLoop()
	return nil
}

// Close stops the writer and flushes what is still queued.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	select {
	case <-b.stopChan:
		return nil
	default:
		close(b.stopChan)
	}
	<-b.done
	return b.Flush()
}

func (b *Backend) currentSession() string {
	if id := b.sessionID.Load(); id != nil {
		return *id
	}
	return ""
}

// StartSession inserts the session row synchronously.
func (b *Backend) StartSession(s *core.Session) error {
	id := s.ID
	b.sessionID.Store(&id)

	if b.deps.DB == nil {
		return nil
	}
	row := sessionFromCore(*s)
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// EndSession flushes the queues and stamps the end time.
func (b *Backend) EndSession() error {
	id := b.currentSession()
	if id == "" {
		return ErrNoSession
	}
	if err := b.Flush(); err != nil {
		return err
	}
	if b.deps.DB == nil {
		return nil
	}
	return b.deps.DB.Model(&Session{}).Where("id = ?", id).Update("end_time", time.Now()).Error
}

// RegisterCar queues a car row.
func (b *Backend) RegisterCar(c *core.Car) error {
	b.queues.Cars.Push(carFromCore(b.currentSession(), *c))
	return nil
}

// RecordVar queues a variable write.
func (b *Backend) RecordVar(v *core.VarWrite) error {
	b.queues.Vars.Push(varFromCore(b.currentSession(), *v))
	return nil
}

// RecordCouplerSample queues a coupler sample.
func (b *Backend) RecordCouplerSample(s *core.CouplerSample) error {
	b.queues.Samples.Push(sampleFromCore(b.currentSession(), *s))
	return nil
}

// RecordCouplingEvent queues a coupling event.
func (b *Backend) RecordCouplingEvent(e *core.CouplingEvent) error {
	b.queues.CouplingEvents.Push(eventFromCore(b.currentSession(), *e))
	return nil
}

// RecordMessage queues a message.
func (b *Backend) RecordMessage(m *core.MessageRecord) error {
	b.queues.Messages.Push(messageFromCore(b.currentSession(), *m))
	return nil
}

// Pending returns the number of queued rows.
func (b *Backend) Pending() int {
	q := b.queues
	return q.Cars.Len() + q.Samples.Len() + q.Vars.Len() + q.CouplingEvents.Len() + q.Messages.Len()
}

// GetLastDBWriteDuration returns the duration of the last write cycle.
func (b *Backend) GetLastDBWriteDuration() time.Duration {
	return time.Duration(b.lastWrite.Load())
}

// Flush writes every queue now. Failed batches are requeued and reported.
func (b *Backend) Flush() error {
	if b.deps.DB == nil {
		return nil
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	start := time.Now()
	db := b.deps.DB
	err := errors.Join(
		writeQueue(db, b.queues.Cars, "cars", b.log),
		writeQueue(db, b.queues.Samples, "coupler samples", b.log),
		writeQueue(db, b.queues.Vars, "var writes", b.log),
		writeQueue(db, b.queues.CouplingEvents, "coupling events", b.log),
		writeQueue(db, b.queues.Messages, "messages", b.log),
	)
	b.lastWrite.Store(int64(time.Since(start)))
	return err
}

// writeQueue writes all items from a queue to the database in a transaction.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log *slog.Logger) error {
	if q.Empty() {
		return nil
	}

	items := q.Drain()
	tx := db.Begin()
	if err := tx.Create(&items).Error; err != nil {
		log.Error("Error creating rows", "table", name, "count", len(items), "error", err)
		tx.Rollback()
		q.Push(items...)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return tx.Commit().Error
}

func (b *Backend) writerLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.log.Debug("Write cycle incomplete", "error", err)
			}
		}
	}
}
