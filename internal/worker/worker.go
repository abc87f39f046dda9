package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tramsim/consist/internal/api"
	"github.com/tramsim/consist/internal/cache"
	"github.com/tramsim/consist/internal/consist"
	"github.com/tramsim/consist/internal/influx"
	"github.com/tramsim/consist/internal/logging"
	"github.com/tramsim/consist/internal/otel"
	"github.com/tramsim/consist/internal/parser"
	"github.com/tramsim/consist/internal/session"
	"github.com/tramsim/consist/internal/storage"
	"github.com/tramsim/consist/internal/vehicle"
	"github.com/tramsim/consist/pkg/core"
	"github.com/tramsim/consist/pkg/hostapi"
)

// ErrNoConsist is returned by car commands issued outside a session.
var ErrNoConsist = errors.New("no consist: start a session first")

// Uploader sends an exported trace to an archive.
type Uploader interface {
	Upload(path string, meta api.TraceMetadata) error
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	CarCache      *cache.CarCache
	LogManager    *logging.SlogManager
	ParserService parser.Service
	Session       *session.Context
	Clock         *hostapi.FrameClock
	Random        hostapi.RandomSource
	Configure     func(core.Car) vehicle.Config

	// optional
	Influx      *influx.Manager
	Instruments *otel.Instruments
	Uploader    Uploader
	UploadTag   string
}

// Manager owns the consist of the running session and turns host commands
// into consist operations.
type Manager struct {
	deps    Dependencies
	backend storage.Backend

	mu      sync.RWMutex
	consist *consist.Consist
	sinks   map[core.CarID]*hostapi.MapSink
	tick    cache.SafeCounter
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	if deps.CarCache == nil {
		deps.CarCache = cache.NewCarCache()
	}
	if deps.Session == nil {
		deps.Session = session.NewContext()
	}
	if deps.Clock == nil {
		deps.Clock = hostapi.NewFrameClock(0)
	}
	if deps.Random == nil {
		deps.Random = hostapi.NewSeededRandom(1)
	}
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	return &Manager{
		deps:    deps,
		backend: backend,
		sinks:   make(map[core.CarID]*hostapi.MapSink),
	}
}

// Consist returns the consist of the running session, or nil.
func (m *Manager) Consist() *consist.Consist {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.consist
}

// Tick returns the number of ticks run in this session.
func (m *Manager) Tick() int {
	return m.tick.Value()
}

// Sink returns the variable store of a car.
func (m *Manager) Sink(id core.CarID) (*hostapi.MapSink, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sinks[id]
	return s, ok
}

func (m *Manager) hasBackend() bool {
	return m.backend != nil
}

// startConsist replaces the consist with an empty one for s.
func (m *Manager) startConsist(s *core.Session) error {
	if s.DeltaTime > 0 {
		m.deps.Clock.Set(s.DeltaTime)
	}
	c, err := consist.New(consist.Deps{
		Clock:     m.deps.Clock,
		Random:    m.deps.Random,
		Sinks:     m.sinkFor,
		Logger:    m.deps.LogManager.Logger(),
		Recorder:  m,
		Configure: m.deps.Configure,
		Start:     s.StartTime,
	})
	if err != nil {
		return fmt.Errorf("failed to create consist: %w", err)
	}

	m.mu.Lock()
	m.consist = c
	m.sinks = make(map[core.CarID]*hostapi.MapSink)
	m.mu.Unlock()
	m.tick.Set(0)
	m.deps.CarCache.Reset()
	return nil
}

func (m *Manager) stopConsist() {
	m.mu.Lock()
	m.consist = nil
	m.mu.Unlock()
}

func (m *Manager) requireConsist() (*consist.Consist, error) {
	c := m.Consist()
	if c == nil {
		return nil, ErrNoConsist
	}
	return c, nil
}

// sinkFor hands every car a map-backed variable store. Changed values are
// recorded as var writes.
func (m *Manager) sinkFor(id core.CarID) hostapi.VariableSink {
	store := hostapi.NewMapSink()
	m.mu.Lock()
	m.sinks[id] = store
	m.mu.Unlock()

	return hostapi.SinkFunc(func(name string, value float32) {
		prev, seen := store.Get(name)
		store.SetVar(name, value)
		if (seen && prev == value) || !m.hasBackend() {
			return
		}
		v := core.VarWrite{CarID: id, Tick: uint64(m.tick.Value()), Name: name, Value: value}
		if err := m.backend.RecordVar(&v); err != nil {
			m.deps.LogManager.Logger().Error("Failed to record var", "car", id, "name", name, "error", err)
		}
	})
}

// RecordCouplerSample forwards a sample to the backend.
func (m *Manager) RecordCouplerSample(s *core.CouplerSample) error {
	if !m.hasBackend() {
		return nil
	}
	return m.backend.RecordCouplerSample(s)
}

// RecordCouplingEvent counts and forwards an event.
func (m *Manager) RecordCouplingEvent(e *core.CouplingEvent) error {
	if m.deps.Instruments != nil {
		m.deps.Instruments.CouplingEvent(context.Background(), e.Kind)
	}
	if !m.hasBackend() {
		return nil
	}
	return m.backend.RecordCouplingEvent(e)
}

// RecordMessage counts and forwards a sent or dropped message.
func (m *Manager) RecordMessage(r *core.MessageRecord) error {
	if m.deps.Instruments != nil {
		m.deps.Instruments.Message(context.Background(), r.Schema, r.Dropped)
	}
	if !m.hasBackend() {
		return nil
	}
	return m.backend.RecordMessage(r)
}

// DBWriteDurationProvider is an optional interface that backends can implement
// to expose their last DB write duration for monitoring.
type DBWriteDurationProvider interface {
	GetLastDBWriteDuration() time.Duration
}

// GetLastDBWriteDuration returns the duration of the last DB write cycle.
// Returns 0 if the backend doesn't support this metric.
func (m *Manager) GetLastDBWriteDuration() time.Duration {
	if p, ok := m.backend.(DBWriteDurationProvider); ok {
		return p.GetLastDBWriteDuration()
	}
	return 0
}

// PendingProvider is implemented by backends that queue writes.
type PendingProvider interface {
	Pending() int
}

// Pending returns the number of queued backend writes, 0 if unknown.
func (m *Manager) Pending() int {
	if p, ok := m.backend.(PendingProvider); ok {
		return p.Pending()
	}
	return 0
}

// SetUploader enables trace uploads after each session.
func (m *Manager) SetUploader(u Uploader) {
	m.deps.Uploader = u
}

// upload hands the exported trace of s to the uploader. Failures are logged;
// the trace stays on disk.
func (m *Manager) upload(s *core.Session, path string, cars int) {
	if m.deps.Uploader == nil || path == "" {
		return
	}
	ticks := m.tick.Value()
	meta := api.TraceMetadata{
		SessionID:   s.ID,
		SessionName: s.Name,
		Author:      s.Author,
		Cars:        cars,
		Ticks:       ticks,
		Duration:    float64(ticks) * float64(m.deps.Clock.Delta()),
		Tag:         m.deps.UploadTag,
	}
	logger := m.deps.LogManager.Logger()
	if err := m.deps.Uploader.Upload(path, meta); err != nil {
		logger.Error("Failed to upload trace", "path", path, "error", err)
		return
	}
	logger.Info("Trace uploaded", "path", path, "ticks", ticks)
}
