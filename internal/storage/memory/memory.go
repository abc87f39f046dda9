// internal/storage/memory/memory.go
package memory

import (
	"errors"
	"slices"
	"sync"

	"github.com/tramsim/consist/internal/config"
	"github.com/tramsim/consist/pkg/core"
)

// ErrNoSession is returned by EndSession when StartSession was not called.
var ErrNoSession = errors.New("no session started")

// CarRecord groups a car with all its time-series data
type CarRecord struct {
	Car     core.Car
	Samples []core.CouplerSample
	Vars    []core.VarWrite
}

// Counts are the number of records held per kind.
type Counts struct {
	Cars     int `json:"cars"`
	Samples  int `json:"samples"`
	Vars     int `json:"vars"`
	Events   int `json:"events"`
	Messages int `json:"messages"`
}

// Backend stores the session trace in memory and exports it to JSON
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session

	cars     map[core.CarID]*CarRecord
	events   []core.CouplingEvent
	messages []core.MessageRecord

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:  cfg,
		cars: make(map[core.CarID]*CarRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session and drops the previous trace.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.session = s
	b.cars = make(map[core.CarID]*CarRecord)
	b.events = nil
	b.messages = nil
	b.lastExportPath = ""
	return nil
}

// EndSession exports the trace.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	return b.exportJSON()
}

// RegisterCar adds a car. Registering an id again replaces the car and keeps
// its history.
func (b *Backend) RegisterCar(c *core.Car) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if rec, ok := b.cars[c.ID]; ok {
		rec.Car = *c
		return nil
	}
	b.cars[c.ID] = &CarRecord{Car: *c}
	return nil
}

// RecordVar records a variable write. Writes of unknown cars are ignored.
func (b *Backend) RecordVar(v *core.VarWrite) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if rec, ok := b.cars[v.CarID]; ok {
		rec.Vars = append(rec.Vars, *v)
	}
	return nil
}

// RecordCouplerSample records a coupler sample. Samples of unknown cars are ignored.
func (b *Backend) RecordCouplerSample(s *core.CouplerSample) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if rec, ok := b.cars[s.Endpoint.CarID]; ok {
		rec.Samples = append(rec.Samples, *s)
	}
	return nil
}

// RecordCouplingEvent records a coupling event
func (b *Backend) RecordCouplingEvent(e *core.CouplingEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	ev := *e
	if e.Peer != nil {
		peer := *e.Peer
		ev.Peer = &peer
	}
	b.events = append(b.events, ev)
	return nil
}

// RecordMessage records a cross-car message
func (b *Backend) RecordMessage(m *core.MessageRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, *m)
	return nil
}

// Car returns a copy of the record of a car.
func (b *Backend) Car(id core.CarID) (CarRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.cars[id]
	if !ok {
		return CarRecord{}, false
	}
	return CarRecord{
		Car:     rec.Car,
		Samples: slices.Clone(rec.Samples),
		Vars:    slices.Clone(rec.Vars),
	}, true
}

// Events returns a copy of the recorded coupling events.
func (b *Backend) Events() []core.CouplingEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.events)
}

// Messages returns a copy of the recorded messages.
func (b *Backend) Messages() []core.MessageRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.messages)
}

// Counts returns the number of records held.
func (b *Backend) Counts() Counts {
	b.mu.RLock()
	defer b.mu.RUnlock()

	c := Counts{Cars: len(b.cars), Events: len(b.events), Messages: len(b.messages)}
	for _, rec := range b.cars {
		c.Samples += len(rec.Samples)
		c.Vars += len(rec.Vars)
	}
	return c
}

// ExportedFilePath returns the path of the last export.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
