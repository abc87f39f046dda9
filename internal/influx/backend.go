package influx

import (
	"errors"
	"strconv"
	"sync"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/tramsim/consist/pkg/core"
)

// Measurement names.
const (
	MeasurementCouplerSample = "coupler_sample"
	MeasurementCouplingEvent = "coupling_event"
	MeasurementMessage       = "message"
	MeasurementVar           = "var"
)

// Backend writes the trace as telemetry points into the manager's bucket.
// Car registration has no point of its own; cars appear as tags.
type Backend struct {
	m *Manager

	mu      sync.RWMutex
	session core.Session
	started bool
}

// NewBackend wraps a manager. Init connects it.
func NewBackend(m *Manager) *Backend {
	return &Backend{m: m}
}

func (b *Backend) bucket() string {
	return b.m.Config.Bucket
}

// Init connects the manager.
func (b *Backend) Init() error {
	return b.m.Connect()
}

// Close flushes and closes the manager.
func (b *Backend) Close() error {
	return b.m.Close()
}

// StartSession stores the session used for tags and var timestamps.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.session = *s
	b.started = true
	return nil
}

// EndSession flushes pending points.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	started := b.started
	b.started = false
	b.mu.Unlock()

	if !started {
		return errors.New("no session started")
	}
	return b.m.Flush()
}

// RegisterCar is a no-op.
func (b *Backend) RegisterCar(*core.Car) error {
	return nil
}

func (b *Backend) sessionID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.session.ID
}

// tickTime derives a timestamp for records that carry only a tick.
func (b *Backend) tickTime(tick uint64) time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	step := time.Duration(float64(b.session.DeltaTime) * float64(time.Second))
	return b.session.StartTime.Add(time.Duration(tick) * step)
}

func carTag(id core.CarID) string {
	return strconv.Itoa(int(id))
}

// RecordVar writes one variable value.
func (b *Backend) RecordVar(v *core.VarWrite) error {
	p := influxdb2_write.NewPoint(MeasurementVar,
		map[string]string{
			"session": b.sessionID(),
			"car":     carTag(v.CarID),
			"name":    v.Name,
		},
		map[string]any{
			"value": v.Value,
			"tick":  v.Tick,
		},
		b.tickTime(v.Tick),
	)
	return b.m.WritePoint(b.bucket(), p)
}

// RecordCouplerSample writes the coupler position and state.
func (b *Backend) RecordCouplerSample(s *core.CouplerSample) error {
	p := influxdb2_write.NewPoint(MeasurementCouplerSample,
		map[string]string{
			"session": b.sessionID(),
			"car":     carTag(s.Endpoint.CarID),
			"side":    s.Endpoint.Side.String(),
		},
		map[string]any{
			"pos":    s.Pos,
			"speed":  s.Speed,
			"state":  int(s.State),
			"linked": s.Linked,
			"bag":    s.Bag,
			"tick":   s.Tick,
		},
		s.Time,
	)
	return b.m.WritePoint(b.bucket(), p)
}

// RecordCouplingEvent writes a link change or state transition.
func (b *Backend) RecordCouplingEvent(e *core.CouplingEvent) error {
	fields := map[string]any{
		"from": e.From.String(),
		"to":   e.To.String(),
		"tick": e.Tick,
	}
	if e.Peer != nil {
		fields["peer"] = e.Peer.String()
	}
	p := influxdb2_write.NewPoint(MeasurementCouplingEvent,
		map[string]string{
			"session": b.sessionID(),
			"car":     carTag(e.Endpoint.CarID),
			"side":    e.Endpoint.Side.String(),
			"kind":    e.Kind,
		},
		fields,
		e.Time,
	)
	return b.m.WritePoint(b.bucket(), p)
}

// RecordMessage writes one message; drops carry their reason as a tag.
func (b *Backend) RecordMessage(r *core.MessageRecord) error {
	dropped := r.Dropped
	if dropped == "" {
		dropped = "none"
	}
	p := influxdb2_write.NewPoint(MeasurementMessage,
		map[string]string{
			"session": b.sessionID(),
			"schema":  r.Schema,
			"version": r.Version,
			"dropped": dropped,
		},
		map[string]any{
			"from": r.From.String(),
			"to":   r.To.String(),
			"tick": r.Tick,
		},
		r.Time,
	)
	return b.m.WritePoint(b.bucket(), p)
}
