package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/tramsim/consist/internal/consist"
	"github.com/tramsim/consist/internal/dispatcher"
	"github.com/tramsim/consist/internal/influx"
	"github.com/tramsim/consist/internal/storage"
	"github.com/tramsim/consist/internal/util"
)

// RegisterHandlers registers all command handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Session lifecycle
	d.Register(":SESSION:START:", m.handleSessionStart, dispatcher.MinArgs(1), dispatcher.Logged())
	d.Register(":SESSION:END:", m.handleSessionEnd, dispatcher.Logged())

	// Consist topology
	d.Register(":CAR:ADD:", m.handleCarAdd, dispatcher.MinArgs(2), dispatcher.Logged())
	d.Register(":CAR:REMOVE:", m.handleCarRemove, dispatcher.MinArgs(1), dispatcher.Logged())
	d.Register(":COUPLE:", m.handleCouple, dispatcher.MinArgs(4), dispatcher.Logged())
	d.Register(":UNCOUPLE:", m.handleUncouple, dispatcher.MinArgs(2), dispatcher.Logged())

	// Per-frame traffic, not logged
	d.Register(":INPUT:", m.handleInput, dispatcher.MinArgs(2))
	d.Register(":TICK:", m.handleTick)
	d.Register(":VAR:GET:", m.handleVarGet, dispatcher.MinArgs(2))
	d.Register(":SNAPSHOT:", m.handleSnapshot)

	d.Register(":METRIC:", m.handleMetric, dispatcher.MinArgs(2))
	d.Register(":LOG:", m.handleLog, dispatcher.MinArgs(2))
}

func (m *Manager) handleSessionStart(e dispatcher.Event) (any, error) {
	s, err := m.deps.ParserService.ParseSession(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	if err := m.deps.Session.Start(&s); err != nil {
		return nil, err
	}
	if err := m.startConsist(&s); err != nil {
		m.deps.Session.End()
		return nil, err
	}
	if m.hasBackend() {
		if err := m.backend.StartSession(&s); err != nil {
			return nil, fmt.Errorf("failed to record session start: %w", err)
		}
	}

	m.deps.LogManager.Logger().Info("Session started", "id", s.ID, "name", s.Name, "deltaTime", s.DeltaTime)
	return s.ID, nil
}

// handleSessionEnd returns the path of the exported trace, if the backend
// writes one.
func (m *Manager) handleSessionEnd(e dispatcher.Event) (any, error) {
	s, err := m.deps.Session.End()
	if err != nil {
		return nil, err
	}
	cars := m.deps.CarCache.Len()
	m.stopConsist()

	var path string
	if m.hasBackend() {
		if err := m.backend.EndSession(); err != nil {
			return nil, fmt.Errorf("failed to record session end: %w", err)
		}
		if exp, ok := m.backend.(storage.Exporter); ok {
			path = exp.ExportedFilePath()
		}
	}

	m.deps.LogManager.Logger().Info("Session ended", "id", s.ID, "ticks", m.tick.Value(), "export", path)
	m.upload(s, path, cars)
	return path, nil
}

func (m *Manager) handleCarAdd(e dispatcher.Event) (any, error) {
	c, err := m.requireConsist()
	if err != nil {
		return nil, err
	}
	car, err := m.deps.ParserService.ParseCar(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to add car: %w", err)
	}
	car.SessionID = m.deps.Session.Get().ID

	if _, err := c.AddCar(car); err != nil {
		return nil, err
	}
	car.JoinTick = uint64(m.tick.Value())
	m.deps.CarCache.Add(car)

	if m.hasBackend() {
		if err := m.backend.RegisterCar(&car); err != nil {
			return nil, fmt.Errorf("failed to record car: %w", err)
		}
	}
	return car.ID, nil
}

func (m *Manager) handleCarRemove(e dispatcher.Event) (any, error) {
	c, err := m.requireConsist()
	if err != nil {
		return nil, err
	}
	id, err := m.deps.ParserService.ParseCarID(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to remove car: %w", err)
	}
	if err := c.RemoveCar(id); err != nil {
		return nil, err
	}
	m.deps.CarCache.Remove(id)

	m.mu.Lock()
	delete(m.sinks, id)
	m.mu.Unlock()
	return nil, nil
}

func (m *Manager) handleCouple(e dispatcher.Event) (any, error) {
	c, err := m.requireConsist()
	if err != nil {
		return nil, err
	}
	a, b, engaged, err := m.deps.ParserService.ParseLink(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to couple: %w", err)
	}
	var opts []consist.CoupleOption
	if engaged {
		opts = append(opts, consist.Engaged())
	}
	return nil, c.Couple(a, b, opts...)
}

func (m *Manager) handleUncouple(e dispatcher.Event) (any, error) {
	c, err := m.requireConsist()
	if err != nil {
		return nil, err
	}
	ep, err := m.deps.ParserService.ParseEndpoint(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to uncouple: %w", err)
	}
	return nil, c.Uncouple(ep)
}

func (m *Manager) handleInput(e dispatcher.Event) (any, error) {
	c, err := m.requireConsist()
	if err != nil {
		return nil, err
	}
	id, in, err := m.deps.ParserService.ParseInputs(e.Args)
	if err != nil {
		return nil, err
	}
	if _, ok := m.deps.CarCache.Get(id); !ok {
		return nil, fmt.Errorf("%w: %d", consist.ErrUnknownCar, id)
	}
	return nil, c.SetInputs(id, in)
}

// handleTick runs one frame. The optional argument is the frame time; the
// session's fixed delta is used when it is omitted.
func (m *Manager) handleTick(e dispatcher.Event) (any, error) {
	c, err := m.requireConsist()
	if err != nil {
		return nil, err
	}
	dt, err := m.deps.ParserService.ParseDelta(e.Args)
	if err != nil {
		return nil, err
	}
	if dt > 0 {
		m.deps.Clock.Set(dt)
	}

	m.tick.Inc()
	outs := c.Tick()
	if m.deps.Instruments != nil {
		m.deps.Instruments.Tick(context.Background())
	}
	return outs, nil
}

func (m *Manager) handleVarGet(e dispatcher.Event) (any, error) {
	id, err := m.deps.ParserService.ParseCarID(e.Args[:1])
	if err != nil {
		return nil, err
	}
	sink, ok := m.Sink(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", consist.ErrUnknownCar, id)
	}
	name := util.TrimQuotes(e.Args[1])
	v, ok := sink.Get(name)
	if !ok {
		return nil, fmt.Errorf("car %d has no variable %q", id, name)
	}
	return v, nil
}

func (m *Manager) handleSnapshot(e dispatcher.Event) (any, error) {
	c, err := m.requireConsist()
	if err != nil {
		return nil, err
	}
	return c.Snapshot(), nil
}

// handleMetric writes a host-defined point to influx.
func (m *Manager) handleMetric(e dispatcher.Event) (any, error) {
	if m.deps.Influx == nil {
		return nil, influx.ErrDisabled
	}
	bucket, point, err := influx.ProcessMetricData(e.Args, util.FixEscapeQuotes, util.TrimQuotes)
	if err != nil {
		return nil, fmt.Errorf("failed to process metric: %w", err)
	}
	return nil, m.deps.Influx.WritePoint(bucket, point)
}

// handleLog takes [function, message, level]; level defaults to info.
func (m *Manager) handleLog(e dispatcher.Event) (any, error) {
	args := make([]string, len(e.Args))
	copy(args, e.Args)
	util.CleanArgs(args)

	level := "info"
	if len(args) > 2 {
		level = args[2]
	}
	if args[1] == "" {
		return nil, errors.New("empty log message")
	}
	m.deps.LogManager.WriteLog(args[0], args[1], level)
	return nil, nil
}
