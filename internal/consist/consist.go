// Package consist holds the cars of a train, their links, and drives them
// once per host frame.
package consist

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/tramsim/consist/internal/message"
	"github.com/tramsim/consist/internal/vehicle"
	"github.com/tramsim/consist/pkg/core"
	"github.com/tramsim/consist/pkg/hostapi"
)

var (
	ErrUnknownCar   = errors.New("unknown car")
	ErrDuplicateCar = errors.New("car already added")
	ErrNotLinked    = errors.New("endpoint not linked")
)

// Recorder receives the trace of a running consist.
type Recorder interface {
	RecordCouplerSample(s *core.CouplerSample) error
	RecordCouplingEvent(e *core.CouplingEvent) error
	RecordMessage(m *core.MessageRecord) error
}

// SinkFactory returns the variable store of a car.
type SinkFactory func(id core.CarID) hostapi.VariableSink

// Deps are the host capabilities shared by all cars.
type Deps struct {
	Clock    hostapi.TimeSource
	Random   hostapi.RandomSource
	Sinks    SinkFactory
	Logger   *slog.Logger
	Recorder Recorder // optional
	// Configure returns the constants for a new car. Defaults to
	// vehicle.DefaultConfig.
	Configure func(core.Car) vehicle.Config
	// Start is the simulated wall time of tick 0.
	Start time.Time
}

// Link is one pair of joined endpoints.
type Link struct {
	A core.Endpoint `json:"a"`
	B core.Endpoint `json:"b"`
}

// Snapshot is the state of the whole consist after the last tick.
type Snapshot struct {
	Tick  uint64            `json:"tick"`
	Time  time.Time         `json:"time"`
	Cars  []vehicle.Outputs `json:"cars"`
	Links []Link            `json:"links"`
}

// Consist owns the transport and the cars attached to it.
type Consist struct {
	mu        sync.RWMutex
	deps      Deps
	log       *slog.Logger
	transport *message.Transport

	cars   map[core.CarID]*vehicle.Car
	order  []core.CarID
	inputs map[core.CarID]vehicle.Inputs

	tick    uint64
	elapsed time.Duration
}

// New creates an empty consist.
func New(deps Deps) (*Consist, error) {
	if deps.Clock == nil || deps.Random == nil || deps.Sinks == nil {
		return nil, errors.New("consist: clock, random and sinks are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Configure == nil {
		deps.Configure = vehicle.DefaultConfig
	}

	tr, err := message.NewTransport()
	if err != nil {
		return nil, fmt.Errorf("consist: %w", err)
	}

	c := &Consist{
		deps:      deps,
		log:       deps.Logger,
		transport: tr,
		cars:      make(map[core.CarID]*vehicle.Car),
		inputs:    make(map[core.CarID]vehicle.Inputs),
	}
	if deps.Recorder != nil {
		tr.OnRecord(func(r core.MessageRecord) {
			r.Time = c.now()
			if err := deps.Recorder.RecordMessage(&r); err != nil {
				c.log.Error("Failed to record message", "error", err)
			}
		})
	}
	return c, nil
}

// now must be called with c.mu held.
func (c *Consist) now() time.Time {
	return c.deps.Start.Add(c.elapsed)
}

// AddCar builds and attaches a car.
func (c *Consist) AddCar(car core.Car) (*vehicle.Car, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.cars[car.ID]; ok {
		return nil, fmt.Errorf("%w: %d", ErrDuplicateCar, car.ID)
	}
	car.JoinTick = c.tick
	if car.JoinTime.IsZero() {
		car.JoinTime = c.now()
	}

	v, err := vehicle.New(c.deps.Configure(car), vehicle.Deps{
		Bus:    c.transport,
		Clock:  c.deps.Clock,
		Random: c.deps.Random,
		Sink:   c.deps.Sinks(car.ID),
		Logger: c.log,
	})
	if err != nil {
		return nil, err
	}

	c.transport.Attach(car.ID, v.Router())
	c.cars[car.ID] = v
	c.order = append(c.order, car.ID)
	c.log.Info("Car added", "car", car.ID, "name", car.Name, "coupler", string(car.Coupler))
	return v, nil
}

// RemoveCar detaches a car, splitting its links.
func (c *Consist) RemoveCar(id core.CarID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.cars[id]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownCar, id)
	}
	for _, side := range []core.Side{core.SideFront, core.SideBack} {
		ep := core.Endpoint{CarID: id, Side: side}
		if peer, ok := c.transport.Peer(ep); ok {
			c.recordLink("unlink", ep, peer)
		}
	}
	c.transport.Detach(id)
	delete(c.cars, id)
	delete(c.inputs, id)
	c.order = slices.DeleteFunc(c.order, func(v core.CarID) bool { return v == id })
	for _, v := range c.cars {
		v.Forget(id)
	}
	c.log.Info("Car removed", "car", id)
	return nil
}

// CoupleOption configures Couple.
type CoupleOption func(*coupleOptions)

type coupleOptions struct {
	engaged bool
}

// Engaged closes both couplers immediately, as for cars that were coupled
// before the session started.
func Engaged() CoupleOption {
	return func(o *coupleOptions) { o.engaged = true }
}

// Couple links two endpoints. The coupling state follows from the couplers
// on the next tick.
func (c *Consist) Couple(a, b core.Endpoint, opts ...CoupleOption) error {
	var o coupleOptions
	for _, opt := range opts {
		opt(&o)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ca, ok := c.cars[a.CarID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownCar, a.CarID)
	}
	cb, ok := c.cars[b.CarID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownCar, b.CarID)
	}
	if err := c.transport.Join(a, b); err != nil {
		return fmt.Errorf("couple %s with %s: %w", a, b, err)
	}
	if o.engaged {
		ca.Engage(a.Side)
		cb.Engage(b.Side)
	}
	c.recordLink("link", a, b)
	c.log.Info("Endpoints linked", "a", a.String(), "b", b.String(), "engaged", o.engaged)
	return nil
}

// Uncouple splits the link at ep.
func (c *Consist) Uncouple(ep core.Endpoint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uncoupleLocked(ep)
}

func (c *Consist) uncoupleLocked(ep core.Endpoint) error {
	peer, ok := c.transport.Split(ep)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotLinked, ep)
	}
	c.recordLink("unlink", ep, peer)
	c.log.Info("Endpoints split", "a", ep.String(), "b", peer.String())
	return nil
}

func (c *Consist) recordLink(kind string, a, b core.Endpoint) {
	if c.deps.Recorder == nil {
		return
	}
	peer := b
	ev := core.CouplingEvent{
		Tick:     c.tick,
		Time:     c.now(),
		Endpoint: a,
		Peer:     &peer,
		Kind:     kind,
		From:     c.transport.State(a),
		To:       c.transport.State(a),
	}
	if err := c.deps.Recorder.RecordCouplingEvent(&ev); err != nil {
		c.log.Error("Failed to record coupling event", "error", err)
	}
}

// SetInputs stores the inputs a car uses on the next tick.
func (c *Consist) SetInputs(id core.CarID, in vehicle.Inputs) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.cars[id]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownCar, id)
	}
	c.inputs[id] = in
	return nil
}

// Tick runs every car once in insertion order, applies uncoupling requests
// and advances every mailbox by one tick. Inputs are consumed.
func (c *Consist) Tick() []vehicle.Outputs {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tick++
	c.elapsed += time.Duration(float64(c.deps.Clock.Delta()) * float64(time.Second))

	outs := make([]vehicle.Outputs, 0, len(c.order))
	var uncouple []core.Endpoint
	for _, id := range c.order {
		out := c.cars[id].Tick(c.inputs[id])
		outs = append(outs, out)
		uncouple = append(uncouple, out.Uncouple...)
		c.record(out)
	}
	clear(c.inputs)

	for _, ep := range uncouple {
		if err := c.uncoupleLocked(ep); err != nil {
			c.log.Debug("Uncouple request ignored", "endpoint", ep.String(), "error", err)
		}
	}

	c.transport.Advance()
	return outs
}

func (c *Consist) record(out vehicle.Outputs) {
	r := c.deps.Recorder
	if r == nil {
		return
	}
	now := c.now()
	for _, st := range out.Couplers {
		sample := core.CouplerSample{
			Endpoint: st.Endpoint,
			Tick:     c.tick,
			Time:     now,
			Pos:      st.Pos,
			Speed:    st.Speed,
			State:    st.State,
			Linked:   st.Linked,
			Bag:      st.Bag,
		}
		if err := r.RecordCouplerSample(&sample); err != nil {
			c.log.Error("Failed to record coupler sample", "error", err)
		}

		kind := ""
		switch {
		case st.Disengaged:
			kind = "disengaged"
		case st.Transition.Changed():
			kind = "state"
		}
		if kind == "" {
			continue
		}
		ev := core.CouplingEvent{
			Tick:     c.tick,
			Time:     now,
			Endpoint: st.Endpoint,
			Kind:     kind,
			From:     st.Transition.From,
			To:       st.Transition.To,
		}
		if err := r.RecordCouplingEvent(&ev); err != nil {
			c.log.Error("Failed to record coupling event", "error", err)
		}
	}
}

// Car returns the car with the given id.
func (c *Consist) Car(id core.CarID) (*vehicle.Car, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.cars[id]
	return v, ok
}

// Cars returns the ids in tick order.
func (c *Consist) Cars() []core.CarID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.order)
}

// Transport exposes the message transport, e.g. for drop statistics.
func (c *Consist) Transport() *message.Transport {
	return c.transport
}

// Snapshot returns the outputs of the last tick and the current links.
func (c *Consist) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{Tick: c.tick, Time: c.now()}
	for _, id := range c.order {
		s.Cars = append(s.Cars, c.cars[id].Last())
	}
	for a, b := range c.transport.Links() {
		s.Links = append(s.Links, Link{A: a, B: b})
	}
	slices.SortFunc(s.Links, func(x, y Link) int {
		if x.A.CarID != y.A.CarID {
			return int(x.A.CarID) - int(y.A.CarID)
		}
		return int(x.A.Side) - int(y.A.Side)
	})
	return s
}
