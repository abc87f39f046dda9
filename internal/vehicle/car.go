// Package vehicle drives a single car: its two couplers, the control lines it
// shares with its neighbours and the cab equipment fed by them.
package vehicle

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/tramsim/consist/internal/cache"
	"github.com/tramsim/consist/internal/coupling"
	"github.com/tramsim/consist/internal/message"
	"github.com/tramsim/consist/internal/physics"
	"github.com/tramsim/consist/pkg/core"
	"github.com/tramsim/consist/pkg/hostapi"
)

// Bus is the part of the transport a car talks to.
type Bus interface {
	message.Channel
	Peer(ep core.Endpoint) (core.Endpoint, bool)
	SetState(ep core.Endpoint, s core.CouplingState)
	CountDrop(key message.Key, reason string)
}

// Config holds the per-car constants.
type Config struct {
	Car        core.Car
	Thresholds coupling.Thresholds
	Hand       physics.HandCouplerConfig
	Door       physics.HandDoorConfig
	Ramp       physics.SliderConfig

	// BagDelayMin and BagDelayMax bound the random time after coupling until
	// the bellows are fitted, in seconds.
	BagDelayMin float32
	BagDelayMax float32

	RailbrakeDelay float32
}

// DefaultConfig returns the GT6N constants for car.
func DefaultConfig(car core.Car) Config {
	return Config{
		Car:         car,
		Thresholds:  coupling.HandCoupler,
		Hand:        physics.DefaultHandCoupler,
		Door:        physics.DefaultHandDoor,
		Ramp:        physics.DefaultRamp,
		BagDelayMin: 0,
		BagDelayMax: 1,
	}
}

// Deps are the host capabilities a car uses.
type Deps struct {
	Bus    Bus
	Clock  hostapi.TimeSource
	Random hostapi.RandomSource
	Sink   hostapi.VariableSink
	Logger *slog.Logger
}

// RampControls move the folding ramp.
type RampControls struct {
	Grabbing bool    `yaml:"grab" json:"grab"`
	Delta    float32 `yaml:"delta" json:"delta"`
}

// IntercomControls are the intercom buttons of one car.
type IntercomControls struct {
	Press   bool `yaml:"press" json:"press"`     // passenger call button
	Confirm bool `yaml:"confirm" json:"confirm"` // driver accepts the call
	Hangup  bool `yaml:"hangup" json:"hangup"`   // driver ends the call
}

// Inputs are polled once per tick.
type Inputs struct {
	Couplers [2]CouplerControls `yaml:"couplers" json:"couplers"`

	Cab            core.CabSide            `yaml:"cab" json:"cab"`
	CarActive      bool                    `yaml:"carActive" json:"carActive"`
	Railbrake      bool                    `yaml:"railbrake" json:"railbrake"`
	SpringBrake    bool                    `yaml:"springBrake" json:"springBrake"`
	Sanding        bool                    `yaml:"sanding" json:"sanding"`
	EmergencyBrake bool                    `yaml:"emergencyBrake" json:"emergencyBrake"`
	DoorTarget     core.DoorTarget         `yaml:"doorTarget" json:"doorTarget"`
	Reverser       core.DirectionOfDriving `yaml:"reverser" json:"reverser"`
	Throttle       float32                 `yaml:"throttle" json:"throttle"`
	Video          bool                    `yaml:"video" json:"video"`
	ControlVoltage float32                 `yaml:"controlVoltage" json:"controlVoltage"`

	Door     physics.DoorInput `yaml:"door" json:"door"`
	Ramp     RampControls      `yaml:"ramp" json:"ramp"`
	Intercom IntercomControls  `yaml:"intercom" json:"intercom"`
}

// Outputs is the state of a car after a tick.
type Outputs struct {
	CarID     core.CarID       `json:"carId"`
	Tick      uint64           `json:"tick"`
	Lines     LineValues       `json:"lines"`
	Couplers  [2]CouplerStatus `json:"couplers"`
	Railbrake bool             `json:"railbrakeActive"`
	Intercom  IntercomStatus   `json:"intercom"`
	CabDoor   float32          `json:"cabDoor"`
	Ramp      float32          `json:"ramp"`
	// RampImpact is the speed at which the ramp hit an end stop this tick.
	RampImpact float32 `json:"rampImpact"`

	// Uncouple lists the endpoints whose uncoupling lever was pulled while
	// coupled. The consist splits them after the tick.
	Uncouple []core.Endpoint `json:"uncouple,omitempty"`
}

// Car is one vehicle of a consist.
type Car struct {
	info   core.Car
	deps   Deps
	log    *slog.Logger
	vars   *vars
	router *message.Router

	couplers  [2]*coupler
	lines     *lines
	railbrake *railbrake
	door      *physics.HandDoor
	ramp      *physics.Slider

	station  station
	intercom uint8
	caller   core.CarID // origin of the current call, 0 if none
	lost     bool       // the current call's origin went away
	seq      uint32
	calls    *cache.RelayCache
	confirms *cache.RelayCache
	via      map[core.CarID]core.Side // side each remote origin was heard on

	tick uint64
	last Outputs
}

var sides = [2]core.Side{core.SideFront, core.SideBack}

// New builds a car. The caller attaches Router() to the transport.
func New(cfg Config, deps Deps) (*Car, error) {
	if deps.Bus == nil || deps.Clock == nil || deps.Random == nil || deps.Sink == nil {
		return nil, errors.New("vehicle: bus, clock, random and sink are required")
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("car %d: %w", cfg.Car.ID, err)
	}
	if cfg.BagDelayMax < cfg.BagDelayMin {
		return nil, fmt.Errorf("car %d: bag delay max %v below min %v", cfg.Car.ID, cfg.BagDelayMax, cfg.BagDelayMin)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Car{
		info:      cfg.Car,
		deps:      deps,
		log:       logger.With("car", cfg.Car.ID),
		vars:      newVars(deps.Sink),
		router:    message.NewRouter(),
		lines:     newLines(),
		railbrake: newRailbrake(cfg.RailbrakeDelay),
		station:   station{id: cfg.Car.Station},
		calls:     cache.NewRelayCache(),
		confirms:  cache.NewRelayCache(),
		via:       make(map[core.CarID]core.Side),
	}

	for _, side := range sides {
		cp, err := newCoupler(c.endpoint(side), cfg, deps.Clock)
		if err != nil {
			return nil, fmt.Errorf("car %d %s coupler: %w", cfg.Car.ID, side, err)
		}
		c.couplers[side] = cp
	}

	var err error
	if c.door, err = physics.NewHandDoor(cfg.Door, deps.Clock); err != nil {
		return nil, fmt.Errorf("car %d: %w", cfg.Car.ID, err)
	}
	if c.ramp, err = physics.NewSlider(cfg.Ramp, deps.Clock); err != nil {
		return nil, fmt.Errorf("car %d: %w", cfg.Car.ID, err)
	}

	c.registerHandlers()
	return c, nil
}

func (c *Car) registerHandlers() {
	for _, b := range c.lines.all {
		b.register(c.router)
	}
	message.Handle(c.router, func(e message.Envelope, p message.BagVisibility) {
		c.couplers[e.To.Side].peerBag = p.Value
	})
	message.Handle(c.router, func(e message.Envelope, p message.Ecoupler) {
		c.couplers[e.To.Side].peerState = p.State
	})
	message.Handle(c.router, c.onIntercomCall)
	message.Handle(c.router, c.onIntercomConfirm)

	c.router.OnDrop(func(e message.Envelope, err error) {
		reason := message.Reason(err)
		c.deps.Bus.CountDrop(e.Key(), reason)
		c.log.Debug("Dropped received message", "schema", e.Key().String(), "at", e.To.String(), "reason", reason)
	})
}

// ID returns the car id.
func (c *Car) ID() core.CarID { return c.info.ID }

// Info returns the registration data of the car.
func (c *Car) Info() core.Car { return c.info }

// Router is the message table of the car. It doubles as the transport's
// Acceptor.
func (c *Car) Router() *message.Router { return c.router }

// Last returns the outputs of the previous tick.
func (c *Car) Last() Outputs { return c.last }

// Engage closes the coupler at side, for consists that start coupled.
func (c *Car) Engage(side core.Side) {
	c.couplers[side].engage()
}

func (c *Car) endpoint(side core.Side) core.Endpoint {
	return core.Endpoint{CarID: c.info.ID, Side: side}
}

// Tick runs one frame: receive, integrate, derive coupling states, evaluate
// lines, publish.
func (c *Car) Tick(in Inputs) Outputs {
	c.tick++
	dt := c.deps.Clock.Delta()
	out := Outputs{CarID: c.info.ID, Tick: c.tick}

	for _, side := range sides {
		c.router.DispatchAll(c.deps.Bus.Receive(c.endpoint(side)))
	}

	var sendBag [2]bool
	for _, side := range sides {
		ep := c.endpoint(side)
		_, linked := c.deps.Bus.Peer(ep)
		res := c.couplers[side].tick(in.Couplers[side], linked, dt, c.deps.Random)
		st := res.status
		c.deps.Bus.SetState(ep, st.State)

		if st.Transition.Changed() {
			c.log.Info("Coupling state changed", "endpoint", ep.String(), "from", st.Transition.From.String(), "to", st.Transition.To.String())
		}
		if st.Reset {
			c.log.Warn("Coupler integrator reset", "endpoint", ep.String())
		}
		if st.State != core.StateCoupled {
			for _, b := range c.lines.all {
				b.drop(side)
			}
		}
		if st.Transition.Left(core.StateCoupled) {
			c.forgetSide(side)
		}
		if res.uncouple {
			out.Uncouple = append(out.Uncouple, ep)
		}
		sendBag[side] = res.sendBag
		out.Couplers[side] = st
	}

	for _, b := range c.lines.all {
		b.step(&in)
	}
	out.Lines = c.lines.values()

	rb, changed := c.railbrake.tick(out.Lines.Railbrake, in.ControlVoltage, dt)
	if changed {
		c.log.Debug("Railbrake switched", "active", rb)
	}
	out.Railbrake = rb

	out.CabDoor = c.door.Tick(in.Door).Pos
	ramp := c.ramp.Tick(in.Ramp.Grabbing, in.Ramp.Delta)
	out.Ramp = ramp.Pos
	out.RampImpact = abs32(ramp.Impact)

	c.handleIntercom(in.Intercom, in.Cab)

	for _, side := range sides {
		if c.couplers[side].state() != core.StateCoupled {
			continue
		}
		for _, b := range c.lines.all {
			c.send(side, in.Cab, b.outgoing(side))
		}
		c.send(side, in.Cab, message.Ecoupler{State: core.StateCoupled})
		if sendBag[side] {
			c.send(side, in.Cab, message.BagVisibility{Value: out.Couplers[side].Bag})
		}
	}

	var started bool
	out.Intercom, started = c.station.tick(c.intercom, dt)
	if started {
		c.log.Info("Intercom talking", "station", c.station.id)
	}

	c.publish(&out)
	c.last = out
	return out
}

func (c *Car) send(side core.Side, cab core.CabSide, p message.Payload) {
	if err := c.deps.Bus.Send(c.endpoint(side), message.New(cab, p)); err != nil {
		c.log.Debug("Message not sent", "error", err, "reason", message.Reason(err))
	}
}

// sendCoupled sends p on every coupled endpoint except skip.
func (c *Car) sendCoupled(cab core.CabSide, p message.Payload, skip *core.Side) {
	for _, side := range sides {
		if skip != nil && side == *skip {
			continue
		}
		if c.couplers[side].state() == core.StateCoupled {
			c.send(side, cab, p)
		}
	}
}

func (c *Car) handleIntercom(ctrl IntercomControls, cab core.CabSide) {
	if c.lost {
		c.lost = false
		if c.intercom == 0 {
			c.seq++
			c.calls.Mark(c.info.ID, c.seq)
			c.sendCoupled(cab, message.IntercomCall{Origin: c.info.ID, Seq: c.seq}, nil)
		}
	}

	switch {
	case ctrl.Press && c.station.id != 0 && c.intercom == 0:
		c.seq++
		c.intercom = c.station.id
		c.caller = c.info.ID
		c.calls.Mark(c.info.ID, c.seq)
		c.sendCoupled(cab, message.IntercomCall{Origin: c.info.ID, Seq: c.seq, Station: c.station.id}, nil)
	case ctrl.Confirm && c.intercom != 0:
		c.seq++
		c.confirms.Mark(c.info.ID, c.seq)
		c.station.confirm(c.intercom)
		c.sendCoupled(cab, message.IntercomConfirm{Origin: c.info.ID, Seq: c.seq, Station: c.intercom}, nil)
	case ctrl.Hangup && c.intercom != 0:
		c.seq++
		c.intercom = 0
		c.caller = 0
		c.calls.Mark(c.info.ID, c.seq)
		c.sendCoupled(cab, message.IntercomCall{Origin: c.info.ID, Seq: c.seq}, nil)
	}
}

func (c *Car) onIntercomCall(e message.Envelope, p message.IntercomCall) {
	if !c.calls.Mark(p.Origin, p.Seq) {
		return
	}
	c.via[p.Origin] = e.To.Side
	c.intercom = p.Station
	c.caller = 0
	if p.Station != 0 {
		c.caller = p.Origin
	}
	from := e.To.Side
	c.sendCoupled(e.Cab, p, &from)
}

func (c *Car) onIntercomConfirm(e message.Envelope, p message.IntercomConfirm) {
	if !c.confirms.Mark(p.Origin, p.Seq) {
		return
	}
	c.via[p.Origin] = e.To.Side
	c.station.confirm(p.Station)
	from := e.To.Side
	c.sendCoupled(e.Cab, p, &from)
}

// Forget drops the relay history of origin. A call placed by origin is
// cleared here and hung up towards the remaining neighbours by the next
// intercom update of this car.
func (c *Car) Forget(origin core.CarID) {
	if origin == c.info.ID {
		return
	}
	c.calls.Forget(origin)
	c.confirms.Forget(origin)
	delete(c.via, origin)
	if c.caller == origin {
		c.intercom = 0
		c.caller = 0
		c.lost = true
	}
}

// forgetSide forgets every origin heard through side.
func (c *Car) forgetSide(side core.Side) {
	for origin, s := range c.via {
		if s == side {
			c.Forget(origin)
		}
	}
}

func (c *Car) publish(out *Outputs) {
	v := c.vars
	for _, side := range sides {
		st := out.Couplers[side]
		v.setSide(VarCouplingState, side, float32(st.State))
		v.setSide(VarCouplerHingeA, side, st.Pos)
		v.setSide(VarCouplerHingeB, side, min(max(st.Pos*1.1-0.1, 0), 1))
		v.setSide(VarCouplerVisible, side, b2f(!st.CabCover))
		v.setSide(VarCabCover, side, b2f(st.CabCover))
		v.setSide(VarBag, side, b2f(st.Bag))
		v.setSide(VarElectricOpen, side, b2f(c.couplers[side].electricOpen))
		v.setSide(VarPeerState, side, float32(st.PeerState))
	}

	l := out.Lines
	v.set(VarCarActive, b2f(l.CarActive))
	v.set(VarRailbrakeTarget, b2f(l.Railbrake))
	v.set(VarSpringBrake, b2f(l.SpringBrake))
	v.set(VarSanding, b2f(l.Sanding))
	v.set(VarEmergencyBrake, b2f(l.EmergencyBrake))
	v.set(VarDoorTarget, float32(l.DoorTarget))
	v.set(VarReverserForward, b2f(l.Reverser.Forward))
	v.set(VarReverserBackward, b2f(l.Reverser.Backward))
	v.set(VarThrottle, l.Throttle)
	v.set(VarVideo, b2f(l.Video))
	v.set(VarRailbrake, b2f(out.Railbrake))
	v.set(VarIntercomRed, b2f(out.Intercom.Red))
	v.set(VarIntercomGreen, b2f(out.Intercom.Green))
	v.set(VarIntercomYellow, b2f(out.Intercom.Yellow))
	v.set(VarCabDoor, out.CabDoor)
	v.set(VarRamp, out.Ramp)
	v.set(VarRampImpact, out.RampImpact)
}
