package physics

import (
	"fmt"

	"github.com/tramsim/consist/pkg/hostapi"
)

// HandDoorConfig holds the constants of a hinged cab door.
type HandDoorConfig struct {
	Reflect    float32 `mapstructure:"reflect"`
	Damping    float32 `mapstructure:"damping"`
	BumpFactor float32 `mapstructure:"bumpFactor"`
}

// DefaultHandDoor is the GT6N cab door.
var DefaultHandDoor = HandDoorConfig{
	Reflect:    0.049,
	Damping:    1.5,
	BumpFactor: 0.2,
}

// Validate checks the constants.
func (c HandDoorConfig) Validate() error {
	if c.Reflect <= 0 || c.Reflect >= 0.5 {
		return fmt.Errorf("door reflect threshold must be in (0,0.5), got %v", c.Reflect)
	}
	if c.BumpFactor < 0 || c.BumpFactor > 1 {
		return fmt.Errorf("door bump factor must be in [0,1], got %v", c.BumpFactor)
	}
	if c.Damping < 0 {
		return fmt.Errorf("door damping must not be negative, got %v", c.Damping)
	}
	return nil
}

// DoorInput is the per-tick input of a hand door. Force is the hand movement
// in position units, Physic the acceleration acting on the leaf from braking
// or curves.
type DoorInput struct {
	Force   float32 `yaml:"force" json:"force"`
	Physic  float32 `yaml:"physic" json:"physic"`
	HandleA bool    `yaml:"handleA" json:"handleA"` // inside handle, opens with positive force
	HandleB bool    `yaml:"handleB" json:"handleB"` // outside handle, opens with negative force
}

// HandDoor is a hinged door with a latch. A closed door only opens while a
// handle is held, and a free door cannot rest between closed and the latch
// detent: it falls shut.
type HandDoor struct {
	cfg    HandDoorConfig
	clock  hostapi.TimeSource
	damper Damper

	pos     float32
	speed   float32
	latched bool
}

// NewHandDoor creates a closed, latched door.
func NewHandDoor(cfg HandDoorConfig, clock hostapi.TimeSource) (*HandDoor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("hand door: %w", err)
	}
	return &HandDoor{cfg: cfg, clock: clock, damper: Damper{Rate: cfg.Damping}, latched: true}, nil
}

// Tick advances the door by one frame. Result.Disengaged reports that the door
// fell shut this tick.
func (d *HandDoor) Tick(in DoorInput) Result {
	dt := d.clock.Delta()
	lastPos := d.pos

	if !finite(in.Force) || !finite(in.Physic) {
		d.speed = 0
		return Result{Pos: d.pos, Reset: true}
	}

	res := d.step(in, dt, lastPos)
	if !finite(d.pos) || !finite(d.speed) {
		d.pos = clamp01(lastPos)
		d.speed = 0
		res = Result{Reset: true}
	}
	res.Pos = d.pos
	res.Speed = d.speed
	return res
}

func (d *HandDoor) step(in DoorInput, dt, lastPos float32) Result {
	held := in.HandleA || in.HandleB

	if d.pos <= 0 && !held {
		d.pos = 0
		d.speed = 0
		d.latched = true
		return Result{}
	}
	d.latched = false

	switch {
	case in.HandleA:
		d.pos = clamp01(d.pos + in.Force)
		d.speed = velocity(in.Force, dt)
	case in.HandleB:
		d.pos = clamp01(d.pos - in.Force)
		d.speed = -velocity(in.Force, dt)
	default:
		d.speed += in.Physic * dt
		d.pos += d.speed * dt
	}

	if d.pos > 1 {
		d.pos = 1
		d.speed = -d.cfg.BumpFactor * d.speed
	}
	if d.pos < 0 || (!held && d.pos < d.cfg.Reflect && d.speed <= 0) {
		d.pos = 0
		d.speed = 0
	}

	var res Result
	if lastPos > 0 && d.pos <= 0 {
		res.Disengaged = true
	}
	d.speed = d.damper.Apply(d.speed, dt)
	return res
}

// Pos returns the opening position in [0,1].
func (d *HandDoor) Pos() float32 { return d.pos }

// Latched reports whether the door was closed and latched on the last tick.
func (d *HandDoor) Latched() bool { return d.latched }
