package physics

import (
	"fmt"

	"github.com/tramsim/consist/pkg/hostapi"
)

// HandCouplerConfig holds the constants of one hand coupler type.
type HandCouplerConfig struct {
	Reflect       float32 `mapstructure:"reflect"`
	Damping       float32 `mapstructure:"damping"`
	BumpFactor    float32 `mapstructure:"bumpFactor"`
	LockThreshold float32 `mapstructure:"lockThreshold"`
}

// DefaultHandCoupler is the GT6N hand coupler.
var DefaultHandCoupler = HandCouplerConfig{
	Reflect:       0.95,
	Damping:       2.0,
	BumpFactor:    0.2,
	LockThreshold: 0.99,
}

// Validate checks the constants.
func (c HandCouplerConfig) Validate() error {
	if c.Reflect <= 0 || c.Reflect >= 1 {
		return fmt.Errorf("reflect threshold must be in (0,1), got %v", c.Reflect)
	}
	if c.BumpFactor < 0 || c.BumpFactor > 1 {
		return fmt.Errorf("bump factor must be in [0,1], got %v", c.BumpFactor)
	}
	if c.Damping < 0 {
		return fmt.Errorf("damping must not be negative, got %v", c.Damping)
	}
	if c.LockThreshold <= c.Reflect || c.LockThreshold > 1 {
		return fmt.Errorf("lock threshold must be in (reflect,1], got %v", c.LockThreshold)
	}
	return nil
}

// CouplerInput is the per-tick operator input of a hand coupler.
type CouplerInput struct {
	Force    float32 // hand movement this tick, in position units
	Grabbing bool
	Lever    bool
}

// Result is the outcome of one integrator tick.
type Result struct {
	Pos        float32
	Speed      float32
	Locked     bool
	Disengaged bool // pos reached 0 from above this tick
	Reset      bool // state was non-finite and has been restored
}

// HandCoupler is the damped engagement model of a manually operated coupler.
//
// Without the lever the coupler cannot be pushed past a detent just below the
// fully closed position; it bounces back off it. With the lever held it
// travels to 1 at a constant rate and locks there.
type HandCoupler struct {
	cfg    HandCouplerConfig
	clock  hostapi.TimeSource
	damper Damper

	pos      float32
	speed    float32
	lever    bool
	grabbing bool
}

// NewHandCoupler creates a disengaged hand coupler.
func NewHandCoupler(cfg HandCouplerConfig, clock hostapi.TimeSource) (*HandCoupler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("hand coupler: %w", err)
	}
	return &HandCoupler{
		cfg:    cfg,
		clock:  clock,
		damper: Damper{Rate: cfg.Damping},
	}, nil
}

// Tick advances the coupler by one frame.
func (c *HandCoupler) Tick(in CouplerInput) Result {
	dt := c.clock.Delta()
	lastPos := c.pos

	if !finite(in.Force) {
		c.speed = 0
		return Result{Pos: c.pos, Reset: true}
	}

	c.lever = in.Lever
	c.grabbing = in.Grabbing || in.Lever

	res := c.step(in, dt, lastPos)

	if !finite(c.pos) || !finite(c.speed) {
		c.pos = clamp01(lastPos)
		c.speed = 0
		res = Result{Reset: true}
	}
	res.Pos = c.pos
	res.Speed = c.speed
	return res
}

func (c *HandCoupler) step(in CouplerInput, dt, lastPos float32) Result {
	reflect := c.cfg.Reflect

	if in.Force > 0 && c.lever && c.pos > c.cfg.LockThreshold {
		c.pos = 1
		c.speed = 0
		return Result{Locked: true}
	}

	if c.grabbing && !c.lever && c.pos > reflect+0.001 {
		c.pos = 1
		c.speed = 0
		return Result{}
	}

	if c.grabbing {
		if c.lever {
			c.pos = clamp(c.pos+dt, 0, 1)
		} else {
			c.pos = clamp(c.pos+in.Force, 0, reflect)
		}
		c.speed = velocity(in.Force, dt)
	} else {
		if in.Force != 0 {
			c.speed = velocity(in.Force, dt)
		}
		c.pos = clamp01(c.pos + c.speed*dt)
	}

	// detent
	if !c.lever && lastPos <= reflect && c.pos > reflect {
		c.pos = reflect - 0.001
		c.speed = -c.cfg.BumpFactor * c.speed
	}

	var res Result
	if c.lever && c.pos >= 1 {
		c.pos = 1
		c.speed = 0
		res.Locked = true
	}
	if (c.pos >= 1 && c.speed > 0) || (c.pos <= 0 && c.speed < 0) {
		c.speed = 0
	}

	if lastPos > 0 && c.pos <= 0 {
		c.pos = 0
		c.speed = 0
		res.Disengaged = true
	}

	c.speed = c.damper.Apply(c.speed, dt)
	return res
}

func velocity(force, dt float32) float32 {
	if dt <= 0 {
		return 0
	}
	return force / dt
}

// Pos returns the engagement position in [0,1].
func (c *HandCoupler) Pos() float32 { return c.pos }

// Speed returns the current engagement speed.
func (c *HandCoupler) Speed() float32 { return c.speed }

// Set places the coupler at pos with no speed, e.g. when a scenario starts
// with cars already coupled.
func (c *HandCoupler) Set(pos float32) {
	c.pos = clamp01(pos)
	c.speed = 0
}
