package physics

import (
	"fmt"

	"github.com/tramsim/consist/pkg/hostapi"
)

// SliderConfig describes a bounded inertial slider such as a folding ramp.
type SliderConfig struct {
	Min       float32 `mapstructure:"min"`
	Max       float32 `mapstructure:"max"`
	Damping   float32 `mapstructure:"damping"`
	LowerBump float32 `mapstructure:"lowerBump"`
	UpperBump float32 `mapstructure:"upperBump"`
	Force     float32 `mapstructure:"force"` // constant acceleration, e.g. gravity
}

// DefaultRamp is the GT6N folding ramp.
var DefaultRamp = SliderConfig{
	Min:       0,
	Max:       1,
	Damping:   0.5,
	LowerBump: 0.3,
	UpperBump: 0.1,
	Force:     -1.5,
}

// Validate checks the constants.
func (c SliderConfig) Validate() error {
	if c.Min >= c.Max {
		return fmt.Errorf("slider min %v must be below max %v", c.Min, c.Max)
	}
	if c.LowerBump < 0 || c.LowerBump > 1 || c.UpperBump < 0 || c.UpperBump > 1 {
		return fmt.Errorf("slider bump factors must be in [0,1]")
	}
	if c.Damping < 0 {
		return fmt.Errorf("slider damping must not be negative, got %v", c.Damping)
	}
	return nil
}

// SliderResult is the outcome of one slider tick.
type SliderResult struct {
	Pos    float32
	Speed  float32
	Impact float32 // speed at which an end stop was hit this tick, 0 otherwise
	Reset  bool
}

// Slider is a mass moving between two end stops under a constant force.
type Slider struct {
	cfg    SliderConfig
	clock  hostapi.TimeSource
	damper Damper

	pos   float32
	speed float32
}

// NewSlider creates a slider resting at Min.
func NewSlider(cfg SliderConfig, clock hostapi.TimeSource) (*Slider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("slider: %w", err)
	}
	return &Slider{cfg: cfg, clock: clock, damper: Damper{Rate: cfg.Damping}, pos: cfg.Min}, nil
}

// Tick advances the slider. While grabbing, handDelta moves it directly.
func (s *Slider) Tick(grabbing bool, handDelta float32) SliderResult {
	dt := s.clock.Delta()
	lastPos := s.pos
	var res SliderResult

	if grabbing {
		s.pos += handDelta
		s.speed = velocity(handDelta, dt)
	} else {
		s.pos += s.speed * dt
	}

	// Impact is only reported when arriving at a stop, not while resting on it.
	if s.pos < s.cfg.Min {
		s.pos = s.cfg.Min
		if lastPos > s.cfg.Min {
			res.Impact = s.speed
		}
		s.speed = -s.cfg.LowerBump * s.speed
	}
	if s.pos > s.cfg.Max {
		s.pos = s.cfg.Max
		if lastPos < s.cfg.Max {
			res.Impact = s.speed
		}
		s.speed = -s.cfg.UpperBump * s.speed
	}

	s.speed += s.cfg.Force * dt
	s.speed = s.damper.Apply(s.speed, dt)

	if !finite(s.pos) || !finite(s.speed) {
		s.pos = clamp(lastPos, s.cfg.Min, s.cfg.Max)
		s.speed = 0
		return SliderResult{Pos: s.pos, Reset: true}
	}
	res.Pos = s.pos
	res.Speed = s.speed
	return res
}

// Pos returns the slider position.
func (s *Slider) Pos() float32 { return s.pos }
