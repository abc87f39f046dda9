// Package coupling derives the coupling state of a coupler endpoint from its
// mechanical engagement position.
package coupling

import (
	"fmt"
	"math"

	"github.com/tramsim/consist/pkg/core"
)

// Thresholds are the per-coupler-type engagement positions.
type Thresholds struct {
	Near    float32 `mapstructure:"near"`
	Closed  float32 `mapstructure:"closed"`
	Reflect float32 `mapstructure:"reflect"`
}

// Presets observed on the GT6N.
var (
	HandCoupler = Thresholds{Near: 0.5, Closed: 1.0, Reflect: 0.95}
	HandDoor    = Thresholds{Near: 0.01, Closed: 1.0, Reflect: 0.049}
)

// Validate checks that the thresholds are ordered inside [0,1].
func (t Thresholds) Validate() error {
	if t.Near < 0 || t.Closed > 1 || t.Near > t.Closed {
		return fmt.Errorf("invalid thresholds: near=%v closed=%v", t.Near, t.Closed)
	}
	if t.Reflect < 0 || t.Reflect > 1 {
		return fmt.Errorf("invalid reflect threshold: %v", t.Reflect)
	}
	return nil
}

// Evaluate maps an engagement position to a coupling state.
func (t Thresholds) Evaluate(pos float32, electricalReady bool) core.CouplingState {
	p := float64(pos)
	if math.IsNaN(p) || math.IsInf(p, 0) || pos < t.Near {
		return core.StateDeactivated
	}
	if pos < t.Closed {
		return core.StateReady
	}
	if electricalReady {
		return core.StateCoupled
	}
	return core.StateReady
}

// Evaluate uses the hand coupler thresholds.
func Evaluate(pos float32, electricalReady bool) core.CouplingState {
	return HandCoupler.Evaluate(pos, electricalReady)
}

// Transition is the result of one Tracker update.
type Transition struct {
	From core.CouplingState
	To   core.CouplingState
}

// Changed reports whether the state moved this tick.
func (t Transition) Changed() bool { return t.From != t.To }

// Entered reports whether the state became s this tick.
func (t Transition) Entered(s core.CouplingState) bool { return t.Changed() && t.To == s }

// Left reports whether the state was s and is no longer.
func (t Transition) Left(s core.CouplingState) bool { return t.Changed() && t.From == s }

// Tracker remembers the last evaluated state of one endpoint.
type Tracker struct {
	Thresholds Thresholds
	state      core.CouplingState
}

// NewTracker creates a tracker starting in Deactivated.
func NewTracker(t Thresholds) *Tracker {
	return &Tracker{Thresholds: t}
}

// Update evaluates the new state and returns the transition.
func (tr *Tracker) Update(pos float32, electricalReady bool) Transition {
	next := tr.Thresholds.Evaluate(pos, electricalReady)
	t := Transition{From: tr.state, To: next}
	tr.state = next
	return t
}

// State returns the last evaluated state.
func (tr *Tracker) State() core.CouplingState {
	return tr.state
}

// Reset forces the tracker back to Deactivated.
func (tr *Tracker) Reset() {
	tr.state = core.StateDeactivated
}
