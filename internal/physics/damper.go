// Package physics integrates the damped one-dimensional actuators of a car:
// hand couplers, hand doors and ramp sliders.
package physics

import "math"

// Damper decays a speed linearly toward zero.
type Damper struct {
	Rate float32
}

// Apply returns the speed after one tick of damping. A decay step that would
// reverse the sign of the speed yields exactly zero.
func (d Damper) Apply(speed, dt float32) float32 {
	if speed == 0 || d.Rate <= 0 || dt <= 0 {
		return speed
	}
	next := speed - sign(speed)*d.Rate*dt
	if next*speed <= 0 {
		return 0
	}
	return next
}

func sign(v float32) float32 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func clamp(v, lo, hi float32) float32 {
	return max(lo, min(hi, v))
}

func clamp01(v float32) float32 {
	return clamp(v, 0, 1)
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
