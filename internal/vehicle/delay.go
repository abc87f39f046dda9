package vehicle

// delay passes its input through once it has been stable for time seconds.
type delay[T comparable] struct {
	time   float32
	timer  float32
	input  T
	output T
}

func (d *delay[T]) tick(target T, dt float32) T {
	if d.input != target {
		d.timer = d.time
		d.input = target
	}
	if d.timer <= 0 {
		d.output = d.input
	} else {
		d.timer -= dt
	}
	return d.output
}

// railbrake applies the magnetic track brakes while the delayed target is set
// and the control voltage is present.
type railbrake struct {
	target delay[bool]
	state  bool
}

const minControlVoltage = 0.8

func newRailbrake(delaySeconds float32) *railbrake {
	return &railbrake{target: delay[bool]{time: delaySeconds}}
}

// tick returns the new state and whether it changed.
func (r *railbrake) tick(target bool, controlVoltage, dt float32) (bool, bool) {
	last := r.state
	r.state = r.target.tick(target, dt) && controlVoltage > minControlVoltage
	return r.state, r.state != last
}
