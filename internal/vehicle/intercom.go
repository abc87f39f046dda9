package vehicle

// intercomFlash is the blink period of the waiting lamp in seconds.
const intercomFlash float32 = 1.0

// IntercomStatus is the lamp state of a car's intercom station.
type IntercomStatus struct {
	// Current is the station that is calling anywhere in the consist, 0 if none.
	Current uint8
	Red     bool // another station is active
	Green   bool // this station's call was accepted
	Yellow  bool // this station is waiting, flashing
	Talking bool
}

// station is one passenger intercom station.
type station struct {
	id        uint8
	active    bool
	confirmed bool
	flash     float32
}

func (s *station) confirm(current uint8) {
	if current != 0 && current == s.id {
		s.confirmed = true
	}
}

// tick updates the lamps. started reports that talking began this tick.
func (s *station) tick(current uint8, dt float32) (st IntercomStatus, started bool) {
	if current != s.id {
		s.confirmed = false
	}
	other := current > 0 && current != s.id
	waiting := s.id != 0 && current == s.id && !s.confirmed

	last := s.active
	s.active = waiting || s.confirmed

	if !waiting {
		s.flash = 0
	}
	s.flash += dt
	if s.flash > intercomFlash {
		s.flash -= intercomFlash
	}

	return IntercomStatus{
		Current: current,
		Red:     other,
		Green:   s.confirmed,
		Yellow:  waiting && s.flash > intercomFlash/2,
		Talking: s.active,
	}, !last && s.active
}
