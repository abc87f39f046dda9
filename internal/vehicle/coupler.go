package vehicle

import (
	"fmt"

	"github.com/tramsim/consist/internal/coupling"
	"github.com/tramsim/consist/internal/physics"
	"github.com/tramsim/consist/pkg/core"
	"github.com/tramsim/consist/pkg/hostapi"
)

// CouplerControls is the operator input for one coupler in one tick.
type CouplerControls struct {
	Force    float32 `yaml:"force" json:"force"`
	Grabbing bool    `yaml:"grab" json:"grab"`
	Lever    bool    `yaml:"lever" json:"lever"`

	ToggleElectric bool `yaml:"toggleElectric" json:"toggleElectric"`
	HideCabCover   bool `yaml:"hideCabCover" json:"hideCabCover"`
	HideBag        bool `yaml:"hideBag" json:"hideBag"`
	Uncouple       bool `yaml:"uncouple" json:"uncouple"`
}

// CouplerStatus is the state of one coupler after a tick.
type CouplerStatus struct {
	Endpoint      core.Endpoint
	Kind          core.CouplerKind
	State         core.CouplingState
	Transition    coupling.Transition
	Pos           float32
	Speed         float32
	Linked        bool
	ElectricReady bool
	CabCover      bool
	Bag           bool
	PeerBag       bool
	PeerState     core.CouplingState
	Disengaged    bool
	Reset         bool
}

// coupler is one end of a car: the mechanical model, the coupling state and
// the bellows handshake with the neighbour.
type coupler struct {
	ep      core.Endpoint
	kind    core.CouplerKind
	hand    *physics.HandCoupler
	tracker *coupling.Tracker

	bagMin, bagMax float32

	electricOpen bool
	cabCover     bool
	bag          bool
	bagSet       bool
	bagTimer     float32
	peerBag      bool
	peerState    core.CouplingState
}

// couplerTick is what the car needs from a coupler update beyond its status.
type couplerTick struct {
	status   CouplerStatus
	uncouple bool
	sendBag  bool
}

func newCoupler(ep core.Endpoint, cfg Config, clock hostapi.TimeSource) (*coupler, error) {
	c := &coupler{
		ep:      ep,
		kind:    cfg.Car.Coupler,
		tracker: coupling.NewTracker(cfg.Thresholds),
		bagMin:  cfg.BagDelayMin,
		bagMax:  cfg.BagDelayMax,
	}
	switch c.kind {
	case core.CouplerAuto:
	case core.CouplerHand, "":
		c.kind = core.CouplerHand
		hc, err := physics.NewHandCoupler(cfg.Hand, clock)
		if err != nil {
			return nil, err
		}
		c.hand = hc
		c.cabCover = true
	default:
		return nil, fmt.Errorf("unknown coupler kind %q", c.kind)
	}
	return c, nil
}

// engage puts a hand coupler into the closed position with its electric
// parts connected, as if the consist had been coupled before the session.
func (c *coupler) engage() {
	c.electricOpen = false
	if c.hand != nil {
		c.hand.Set(1)
		c.cabCover = false
	}
}

func (c *coupler) tick(ctrl CouplerControls, linked bool, dt float32, rnd hostapi.RandomSource) couplerTick {
	var out couplerTick
	st := &out.status

	if ctrl.HideCabCover {
		c.cabCover = false
	}

	var pos, speed float32
	ready := linked
	if c.hand != nil {
		if ctrl.ToggleElectric {
			c.electricOpen = !c.electricOpen
		}
		if c.cabCover {
			c.hand.Set(0)
		} else {
			res := c.hand.Tick(physics.CouplerInput{Force: ctrl.Force, Grabbing: ctrl.Grabbing, Lever: ctrl.Lever})
			st.Reset = res.Reset
			if res.Disengaged {
				st.Disengaged = true
				c.cabCover = true
			}
		}
		pos, speed = c.hand.Pos(), c.hand.Speed()
		ready = linked && !c.electricOpen
	} else if linked {
		pos = 1
	}

	tr := c.tracker.Update(pos, ready)
	coupled := tr.To == core.StateCoupled

	out.uncouple = ctrl.Uncouple && coupled

	wasShown := c.bag
	if ctrl.HideBag || !coupled {
		c.bag = false
	}
	if tr.Entered(core.StateCoupled) {
		c.bagTimer = c.bagMin + rnd.Float32()*(c.bagMax-c.bagMin)
		c.bagSet = false
	}
	if coupled {
		if c.bag || c.peerBag {
			c.bagSet = true
		}
		if !c.bagSet && c.bagTimer >= 0 {
			c.bagTimer -= dt
		}
		if c.bagTimer < 0 && !c.bagSet && !c.peerBag {
			c.bag = true
		}
		out.sendBag = c.bag != wasShown
	} else {
		c.bagSet = false
		c.peerBag = false
		c.peerState = core.StateDeactivated
	}

	*st = CouplerStatus{
		Endpoint:      c.ep,
		Kind:          c.kind,
		State:         tr.To,
		Transition:    tr,
		Pos:           pos,
		Speed:         speed,
		Linked:        linked,
		ElectricReady: ready,
		CabCover:      c.cabCover,
		Bag:           c.bag,
		PeerBag:       c.peerBag,
		PeerState:     c.peerState,
		Disengaged:    st.Disengaged,
		Reset:         st.Reset,
	}
	return out
}

func (c *coupler) state() core.CouplingState {
	return c.tracker.State()
}
