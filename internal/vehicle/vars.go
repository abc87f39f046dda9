package vehicle

import (
	"fmt"

	"github.com/tramsim/consist/pkg/core"
	"github.com/tramsim/consist/pkg/hostapi"
)

// VarID identifies a host variable written by a car.
type VarID uint8

// Per-coupler variables. Their names carry the coupler index, 0 for the
// front and 1 for the back.
const (
	VarCouplingState VarID = iota
	VarCouplerHingeA
	VarCouplerHingeB
	VarCouplerVisible
	VarCabCover
	VarBag
	VarElectricOpen
	VarPeerState

	VarCarActive
	VarRailbrakeTarget
	VarSpringBrake
	VarSanding
	VarEmergencyBrake
	VarDoorTarget
	VarReverserForward
	VarReverserBackward
	VarThrottle
	VarVideo
	VarRailbrake
	VarIntercomRed
	VarIntercomGreen
	VarIntercomYellow
	VarCabDoor
	VarRamp
	VarRampImpact

	numVars
)

type varSpec struct {
	name    string
	perSide bool
}

var varSpecs = [numVars]varSpec{
	VarCouplingState:  {"couplingState_%d", true},
	VarCouplerHingeA:  {"Coupling_%d_hingeA", true},
	VarCouplerHingeB:  {"Coupling_%d_hingeB", true},
	VarCouplerVisible: {"Coupling_%d_vis", true},
	VarCabCover:       {"Coupling_%d_casecap", true},
	VarBag:            {"Coupling_%d_BagVis", true},
	VarElectricOpen:   {"Coupling_%d_E_open", true},
	VarPeerState:      {"Coupling_%d_peerState", true},

	VarCarActive:        {"carActive", false},
	VarRailbrakeTarget:  {"railbrakeTarget", false},
	VarSpringBrake:      {"springBrake", false},
	VarSanding:          {"sanding", false},
	VarEmergencyBrake:   {"emergencyBrake", false},
	VarDoorTarget:       {"doorTarget", false},
	VarReverserForward:  {"reverserForward", false},
	VarReverserBackward: {"reverserBackward", false},
	VarThrottle:         {"throttle", false},
	VarVideo:            {"videoSystem", false},
	VarRailbrake:        {"railbrake", false},
	VarIntercomRed:      {"intercomRed", false},
	VarIntercomGreen:    {"intercomGreen", false},
	VarIntercomYellow:   {"intercomYellow", false},
	VarCabDoor:          {"cabDoor", false},
	VarRamp:             {"ramp", false},
	VarRampImpact:       {"rampImpact", false},
}

// VarName returns the host name of id. side is ignored for car-wide
// variables.
func VarName(id VarID, side core.Side) string {
	if id >= numVars {
		return fmt.Sprintf("var(%d)", uint8(id))
	}
	s := varSpecs[id]
	if s.perSide {
		return fmt.Sprintf(s.name, int(side))
	}
	return s.name
}

// vars holds the names resolved once per car so the tick path does no
// formatting.
type vars struct {
	sink  hostapi.VariableSink
	names [numVars][2]string
}

func newVars(sink hostapi.VariableSink) *vars {
	v := &vars{sink: sink}
	for id := VarID(0); id < numVars; id++ {
		v.names[id][core.SideFront] = VarName(id, core.SideFront)
		v.names[id][core.SideBack] = VarName(id, core.SideBack)
	}
	return v
}

func (v *vars) set(id VarID, value float32) {
	v.sink.SetVar(v.names[id][0], value)
}

func (v *vars) setSide(id VarID, side core.Side, value float32) {
	v.sink.SetVar(v.names[id][side], value)
}

func b2f(b bool) float32 {
	if b {
		return 1
	}
	return 0
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
