// pkg/core/state.go
package core

import "fmt"

// CouplingState is the electrical/mechanical state of one coupler endpoint.
// The numeric values are the ones reflected into the host variable store.
type CouplingState uint8

const (
	StateDeactivated CouplingState = iota
	StateReady
	StateCoupled
)

func (s CouplingState) String() string {
	switch s {
	case StateDeactivated:
		return "deactivated"
	case StateReady:
		return "ready"
	case StateCoupled:
		return "coupled"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// CabSide names the active driver's cab of the car that sent a message.
type CabSide uint8

const (
	CabNone CabSide = iota
	CabA
	CabB
)

func (c CabSide) String() string {
	switch c {
	case CabA:
		return "A"
	case CabB:
		return "B"
	default:
		return "none"
	}
}

// CouplerKind selects the mechanical model of a coupler.
type CouplerKind string

const (
	CouplerHand CouplerKind = "hand"
	CouplerAuto CouplerKind = "auto"
)
