// pkg/core/endpoint.go
package core

import (
	"fmt"
	"strings"
)

// CarID identifies one car in a consist. It is assigned by the host and stays
// stable for the lifetime of the car.
type CarID uint16

// Side is one of the two coupling points of a car.
type Side uint8

const (
	SideFront Side = iota
	SideBack
)

// Opposite returns the other side of the same car.
func (s Side) Opposite() Side {
	if s == SideFront {
		return SideBack
	}
	return SideFront
}

func (s Side) String() string {
	switch s {
	case SideFront:
		return "front"
	case SideBack:
		return "back"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

// ParseSide accepts "front"/"back" and the host's "a"/"b" aliases.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "front", "a", "0":
		return SideFront, nil
	case "back", "rear", "b", "1":
		return SideBack, nil
	default:
		return 0, fmt.Errorf("unknown coupler side %q", s)
	}
}

// Endpoint identifies one physical coupling point on one car.
type Endpoint struct {
	CarID CarID `json:"car" yaml:"car"`
	Side  Side  `json:"side" yaml:"side"`
}

// Other returns the endpoint on the opposite end of the same car.
func (e Endpoint) Other() Endpoint {
	return Endpoint{CarID: e.CarID, Side: e.Side.Opposite()}
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%d/%s", e.CarID, e.Side)
}
