// pkg/core/vehicle.go
package core

import "time"

// Car describes one car registered with the consist.
type Car struct {
	ID        CarID
	Name      string
	Coupler   CouplerKind
	Station   uint8 // intercom station number, 0 if the car has none
	JoinTime  time.Time
	JoinTick  uint64
	SessionID string
}

// CouplerSample is the state of one coupler at a tick.
type CouplerSample struct {
	Endpoint Endpoint
	Tick     uint64
	Time     time.Time
	Pos      float32
	Speed    float32
	State    CouplingState
	Linked   bool
	Bag      bool
}
