// pkg/core/direction.go
package core

// DirectionOfDriving is the reverser state as seen from one car.
type DirectionOfDriving struct {
	Forward  bool `json:"forward"`
	Backward bool `json:"backward"`
}

// Flip returns the direction as seen from a car facing the other way.
func (d DirectionOfDriving) Flip() DirectionOfDriving {
	return DirectionOfDriving{Forward: d.Backward, Backward: d.Forward}
}

// Merge ORs both components.
func (d DirectionOfDriving) Merge(o DirectionOfDriving) DirectionOfDriving {
	return DirectionOfDriving{Forward: d.Forward || o.Forward, Backward: d.Backward || o.Backward}
}
