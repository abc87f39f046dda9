// pkg/core/door.go
package core

import (
	"fmt"
	"strings"
)

// DoorTarget is the door command shared across the consist.
type DoorTarget uint8

const (
	DoorZu DoorTarget = iota
	DoorZwangsschliessen
	DoorFreigabe
	DoorOeffnen
)

var doorTargetNames = map[DoorTarget]string{
	DoorZu:               "zu",
	DoorZwangsschliessen: "zwangsschliessen",
	DoorFreigabe:         "freigabe",
	DoorOeffnen:          "oeffnen",
}

func (d DoorTarget) String() string {
	if n, ok := doorTargetNames[d]; ok {
		return n
	}
	return fmt.Sprintf("door(%d)", uint8(d))
}

// ParseDoorTarget parses the lower-case names used in scenarios and host calls.
func ParseDoorTarget(s string) (DoorTarget, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d, n := range doorTargetNames {
		if n == s {
			return d, nil
		}
	}
	return DoorZu, fmt.Errorf("unknown door target %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (d DoorTarget) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DoorTarget) UnmarshalText(b []byte) error {
	v, err := ParseDoorTarget(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// MergeDoorTarget returns the stronger of two door commands.
// Open beats release, release beats forced close, forced close beats closed.
func MergeDoorTarget(a, b DoorTarget) DoorTarget {
	if b > a {
		return b
	}
	return a
}
