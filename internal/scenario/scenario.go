// Package scenario runs scripted consists without a host: cars, links and
// per-step inputs come from YAML, and the runner prints a line trace.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tramsim/consist/internal/vehicle"
	"github.com/tramsim/consist/pkg/core"
)

// Scenario is a scripted run.
type Scenario struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description,omitempty"`
	DeltaTime   float32 `yaml:"deltaTime"`
	Seed        uint64  `yaml:"seed"`

	Cars  []CarSpec  `yaml:"cars"`
	Links []LinkSpec `yaml:"links,omitempty"`
	Steps []Step     `yaml:"steps"`

	// Trace names the boolean lines printed after every tick.
	Trace []string `yaml:"trace"`
}

// CarSpec adds one car.
type CarSpec struct {
	ID      core.CarID       `yaml:"id"`
	Name    string           `yaml:"name"`
	Coupler core.CouplerKind `yaml:"coupler,omitempty"`
	Station uint8            `yaml:"station,omitempty"`
}

// LinkSpec joins two endpoints written as "car/side".
type LinkSpec struct {
	A       string `yaml:"a"`
	B       string `yaml:"b"`
	Engaged bool   `yaml:"engaged,omitempty"`
}

// Step holds inputs for a number of ticks, or changes the topology.
type Step struct {
	Ticks    int                           `yaml:"ticks,omitempty"`
	Inputs   map[core.CarID]vehicle.Inputs `yaml:"inputs,omitempty"`
	Couple   *LinkSpec                     `yaml:"couple,omitempty"`
	Uncouple string                        `yaml:"uncouple,omitempty"`
}

// Load reads a scenario file. Unknown fields are rejected.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a scenario.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := sc.validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

func (sc *Scenario) validate() error {
	if sc.Name == "" {
		return errors.New("name is required")
	}
	if len(sc.Cars) == 0 {
		return errors.New("at least one car is required")
	}
	if sc.DeltaTime <= 0 || sc.DeltaTime > 1 {
		return fmt.Errorf("deltaTime %v out of range (0,1]", sc.DeltaTime)
	}
	for _, name := range sc.Trace {
		if _, ok := lineReaders[name]; !ok {
			return fmt.Errorf("unknown trace line %q", name)
		}
	}
	for i, l := range sc.Links {
		if _, _, err := l.endpoints(); err != nil {
			return fmt.Errorf("link %d: %w", i, err)
		}
	}
	for i, st := range sc.Steps {
		n := 0
		if st.Ticks > 0 {
			n++
		}
		if st.Couple != nil {
			n++
		}
		if st.Uncouple != "" {
			n++
		}
		if n != 1 {
			return fmt.Errorf("step %d: exactly one of ticks, couple, uncouple is required", i)
		}
		if st.Ticks == 0 && len(st.Inputs) > 0 {
			return fmt.Errorf("step %d: inputs need ticks", i)
		}
	}
	return nil
}

// ParseEndpoint parses "car/side".
func ParseEndpoint(s string) (core.Endpoint, error) {
	id, side, ok := strings.Cut(s, "/")
	if !ok {
		return core.Endpoint{}, fmt.Errorf("endpoint %q: want car/side", s)
	}
	n, err := strconv.ParseUint(id, 10, 16)
	if err != nil {
		return core.Endpoint{}, fmt.Errorf("endpoint %q: %w", s, err)
	}
	sd, err := core.ParseSide(side)
	if err != nil {
		return core.Endpoint{}, err
	}
	return core.Endpoint{CarID: core.CarID(n), Side: sd}, nil
}

func (l LinkSpec) endpoints() (a, b core.Endpoint, err error) {
	if a, err = ParseEndpoint(l.A); err != nil {
		return
	}
	b, err = ParseEndpoint(l.B)
	return
}

var lineReaders = map[string]func(vehicle.LineValues) bool{
	"carActive":      func(l vehicle.LineValues) bool { return l.CarActive },
	"railbrake":      func(l vehicle.LineValues) bool { return l.Railbrake },
	"springBrake":    func(l vehicle.LineValues) bool { return l.SpringBrake },
	"sanding":        func(l vehicle.LineValues) bool { return l.Sanding },
	"emergencyBrake": func(l vehicle.LineValues) bool { return l.EmergencyBrake },
	"video":          func(l vehicle.LineValues) bool { return l.Video },
}
