package parser

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tramsim/consist/internal/vehicle"
	"github.com/tramsim/consist/pkg/core"
)

// ParseCar parses [id, name, coupler, station]. Coupler defaults to hand,
// station to 0.
func (p *Parser) ParseCar(data []string) (core.Car, error) {
	var car core.Car
	clean(data)

	if err := need(data, 2, "car"); err != nil {
		return car, err
	}

	id, err := parseCarID(data[0])
	if err != nil {
		return car, fmt.Errorf("error converting car id to uint: %w", err)
	}
	car.ID = id
	car.Name = data[1]
	car.JoinTime = time.Now()
	car.Coupler = core.CouplerHand

	if len(data) > 2 && data[2] != "" {
		switch k := core.CouplerKind(data[2]); k {
		case core.CouplerHand, core.CouplerAuto:
			car.Coupler = k
		default:
			return car, fmt.Errorf("unknown coupler kind %q", data[2])
		}
	}
	if len(data) > 3 && data[3] != "" {
		st, err := parseUintFromFloat(data[3])
		if err != nil || st > 0xFF {
			return car, fmt.Errorf("invalid intercom station %q", data[3])
		}
		car.Station = uint8(st)
	}
	return car, nil
}

func (p *Parser) parseEndpoint(id, side string) (core.Endpoint, error) {
	car, err := parseCarID(id)
	if err != nil {
		return core.Endpoint{}, fmt.Errorf("error converting car id to uint: %w", err)
	}
	s, err := core.ParseSide(side)
	if err != nil {
		return core.Endpoint{}, err
	}
	return core.Endpoint{CarID: car, Side: s}, nil
}

// ParseCarID parses [car].
func (p *Parser) ParseCarID(data []string) (core.CarID, error) {
	clean(data)
	if err := need(data, 1, "car id"); err != nil {
		return 0, err
	}
	id, err := parseCarID(data[0])
	if err != nil {
		return 0, fmt.Errorf("error converting car id to uint: %w", err)
	}
	return id, nil
}

// ParseEndpoint parses [car, side].
func (p *Parser) ParseEndpoint(data []string) (core.Endpoint, error) {
	clean(data)
	if err := need(data, 2, "endpoint"); err != nil {
		return core.Endpoint{}, err
	}
	return p.parseEndpoint(data[0], data[1])
}

// ParseLink parses [carA, sideA, carB, sideB, engaged].
func (p *Parser) ParseLink(data []string) (a, b core.Endpoint, engaged bool, err error) {
	clean(data)
	if err = need(data, 4, "link"); err != nil {
		return
	}
	if a, err = p.parseEndpoint(data[0], data[1]); err != nil {
		return
	}
	if b, err = p.parseEndpoint(data[2], data[3]); err != nil {
		return
	}
	if len(data) > 4 {
		if engaged, err = parseBool(data[4]); err != nil {
			return
		}
	}
	return
}

// ParseInputs parses [car, inputsJSON]. The JSON object uses the field names
// of vehicle.Inputs; missing fields are zero.
func (p *Parser) ParseInputs(data []string) (core.CarID, vehicle.Inputs, error) {
	var in vehicle.Inputs
	clean(data)

	if err := need(data, 2, "inputs"); err != nil {
		return 0, in, err
	}
	id, err := parseCarID(data[0])
	if err != nil {
		return 0, in, fmt.Errorf("error converting car id to uint: %w", err)
	}
	if err := json.Unmarshal([]byte(data[1]), &in); err != nil {
		p.logger.Error("Error unmarshalling inputs", "car", id, "data", data[1], "error", err)
		return id, in, fmt.Errorf("error unmarshalling inputs: %w", err)
	}
	return id, in, nil
}
