package parser

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/tramsim/consist/internal/util"
	"github.com/tramsim/consist/internal/vehicle"
	"github.com/tramsim/consist/pkg/core"
)

// parseUintFromFloat parses a string that may be an integer ("32") or float ("32.00") into uint64.
// Host scripts have no integer type, so numbers may arrive serialized as floats.
func parseUintFromFloat(s string) (uint64, error) {
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != float64(uint64(f)) {
		return 0, fmt.Errorf("parseUintFromFloat: %q is not a valid uint64", s)
	}
	return uint64(f), nil
}

func parseCarID(s string) (core.CarID, error) {
	v, err := parseUintFromFloat(s)
	if err != nil {
		return 0, err
	}
	if v > 0xFFFF {
		return 0, fmt.Errorf("car id %d out of range", v)
	}
	return core.CarID(v), nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "", "0", "false":
		return false, nil
	case "1", "true":
		return true, nil
	default:
		return false, fmt.Errorf("invalid bool %q", s)
	}
}

// clean fixes host quoting in place.
func clean(data []string) {
	util.CleanArgs(data)
}

func need(data []string, n int, what string) error {
	if len(data) < n {
		return fmt.Errorf("%s: expected %d args, got %d", what, n, len(data))
	}
	return nil
}

// Service converts raw host arguments into domain values.
type Service interface {
	ParseSession(data []string) (core.Session, error)
	ParseCar(data []string) (core.Car, error)
	ParseCarID(data []string) (core.CarID, error)
	ParseLink(data []string) (a, b core.Endpoint, engaged bool, err error)
	ParseEndpoint(data []string) (core.Endpoint, error)
	ParseInputs(data []string) (core.CarID, vehicle.Inputs, error)
	ParseDelta(data []string) (float32, error)
}

// Parser provides pure []string -> domain struct conversion.
// It has zero external dependencies beyond a logger.
type Parser struct {
	logger *slog.Logger

	// Static config set at creation time
	version string
}

var _ Service = (*Parser)(nil)

// NewParser creates a new parser with only a logger dependency
func NewParser(logger *slog.Logger, version string) *Parser {
	return &Parser{
		logger:  logger,
		version: version,
	}
}
