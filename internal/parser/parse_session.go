package parser

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tramsim/consist/pkg/core"
)

// ParseSession parses [name, author, deltaTime]. Author and deltaTime are
// optional; a zero deltaTime means the frame time comes with every tick.
func (p *Parser) ParseSession(data []string) (core.Session, error) {
	var s core.Session
	clean(data)

	if err := need(data, 1, "session"); err != nil {
		return s, err
	}

	s.ID = uuid.NewString()
	s.Name = data[0]
	s.StartTime = time.Now()
	s.Version = p.version

	if len(data) > 1 {
		s.Author = data[1]
	}
	if len(data) > 2 && data[2] != "" {
		dt, err := strconv.ParseFloat(data[2], 32)
		if err != nil {
			return s, fmt.Errorf("error converting delta time to float: %w", err)
		}
		if dt < 0 {
			return s, fmt.Errorf("delta time must not be negative, got %v", dt)
		}
		s.DeltaTime = float32(dt)
	}
	return s, nil
}

// ParseDelta parses [deltaTime] of a tick. An empty list yields 0.
func (p *Parser) ParseDelta(data []string) (float32, error) {
	clean(data)
	if len(data) == 0 || data[0] == "" {
		return 0, nil
	}
	dt, err := strconv.ParseFloat(data[0], 32)
	if err != nil {
		return 0, fmt.Errorf("error converting delta time to float: %w", err)
	}
	if dt < 0 || dt > 1 {
		return 0, fmt.Errorf("delta time %v out of range [0,1]", dt)
	}
	return float32(dt), nil
}
