// Package storage defines the trace backends a running consist is recorded
// into.
package storage

import (
	"errors"

	"github.com/tramsim/consist/pkg/core"
)

// Backend is the interface all storage implementations must satisfy.
// It is a superset of consist.Recorder.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(s *core.Session) error
	EndSession() error

	// Car registration
	RegisterCar(c *core.Car) error

	// Trace recording
	RecordVar(v *core.VarWrite) error
	RecordCouplerSample(s *core.CouplerSample) error
	RecordCouplingEvent(e *core.CouplingEvent) error
	RecordMessage(m *core.MessageRecord) error
}

// Exporter is an optional interface for backends that write the session
// to a file when it ends.
type Exporter interface {
	ExportedFilePath() string
}

// Multi fans every call out to all backends. Errors are joined; a failing
// backend does not stop the others.
type Multi []Backend

func (m Multi) each(fn func(Backend) error) error {
	var errs []error
	for _, b := range m {
		if err := fn(b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Init() error       { return m.each(Backend.Init) }
func (m Multi) Close() error      { return m.each(Backend.Close) }
func (m Multi) EndSession() error { return m.each(Backend.EndSession) }

func (m Multi) StartSession(s *core.Session) error {
	return m.each(func(b Backend) error { return b.StartSession(s) })
}

func (m Multi) RegisterCar(c *core.Car) error {
	return m.each(func(b Backend) error { return b.RegisterCar(c) })
}

func (m Multi) RecordVar(v *core.VarWrite) error {
	return m.each(func(b Backend) error { return b.RecordVar(v) })
}

func (m Multi) RecordCouplerSample(s *core.CouplerSample) error {
	return m.each(func(b Backend) error { return b.RecordCouplerSample(s) })
}

func (m Multi) RecordCouplingEvent(e *core.CouplingEvent) error {
	return m.each(func(b Backend) error { return b.RecordCouplingEvent(e) })
}

func (m Multi) RecordMessage(r *core.MessageRecord) error {
	return m.each(func(b Backend) error { return b.RecordMessage(r) })
}

// ExportedFilePath returns the path of the first backend that exported a file.
func (m Multi) ExportedFilePath() string {
	for _, b := range m {
		if e, ok := b.(Exporter); ok && e.ExportedFilePath() != "" {
			return e.ExportedFilePath()
		}
	}
	return ""
}
