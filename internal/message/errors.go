package message

import (
	"errors"
	"fmt"

	"github.com/tramsim/consist/pkg/core"
)

var (
	// ErrNoPeer is returned when the sending endpoint is not coupled.
	ErrNoPeer = errors.New("no coupled peer")
	// ErrSchemaMismatch is returned when the receiver cannot decode the
	// message's schema and version.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrUnknownSchema is reported by a Router for keys it has no handler for.
	ErrUnknownSchema = errors.New("unknown schema")
)

// Drop reasons used in metrics and records.
const (
	ReasonNoPeer         = "no_peer"
	ReasonSchemaMismatch = "schema_mismatch"
	ReasonUnknownSchema  = "unknown_schema"
	ReasonNotCoupled     = "not_coupled"
)

// SendError describes a message that was not sent.
type SendError struct {
	Err      error
	Endpoint core.Endpoint
	Key      Key
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send %s on %s: %v", e.Key, e.Endpoint, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// Reason maps a send or dispatch error to its drop reason.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrNoPeer):
		return ReasonNoPeer
	case errors.Is(err, ErrUnknownSchema):
		return ReasonUnknownSchema
	case errors.Is(err, ErrSchemaMismatch):
		return ReasonSchemaMismatch
	default:
		return "error"
	}
}
