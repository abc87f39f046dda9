// pkg/core/events.go
package core

import (
	"encoding/json"
	"time"
)

// VarWrite is one value reflected into the host variable store.
type VarWrite struct {
	CarID CarID
	Tick  uint64
	Name  string
	Value float32
}

// MessageRecord is one cross-car message as observed by the transport.
type MessageRecord struct {
	Tick    uint64
	Time    time.Time
	From    Endpoint
	To      Endpoint
	Schema  string
	Version string
	Payload json.RawMessage
	// Dropped is empty for delivered messages, otherwise the drop reason.
	Dropped string
}

// CouplingEvent records a coupling-state transition or a link change.
type CouplingEvent struct {
	Tick     uint64
	Time     time.Time
	Endpoint Endpoint
	Peer     *Endpoint
	Kind     string // "state", "link", "unlink", "disengaged"
	From     CouplingState
	To       CouplingState
}
