// Package message implements single-hop, typed, versioned messages between
// directly coupled cars.
//
// A message sent during tick t is readable by the receiving car from tick t+1.
// Messages are never forwarded by the channel itself; a car that wants a
// signal to travel further re-sends it on its other endpoint.
package message

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tramsim/consist/pkg/core"
)

// Key identifies a message schema.
type Key struct {
	Schema  string
	Version string
}

func (k Key) String() string {
	return k.Schema + "@" + k.Version
}

// Payload is implemented by every message body. Key must not depend on the
// receiver's value, it is called on zero values.
type Payload interface {
	Key() Key
}

// Message is a payload together with the active cab of the sender.
type Message struct {
	Cab     core.CabSide
	Payload Payload
}

// New wraps a payload.
func New(cab core.CabSide, p Payload) Message {
	return Message{Cab: cab, Payload: p}
}

// Envelope is the wire form of a message as seen by the receiver.
type Envelope struct {
	Schema  string          `json:"schema"`
	Version string          `json:"version"`
	Cab     core.CabSide    `json:"cab"`
	Payload json.RawMessage `json:"payload"`

	From core.Endpoint `json:"-"`
	To   core.Endpoint `json:"-"`
}

// Key returns the schema identity of the envelope.
func (e Envelope) Key() Key {
	return Key{Schema: e.Schema, Version: e.Version}
}

// Reversed reports whether sender and receiver face each other, i.e. the two
// joined endpoints are on the same side of their cars.
func (e Envelope) Reversed() bool {
	return e.From.Side == e.To.Side
}

// Seal encodes a message into an envelope.
func Seal(m Message) (Envelope, error) {
	if m.Payload == nil {
		return Envelope{}, errors.New("message has no payload")
	}
	body, err := json.Marshal(m.Payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encoding %s: %w", m.Payload.Key(), err)
	}
	k := m.Payload.Key()
	return Envelope{
		Schema:  k.Schema,
		Version: k.Version,
		Cab:     m.Cab,
		Payload: body,
	}, nil
}

// Open decodes the payload of e as T.
func Open[T Payload](e Envelope) (T, error) {
	var p T
	if e.Key() != p.Key() {
		return p, fmt.Errorf("%w: got %s, want %s", ErrSchemaMismatch, e.Key(), p.Key())
	}
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return p, fmt.Errorf("%w: decoding %s: %v", ErrSchemaMismatch, e.Key(), err)
	}
	return p, nil
}
