package message

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tramsim/consist/internal/queue"
	"github.com/tramsim/consist/pkg/core"
)

// Acceptor reports which schemas a car can decode.
type Acceptor interface {
	Accepts(Key) bool
}

// RecordFunc observes every message the transport delivers or drops.
type RecordFunc func(core.MessageRecord)

// Channel is the view of the transport a single car uses.
type Channel interface {
	Send(from core.Endpoint, m Message) error
	Receive(at core.Endpoint) []Envelope
}

var (
	errSelfLink   = errors.New("cannot couple a car to itself")
	errLinked     = errors.New("endpoint already linked")
	errUnknownCar = errors.New("car not attached")
)

// Transport carries messages between linked endpoints with one tick latency.
type Transport struct {
	mu        sync.RWMutex
	links     map[core.Endpoint]core.Endpoint
	states    map[core.Endpoint]core.CouplingState
	acceptors map[core.CarID]Acceptor
	boxes     map[core.Endpoint]*queue.Delayed[Envelope]
	tick      uint64
	record    RecordFunc

	sent    metric.Int64Counter
	dropped metric.Int64Counter
}

// NewTransport creates an empty transport. Uses the global OTel meter for
// metrics (no-op if not configured).
func NewTransport() (*Transport, error) {
	t := &Transport{
		links:     make(map[core.Endpoint]core.Endpoint),
		states:    make(map[core.Endpoint]core.CouplingState),
		acceptors: make(map[core.CarID]Acceptor),
		boxes:     make(map[core.Endpoint]*queue.Delayed[Envelope]),
	}

	m := otel.Meter("github.com/tramsim/consist/internal/message")
	var err error

	t.sent, err = m.Int64Counter(
		"message.sent",
		metric.WithDescription("Cross-car messages accepted for delivery"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sent counter: %w", err)
	}

	t.dropped, err = m.Int64Counter(
		"message.dropped",
		metric.WithDescription("Cross-car messages dropped, by reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return t, nil
}

// OnRecord installs an observer for delivered and dropped messages.
func (t *Transport) OnRecord(fn RecordFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record = fn
}

// Attach registers a car and the schemas it accepts.
func (t *Transport) Attach(car core.CarID, a Acceptor) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.acceptors[car] = a
	for _, side := range []core.Side{core.SideFront, core.SideBack} {
		ep := core.Endpoint{CarID: car, Side: side}
		if _, ok := t.boxes[ep]; !ok {
			t.boxes[ep] = queue.NewDelayed[Envelope]()
		}
	}
}

// Detach removes a car, splitting both of its endpoints.
func (t *Transport) Detach(car core.CarID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, side := range []core.Side{core.SideFront, core.SideBack} {
		ep := core.Endpoint{CarID: car, Side: side}
		t.splitLocked(ep)
		delete(t.boxes, ep)
		delete(t.states, ep)
	}
	delete(t.acceptors, car)
}

// Join links two endpoints of different cars.
func (t *Transport) Join(a, b core.Endpoint) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if a.CarID == b.CarID {
		return errSelfLink
	}
	for _, ep := range []core.Endpoint{a, b} {
		if _, ok := t.acceptors[ep.CarID]; !ok {
			return fmt.Errorf("%w: %d", errUnknownCar, ep.CarID)
		}
		if peer, ok := t.links[ep]; ok {
			return fmt.Errorf("%w: %s is linked to %s", errLinked, ep, peer)
		}
	}
	t.links[a] = b
	t.links[b] = a
	return nil
}

// Split removes the link at ep and returns the former peer. Undelivered
// messages on both ends are discarded.
func (t *Transport) Split(ep core.Endpoint) (core.Endpoint, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.splitLocked(ep)
}

func (t *Transport) splitLocked(ep core.Endpoint) (core.Endpoint, bool) {
	peer, ok := t.links[ep]
	if !ok {
		return core.Endpoint{}, false
	}
	delete(t.links, ep)
	delete(t.links, peer)
	for _, e := range []core.Endpoint{ep, peer} {
		if box, ok := t.boxes[e]; ok {
			box.Clear()
		}
	}
	return peer, true
}

// Peer returns the endpoint linked to ep.
func (t *Transport) Peer(ep core.Endpoint) (core.Endpoint, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	peer, ok := t.links[ep]
	return peer, ok
}

// Links returns every link once, keyed by the lower endpoint.
func (t *Transport) Links() map[core.Endpoint]core.Endpoint {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[core.Endpoint]core.Endpoint, len(t.links)/2)
	for a, b := range t.links {
		if a.CarID < b.CarID {
			out[a] = b
		}
	}
	return out
}

// SetState publishes the coupling state of an endpoint. Only Coupled
// endpoints may send.
func (t *Transport) SetState(ep core.Endpoint, s core.CouplingState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[ep] = s
}

// State returns the last published state of ep.
func (t *Transport) State(ep core.Endpoint) core.CouplingState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.states[ep]
}

// Send queues m for the car linked at from.
func (t *Transport) Send(from core.Endpoint, m Message) error {
	if m.Payload == nil {
		return fmt.Errorf("send on %s: empty message", from)
	}
	key := m.Payload.Key()

	t.mu.RLock()
	peer, linked := t.links[from]
	state := t.states[from]
	acc := t.acceptors[peer.CarID]
	box := t.boxes[peer]
	record := t.record
	tick := t.tick
	t.mu.RUnlock()

	if !linked || state != core.StateCoupled || box == nil {
		return t.drop(&SendError{Err: ErrNoPeer, Endpoint: from, Key: key}, tick, from, core.Endpoint{}, key, record)
	}
	if acc == nil || !acc.Accepts(key) {
		return t.drop(&SendError{Err: ErrSchemaMismatch, Endpoint: from, Key: key}, tick, from, peer, key, record)
	}

	env, err := Seal(m)
	if err != nil {
		return &SendError{Err: err, Endpoint: from, Key: key}
	}
	env.From = from
	env.To = peer
	box.Push(env)

	t.sent.Add(context.Background(), 1, metric.WithAttributes(attribute.String("schema", key.Schema)))
	if record != nil {
		record(core.MessageRecord{Tick: tick, From: from, To: peer, Schema: key.Schema, Version: key.Version, Payload: env.Payload})
	}
	return nil
}

func (t *Transport) drop(err *SendError, tick uint64, from, to core.Endpoint, key Key, record RecordFunc) error {
	reason := Reason(err)
	t.CountDrop(key, reason)
	if record != nil {
		record(core.MessageRecord{Tick: tick, From: from, To: to, Schema: key.Schema, Version: key.Version, Dropped: reason})
	}
	return err
}

// CountDrop records a dropped message in the metrics. Receivers call it for
// envelopes their router could not handle.
func (t *Transport) CountDrop(key Key, reason string) {
	t.dropped.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("schema", key.Schema),
		attribute.String("reason", reason),
	))
}

// Receive returns the messages that arrived at ep during the previous tick.
func (t *Transport) Receive(at core.Endpoint) []Envelope {
	t.mu.RLock()
	box := t.boxes[at]
	t.mu.RUnlock()
	if box == nil {
		return nil
	}
	return box.Drain()
}

// Advance ends the current tick and makes its messages readable.
func (t *Transport) Advance() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, box := range t.boxes {
		box.Advance()
	}
	t.tick++
}

// Tick returns the number of completed ticks.
func (t *Transport) Tick() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tick
}

// Pending returns the number of messages queued for the next tick.
func (t *Transport) Pending() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, box := range t.boxes {
		_, p := box.Len()
		n += p
	}
	return n
}
