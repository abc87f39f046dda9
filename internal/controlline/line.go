// Package controlline propagates single-value control signals along a chain of
// coupled cars. Each car combines its local value with whatever its front and
// back neighbors published on the previous tick, so a change travels one car
// per tick.
package controlline

import (
	"fmt"

	"github.com/tramsim/consist/pkg/core"
)

// Input is an optional neighbor value. The zero Input is absent.
type Input[T any] struct {
	Value T
	OK    bool
}

// Some returns a present input.
func Some[T any](v T) Input[T] {
	return Input[T]{Value: v, OK: true}
}

// None returns an absent input.
func None[T any]() Input[T] {
	return Input[T]{}
}

// Or returns the value, or def if the input is absent.
func (i Input[T]) Or(def T) T {
	if i.OK {
		return i.Value
	}
	return def
}

// Evaluate combines a local value with optional neighbor values.
// Absent neighbors contribute the combinator identity.
func Evaluate[T any](c Combinator[T], local T, front, back Input[T]) T {
	return c.Combine(local, c.Combine(front.Or(c.Identity), back.Or(c.Identity)))
}

// LineID is the typed identifier of a control line.
type LineID uint8

const (
	LineCarActive LineID = iota + 1
	LineRailbrake
	LineSpringBrake
	LineSanding
	LineEmergencyBrake
	LineDoorTarget
	LineReverser
	LineThrottle
	LineVideo
)

var lineNames = map[LineID]string{
	LineCarActive:      "car_active",
	LineRailbrake:      "railbrake",
	LineSpringBrake:    "spring_brake",
	LineSanding:        "sanding",
	LineEmergencyBrake: "emergency_brake",
	LineDoorTarget:     "door_target",
	LineReverser:       "reverser",
	LineThrottle:       "throttle",
	LineVideo:          "video",
}

func (id LineID) String() string {
	if n, ok := lineNames[id]; ok {
		return n
	}
	return fmt.Sprintf("line(%d)", uint8(id))
}

// Line is one control line as held by a single car.
//
// Received neighbor values are only valid for the tick they arrived in; Step
// consumes them.
type Line[T any] struct {
	ID   LineID
	comb Combinator[T]

	local T
	front Input[T]
	back  Input[T]
	value T

	pendingFront Input[T]
	pendingBack  Input[T]
}

// New creates a line whose value starts at the combinator identity.
func New[T any](id LineID, c Combinator[T]) *Line[T] {
	return &Line[T]{
		ID:    id,
		comb:  c,
		local: c.Identity,
		value: c.Identity,
	}
}

// Tick evaluates the line for one tick from explicit inputs.
func (l *Line[T]) Tick(local T, front, back Input[T]) T {
	l.local = local
	l.front = front
	l.back = back
	l.value = Evaluate(l.comb, local, front, back)
	return l.value
}

// Receive stores a neighbor value for the next Step. If several values arrive
// on the same side in one tick they are combined.
func (l *Line[T]) Receive(side core.Side, v T) {
	p := &l.pendingFront
	if side == core.SideBack {
		p = &l.pendingBack
	}
	if p.OK {
		v = l.comb.Combine(p.Value, v)
	}
	*p = Some(v)
}

// Drop discards a pending neighbor value, used when the endpoint is not
// coupled.
func (l *Line[T]) Drop(side core.Side) {
	if side == core.SideFront {
		l.pendingFront = None[T]()
	} else {
		l.pendingBack = None[T]()
	}
}

// Step evaluates the line with the values received since the last Step.
func (l *Line[T]) Step(local T) T {
	v := l.Tick(local, l.pendingFront, l.pendingBack)
	l.pendingFront = None[T]()
	l.pendingBack = None[T]()
	return v
}

// Value returns the last evaluated value.
func (l *Line[T]) Value() T {
	return l.value
}

// Outgoing returns the value this car publishes towards side. It excludes what
// was learned from that same side, so a released source is not echoed back to
// itself.
func (l *Line[T]) Outgoing(side core.Side) T {
	from := l.back
	if side == core.SideBack {
		from = l.front
	}
	return l.comb.Combine(l.local, from.Or(l.comb.Identity))
}
