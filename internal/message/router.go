package message

import (
	"fmt"
)

type route func(Envelope) error

// Router dispatches received envelopes to typed handlers keyed by schema and
// version. Envelopes with unregistered keys are dropped.
type Router struct {
	routes map[Key]route
	onDrop func(Envelope, error)
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{routes: make(map[Key]route)}
}

// Handle registers fn for payloads of type T. A later registration for the
// same key replaces the earlier one.
func Handle[T Payload](r *Router, fn func(Envelope, T)) {
	var zero T
	r.routes[zero.Key()] = func(e Envelope) error {
		p, err := Open[T](e)
		if err != nil {
			return err
		}
		fn(e, p)
		return nil
	}
}

// OnDrop installs a callback for every envelope the router drops.
func (r *Router) OnDrop(fn func(Envelope, error)) {
	r.onDrop = fn
}

// Accepts reports whether a handler is registered for k.
func (r *Router) Accepts(k Key) bool {
	_, ok := r.routes[k]
	return ok
}

// Dispatch decodes e and calls its handler.
func (r *Router) Dispatch(e Envelope) error {
	h, ok := r.routes[e.Key()]
	var err error
	if !ok {
		err = fmt.Errorf("%w: %s", ErrUnknownSchema, e.Key())
	} else {
		err = h(e)
	}
	if err != nil {
		if r.onDrop != nil {
			r.onDrop(e, err)
		}
	}
	return err
}

// DispatchAll dispatches every envelope and returns the number handled.
func (r *Router) DispatchAll(envs []Envelope) int {
	n := 0
	for _, e := range envs {
		if r.Dispatch(e) == nil {
			n++
		}
	}
	return n
}
