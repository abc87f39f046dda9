package queue

import "sync"

// Delayed is a double-buffered mailbox. Items pushed during one tick become
// readable after the next Advance and are discarded by the Advance after
// that, whether they were read or not.
type Delayed[T any] struct {
	mu      sync.Mutex
	pending []T
	ready   []T
}

// NewDelayed creates an empty mailbox.
func NewDelayed[T any]() *Delayed[T] {
	return &Delayed[T]{}
}

// Push queues items for the next tick.
func (d *Delayed[T]) Push(items ...T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append(d.pending, items...)
}

// Advance makes the items pushed since the last Advance readable.
func (d *Delayed[T]) Advance() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ready = d.pending
	d.pending = nil
}

// Drain returns the readable items and clears them.
func (d *Delayed[T]) Drain() []T {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.ready
	d.ready = nil
	return out
}

// Len returns the number of readable and pending items.
func (d *Delayed[T]) Len() (ready, pending int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.ready), len(d.pending)
}

// Clear discards everything.
func (d *Delayed[T]) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ready = nil
	d.pending = nil
}
