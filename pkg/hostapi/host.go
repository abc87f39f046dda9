// Package hostapi holds the capabilities the host simulation injects into the
// consist: frame time, randomness and the variable store.
package hostapi

import (
	"math/rand/v2"
	"sync"
)

// TimeSource reports the duration of the current frame in seconds.
type TimeSource interface {
	Delta() float32
}

// FixedStep is a TimeSource with a constant frame time.
type FixedStep float32

// Delta implements TimeSource.
func (f FixedStep) Delta() float32 { return float32(f) }

// FrameClock is a TimeSource the driver updates once per host frame.
type FrameClock struct {
	mu    sync.RWMutex
	delta float32
}

// NewFrameClock returns a clock reporting d until Set is called.
func NewFrameClock(d float32) *FrameClock {
	return &FrameClock{delta: d}
}

// Set stores the frame time for the next tick.
func (c *FrameClock) Set(d float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delta = d
}

// Delta implements TimeSource.
func (c *FrameClock) Delta() float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.delta
}

// RandomSource yields uniformly distributed values in [0,1).
type RandomSource interface {
	Float32() float32
}

// NewSeededRandom returns a deterministic RandomSource.
func NewSeededRandom(seed uint64) RandomSource {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// VariableSink receives values the host exposes to animations and scripts.
type VariableSink interface {
	SetVar(name string, value float32)
}

// SinkFunc adapts a function to VariableSink.
type SinkFunc func(name string, value float32)

// SetVar implements VariableSink.
func (f SinkFunc) SetVar(name string, value float32) { f(name, value) }

// MapSink is an in-memory VariableSink, safe for concurrent readers.
type MapSink struct {
	mu   sync.RWMutex
	vars map[string]float32
}

// NewMapSink creates an empty MapSink.
func NewMapSink() *MapSink {
	return &MapSink{vars: make(map[string]float32)}
}

// SetVar implements VariableSink.
func (s *MapSink) SetVar(name string, value float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[name] = value
}

// Get returns the last value written for name.
func (s *MapSink) Get(name string) (float32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vars[name]
	return v, ok
}

// Snapshot copies all variables.
func (s *MapSink) Snapshot() map[string]float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float32, len(s.vars))
	for k, v := range s.vars {
		out[k] = v
	}
	return out
}
