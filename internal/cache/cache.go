package cache

import (
	"sync"

	"github.com/tramsim/consist/pkg/core"
)

// CarCache holds the cars of the running session so host commands can
// resolve ids without a storage round trip.
type CarCache struct {
	m    sync.Mutex
	Cars map[core.CarID]core.Car
}

func NewCarCache() *CarCache {
	return &CarCache{
		m:    sync.Mutex{},
		Cars: make(map[core.CarID]core.Car),
	}
}

func (c *CarCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.Cars = make(map[core.CarID]core.Car)
}

func (c *CarCache) Get(id core.CarID) (core.Car, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	if car, ok := c.Cars[id]; ok {
		return car, true
	}
	return core.Car{}, false
}

func (c *CarCache) Add(car core.Car) {
	c.m.Lock()
	defer c.m.Unlock()
	c.Cars[car.ID] = car
}

func (c *CarCache) Remove(id core.CarID) {
	c.m.Lock()
	defer c.m.Unlock()
	delete(c.Cars, id)
}

func (c *CarCache) Len() int {
	c.m.Lock()
	defer c.m.Unlock()
	return len(c.Cars)
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}
