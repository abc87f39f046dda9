package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tramsim/consist/pkg/core"
)

func TestCarCache_NewCarCache(t *testing.T) {
	cache := NewCarCache()

	require.NotNil(t, cache)
	assert.NotNil(t, cache.Cars)
	assert.Equal(t, 0, cache.Len())
}

func TestCarCache_AddAndGet(t *testing.T) {
	cache := NewCarCache()

	cache.Add(core.Car{ID: 42, Name: "GT6N 601", Coupler: core.CouplerHand})

	got, ok := cache.Get(42)
	require.True(t, ok, "expected to find car 42")
	assert.Equal(t, "GT6N 601", got.Name)
	assert.Equal(t, core.CouplerHand, got.Coupler)

	_, ok = cache.Get(999)
	assert.False(t, ok, "expected not to find car 999")
}

func TestCarCache_RemoveAndReset(t *testing.T) {
	cache := NewCarCache()
	cache.Add(core.Car{ID: 1})
	cache.Add(core.Car{ID: 2})
	cache.Add(core.Car{ID: 3})

	cache.Remove(2)
	assert.Equal(t, 2, cache.Len())
	_, ok := cache.Get(2)
	assert.False(t, ok)

	cache.Reset()
	assert.Equal(t, 0, cache.Len())

	// usable after reset
	cache.Add(core.Car{ID: 4})
	_, ok = cache.Get(4)
	assert.True(t, ok, "expected to find car added after reset")
}

func TestCarCache_Concurrent(t *testing.T) {
	cache := NewCarCache()
	var wg sync.WaitGroup

	for i := core.CarID(0); i < 100; i++ {
		wg.Add(2)
		go func(id core.CarID) {
			defer wg.Done()
			cache.Add(core.Car{ID: id})
		}(i)
		go func(id core.CarID) {
			defer wg.Done()
			cache.Get(id)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, cache.Len())
}

func TestRelayCache_Mark(t *testing.T) {
	c := NewRelayCache()

	assert.True(t, c.Mark(1, 1), "first announcement is new")
	assert.False(t, c.Mark(1, 1), "same announcement again")
	assert.True(t, c.Mark(1, 2))
	assert.False(t, c.Mark(1, 1), "older announcement")
	assert.True(t, c.Mark(2, 1), "origins are independent")

	c.Forget(1)
	assert.True(t, c.Mark(1, 1), "forgotten origin starts over")
	assert.False(t, c.Mark(2, 1), "other origins are kept")
}

func TestRelayCache_ConcurrentMarkOnce(t *testing.T) {
	c := NewRelayCache()
	var wg sync.WaitGroup
	counter := &SafeCounter{}

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Mark(7, 3) {
				counter.Inc()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, counter.Value())
}

// SafeCounter tests

func TestSafeCounter_Set(t *testing.T) {
	c := &SafeCounter{}
	assert.Equal(t, 0, c.Value())

	c.Set(42)
	assert.Equal(t, 42, c.Value())

	c.Set(0)
	assert.Equal(t, 0, c.Value())
}

func TestSafeCounter_Concurrent(t *testing.T) {
	c := &SafeCounter{}
	var wg sync.WaitGroup

	for i := 0; i < 1000; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Inc()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000, c.Value())
}
