package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Tick uint64
	Name string
}

func TestQueue_PushDrain(t *testing.T) {
	q := New[sample]()
	if !q.Empty() {
		t.Error("expected empty queue")
	}

	q.Push(sample{Tick: 1, Name: "a"})
	q.Push(sample{Tick: 2}, sample{Tick: 3})
	if q.Len() != 3 {
		t.Errorf("expected length 3, got %d", q.Len())
	}

	items := q.Drain()
	assert.Len(t, items, 3)
	assert.Equal(t, uint64(1), items[0].Tick)
	assert.True(t, q.Empty())
	assert.Empty(t, q.Drain())
}

func TestQueue_ConcurrentPush(t *testing.T) {
	q := New[int]()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Push(n*100 + j)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1000, q.Len())
}

func TestDelayed_OneTickLatency(t *testing.T) {
	d := NewDelayed[string]()

	d.Push("hello")
	assert.Empty(t, d.Drain(), "pushed items must not be visible in the same tick")

	d.Advance()
	assert.Equal(t, []string{"hello"}, d.Drain())
	assert.Empty(t, d.Drain())
}

func TestDelayed_UnreadItemsExpire(t *testing.T) {
	d := NewDelayed[int]()
	d.Push(1, 2)
	d.Advance()
	d.Push(3)

	ready, pending := d.Len()
	assert.Equal(t, 2, ready)
	assert.Equal(t, 1, pending)

	d.Advance()
	assert.Equal(t, []int{3}, d.Drain())
}

func TestDelayed_Clear(t *testing.T) {
	d := NewDelayed[int]()
	d.Push(1)
	d.Advance()
	d.Push(2)
	d.Clear()
	d.Advance()
	assert.Empty(t, d.Drain())
}
