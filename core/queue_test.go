package core

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueue_DropOnFull(t *testing.T) {
	q := NewEventQueue(2)
	a, b, c := NewInfoEvent("A", nil), NewInfoEvent("B", nil), NewInfoEvent("C", nil)

	assert.True(t, q.Enqueue(a))
	assert.True(t, q.Enqueue(b))
	assert.False(t, q.Enqueue(c))

	assert.Equal(t, 2, q.Size())
	assert.Equal(t, 1, q.DroppedEvents())

	got, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, a.ID, got.ID)

	got, ok = q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, b.ID, got.ID)

	_, ok = q.Dequeue()
	assert.False(t, ok)
	assert.Equal(t, 1, q.DroppedEvents())
}

func TestEventQueue_OverflowAccounting(t *testing.T) {
	for _, maxSize := range []int{1, 3, 64, 100, 150} {
		t.Run(fmt.Sprint(maxSize), func(t *testing.T) {
			q := NewEventQueue(maxSize)
			calls := maxSize*2 + 5
			for i := 0; i < calls; i++ {
				q.Enqueue(NewTokenEvent("t", i))
			}
			assert.Equal(t, maxSize, q.Size())
			assert.Equal(t, calls-maxSize, q.DroppedEvents())

			// FIFO order survives ring growth.
			for i := 0; i < maxSize; i++ {
				ev, ok := q.Dequeue()
				require.True(t, ok)
				assert.Equal(t, i, ev.Data[KeyIteration])
			}
		})
	}
}

func TestEventQueue_WrapAround(t *testing.T) {
	q := NewEventQueue(3)
	for i := 0; i < 10; i++ {
		require.True(t, q.Enqueue(NewTokenEvent("t", i)))
		if i >= 1 {
			ev, ok := q.Dequeue()
			require.True(t, ok)
			assert.Equal(t, i-1, ev.Data[KeyIteration])
		}
	}
	assert.Equal(t, 1, q.Size())
	assert.Zero(t, q.DroppedEvents())
}

func TestEventQueue_EmptyOperations(t *testing.T) {
	q := NewEventQueue(0)
	assert.Equal(t, DefaultQueueSize, q.MaxSize())
	assert.True(t, q.IsEmpty())

	_, ok := q.Peek()
	assert.False(t, ok)
	_, ok = q.Dequeue()
	assert.False(t, ok)
	assert.Zero(t, q.DroppedEvents())
	assert.Empty(t, q.DrainTo(10))
}

func TestEventQueue_PeekDoesNotRemove(t *testing.T) {
	q := NewEventQueue(4)
	ev := NewInfoEvent("x", nil)
	q.Enqueue(ev)

	got, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, 1, q.Size())
}

func TestEventQueue_StatsAndClear(t *testing.T) {
	q := NewEventQueue(4)
	for rangeIdx := 0; rangeIdx < 5; rangeIdx++ {
		q.Enqueue(NewInfoEvent("x", nil))
	}

	stats := q.Stats()
	assert.Equal(t, QueueStats{Size: 4, MaxSize: 4, DroppedEvents: 1, IsEmpty: false, Utilization: 100}, stats)

	q.Clear()
	assert.True(t, q.IsEmpty())
	assert.Equal(t, 1, q.DroppedEvents())
	assert.InDelta(t, 0.0, q.Stats().Utilization, 0.001)

	assert.True(t, q.Enqueue(NewInfoEvent("y", nil)))
}

func TestEventQueue_DrainTo(t *testing.T) {
	q := NewEventQueue(10)
	for i := 0; i < 5; i++ {
		q.Enqueue(NewTokenEvent("t", i))
	}

	first := q.DrainTo(2)
	require.Len(t, first, 2)
	assert.Equal(t, 0, first[0].Data[KeyIteration])
	assert.Equal(t, 1, first[1].Data[KeyIteration])

	rest := q.DrainTo(0)
	assert.Len(t, rest, 3)
	assert.True(t, q.IsEmpty())
}

func TestEventQueue_ConcurrentProducerConsumer(t *testing.T) {
	q := NewEventQueue(50)
	const total = 2000

	var wg sync.WaitGroup
	wg.Add(1)

	received := 0
	lastSeen := -1
	ordered := true
	done := make(chan struct{})

	go func() {
		defer wg.Done()
		for {
			ev, ok := q.Dequeue()
			if !ok {
				select {
				case <-done:
					for _, ev := range q.DrainTo(0) {
						received++
						n := ev.Data[KeyIteration].(int)
						ordered = ordered && n > lastSeen
						lastSeen = n
					}
					return
				default:
					continue
				}
			}
			received++
			n := ev.Data[KeyIteration].(int)
			ordered = ordered && n > lastSeen
			lastSeen = n
		}
	}()

	for i := 0; i < total; i++ {
		q.Enqueue(NewTokenEvent("t", i))
	}
	close(done)
	wg.Wait()

	assert.True(t, ordered)
	assert.Equal(t, total, received+q.DroppedEvents())
}
