package core

import "sync"

// DefaultQueueSize is the capacity used when a non-positive size is given.
const DefaultQueueSize = 1000

const initialQueueCapacity = 64

// QueueStats is a point-in-time view of an EventQueue.
type QueueStats struct {
	Size          int     `json:"size"`
	MaxSize       int     `json:"max_size"`
	DroppedEvents int     `json:"dropped_events"`
	IsEmpty       bool    `json:"is_empty"`
	Utilization   float64 `json:"utilization"`
}

// EventQueue is a bounded FIFO of events safe for one writer and any number
// of readers. A full queue rejects new events and counts them as dropped;
// queued events are never overwritten or evicted.
type EventQueue struct {
	mu      sync.Mutex
	buf     []Event
	head    int
	size    int
	maxSize int
	dropped int
}

// NewEventQueue creates a queue holding at most maxSize events.
func NewEventQueue(maxSize int) *EventQueue {
	if maxSize <= 0 {
		maxSize = DefaultQueueSize
	}

	return &EventQueue{
		buf:     make([]Event, min(maxSize, initialQueueCapacity)),
		maxSize: maxSize,
	}
}

// Enqueue appends ev. It returns false and increments the dropped counter
// when the queue is already full.
func (q *EventQueue) Enqueue(ev Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size >= q.maxSize {
		q.dropped++
		return false
	}

	if q.size == len(q.buf) {
		q.grow()
	}

	q.buf[(q.head+q.size)%len(q.buf)] = ev
	q.size++

	return true
}

// grow doubles the ring capacity (bounded by maxSize) and unrolls it.
func (q *EventQueue) grow() {
	next := make([]Event, min(len(q.buf)*2, q.maxSize))
	for i := 0; i < q.size; i++ {
		next[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	q.buf = next
	q.head = 0
}

// Dequeue removes and returns the oldest event. ok is false when empty.
func (q *EventQueue) Dequeue() (ev Event, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.pop()
}

func (q *EventQueue) pop() (Event, bool) {
	if q.size == 0 {
		return Event{}, false
	}

	ev := q.buf[q.head]
	q.buf[q.head] = Event{}
	q.head = (q.head + 1) % len(q.buf)
	q.size--

	return ev, true
}

// Peek returns the oldest event without removing it.
func (q *EventQueue) Peek() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == 0 {
		return Event{}, false
	}

	return q.buf[q.head], true
}

// DrainTo removes up to n of the oldest events (all when n <= 0).
func (q *EventQueue) DrainTo(n int) []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n <= 0 || n > q.size {
		n = q.size
	}

	out := make([]Event, 0, n)
	for rangeIdx := 0; rangeIdx < n; rangeIdx++ {
		ev, _ := q.pop()
		out = append(out, ev)
	}

	return out
}

// Size returns the number of queued events.
func (q *EventQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.size
}

// IsEmpty reports whether no events are queued.
func (q *EventQueue) IsEmpty() bool { return q.Size() == 0 }

// MaxSize returns the capacity.
func (q *EventQueue) MaxSize() int { return q.maxSize }

// DroppedEvents returns how many enqueue attempts were rejected.
func (q *EventQueue) DroppedEvents() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.dropped
}

// Stats returns a consistent snapshot of the queue counters.
func (q *EventQueue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return QueueStats{
		Size:          q.size,
		MaxSize:       q.maxSize,
		DroppedEvents: q.dropped,
		IsEmpty:       q.size == 0,
		Utilization:   float64(q.size) / float64(q.maxSize) * 100,
	}
}

// Clear discards all queued events. The dropped counter is kept.
func (q *EventQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	clear(q.buf)
	q.head = 0
	q.size = 0
}
