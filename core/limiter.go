package core

import "sync"

// IterationLimiter enforces a maximum number of iterations per run.
type IterationLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewIterationLimiter creates a new limiter with a max number of iterations.
// If max == 0, unlimited iterations are allowed.
func NewIterationLimiter(max int) *IterationLimiter {
	if max < 0 {
		max = 0
	}
	return &IterationLimiter{max: max}
}

// Increment advances the counter and returns the new (1-based) iteration.
func (il *IterationLimiter) Increment() int {
	il.mu.Lock()
	defer il.mu.Unlock()

	il.count++

	return il.count
}

// Exhausted reports whether no further iteration may start.
func (il *IterationLimiter) Exhausted() bool {
	il.mu.Lock()
	defer il.mu.Unlock()

	return il.max > 0 && il.count >= il.max
}

// Count returns the number of iterations started so far.
func (il *IterationLimiter) Count() int {
	il.mu.Lock()
	defer il.mu.Unlock()

	return il.count
}

// Max returns the configured limit (0 means unlimited).
func (il *IterationLimiter) Max() int {
	il.mu.Lock()
	defer il.mu.Unlock()

	return il.max
}

// SetMax replaces the limit. It does not reset the counter.
func (il *IterationLimiter) SetMax(max int) {
	il.mu.Lock()
	defer il.mu.Unlock()

	if max < 0 {
		max = 0
	}
	il.max = max
}

// Remaining returns how many iterations are left before hitting the limit.
func (il *IterationLimiter) Remaining() int {
	il.mu.Lock()
	defer il.mu.Unlock()

	if il.max == 0 {
		return -1 // unlimited
	}

	return il.max - il.count
}
