package numerator

import (
	"context"
	"sync"

	corenumerator "inspecta/internal/core/numerator"
)

// Counter stores the last issued sequence of every (prefix, year) key.
// Implementations must make each call atomic with respect to the others.
type Counter interface {
	// Increment adds delta and returns the new value. A missing key starts at 0.
	Increment(ctx context.Context, key corenumerator.Key, delta int64) (int64, error)
	// Set overwrites the value.
	Set(ctx context.Context, key corenumerator.Key, value int64) error
	// Raise lifts the value to at least floor and returns the result. It never lowers it.
	Raise(ctx context.Context, key corenumerator.Key, floor int64) (int64, error)
	// Current returns the value without changing it. A missing key reads as 0.
	Current(ctx context.Context, key corenumerator.Key) (int64, error)
}

// MemoryCounter keeps counters in process memory.
// Only valid when every writer of the report tables lives in this process.
type MemoryCounter struct {
	mu     sync.Mutex
	values map[corenumerator.Key]int64
}

// NewMemoryCounter creates an empty in-memory counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{values: make(map[corenumerator.Key]int64)}
}

var _ Counter = (*MemoryCounter)(nil)

// Increment implements Counter.
func (c *MemoryCounter) Increment(_ context.Context, key corenumerator.Key, delta int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] += delta
	return c.values[key], nil
}

// Set implements Counter.
func (c *MemoryCounter) Set(_ context.Context, key corenumerator.Key, value int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

// Raise implements Counter.
func (c *MemoryCounter) Raise(_ context.Context, key corenumerator.Key, floor int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if floor > c.values[key] {
		c.values[key] = floor
	}
	return c.values[key], nil
}

// Current implements Counter.
func (c *MemoryCounter) Current(_ context.Context, key corenumerator.Key) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[key], nil
}
