// Package history keeps the most recent samples for the dashboard charts.
package history

import (
	"sync"

	"gitlab.com/tinyland/lab/stat-pulse/collectors"
)

// DefaultCapacity is the number of samples retained when none is configured.
const DefaultCapacity = 10

// Buffer is a bounded FIFO of samples. When full, pushing evicts the oldest
// entry. It is safe for concurrent use.
type Buffer struct {
	mu       sync.RWMutex
	samples  []collectors.Sample
	capacity int
}

// New creates a Buffer. A capacity <= 0 falls back to DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		samples:  make([]collectors.Sample, 0, capacity),
		capacity: capacity,
	}
}

// Push appends s, evicting the oldest sample if the buffer is full.
func (b *Buffer) Push(s collectors.Sample) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.samples) >= b.capacity {
		copy(b.samples, b.samples[1:])
		b.samples[b.capacity-1] = s
		return
	}
	b.samples = append(b.samples, s)
}

// Len returns the number of samples held.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.samples)
}

// Cap returns the maximum number of samples held.
func (b *Buffer) Cap() int {
	return b.capacity
}

// Samples returns a copy of the held samples, oldest first.
func (b *Buffer) Samples() []collectors.Sample {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]collectors.Sample, len(b.samples))
	copy(out, b.samples)
	return out
}

// Latest returns the newest sample, if any.
func (b *Buffer) Latest() (collectors.Sample, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.samples) == 0 {
		return collectors.Sample{}, false
	}
	return b.samples[len(b.samples)-1], true
}

// Series projects every held sample through sel, oldest first. The result is
// never nil.
func (b *Buffer) Series(sel func(collectors.Sample) float64) []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]float64, len(b.samples))
	for i, s := range b.samples {
		out[i] = sel(s)
	}
	return out
}
