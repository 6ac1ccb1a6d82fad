package tensor

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrResourceExhaustion indicates an allocation could not be satisfied
// within the allocator's byte budget.
var ErrResourceExhaustion = errors.New("resource exhaustion")

// bufferClass categorizes buffer sizes for pooling.
type bufferClass int

const (
	// smallBuffer for backings < 64KB.
	smallBuffer bufferClass = iota
	// mediumBuffer for backings 64KB-8MB.
	mediumBuffer
	// largeBuffer for backings > 8MB.
	largeBuffer
)

const (
	// Size thresholds for buffer categories.
	smallThreshold  = 64 * 1024
	mediumThreshold = 8 * 1024 * 1024
	// Max free buffers kept per category.
	maxPooledPerClass = 64
)

// Buffer is a pooled, reference-counted byte allocation. A fresh buffer
// starts with one reference; Release returns it to its allocator when the
// count reaches zero.
type Buffer struct {
	data []byte
	pool *Allocator
	refs atomic.Int32
}

// Bytes returns the backing byte slice.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Retain increments the reference count (for shared backings).
func (b *Buffer) Retain() {
	b.refs.Add(1)
}

// Release decrements the reference count and recycles the buffer when it
// reaches zero.
func (b *Buffer) Release() {
	if b.refs.Add(-1) == 0 {
		b.pool.put(b)
	}
}

// Allocator hands out reference-counted byte buffers for TensorList
// backings, recycling released buffers through per-category free lists.
type Allocator struct {
	budget int64 // 0 = unbounded

	mu     sync.Mutex
	small  []*Buffer
	medium []*Buffer
	large  []*Buffer
	inUse  int64
	pooled int64

	// Statistics
	hits   uint64
	misses uint64
}

// AllocatorStats reports pool usage counters.
type AllocatorStats struct {
	Hits          uint64
	Misses        uint64
	InUseBytes    int64
	PooledBytes   int64
	PooledBuffers int
}

// NewAllocator creates an allocator with the given byte budget over live and
// pooled memory combined. A budget of 0 disables the limit.
func NewAllocator(budget int64) *Allocator {
	return &Allocator{budget: budget}
}

// Get returns a buffer of exactly size bytes, reusing a pooled backing when
// one is large enough. Exceeding the budget first drops pooled buffers;
// failing that, the error wraps ErrResourceExhaustion.
func (a *Allocator) Get(size int) (*Buffer, error) {
	if size < 0 {
		panic(fmt.Sprintf("negative allocation size %d", size))
	}
	if size == 0 {
		b := &Buffer{pool: a}
		b.refs.Store(1)
		return b, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	pool := a.classList(classify(size))
	for i, pb := range *pool {
		if cap(pb.data) >= size {
			*pool = append((*pool)[:i], (*pool)[i+1:]...)
			a.pooled -= int64(cap(pb.data))
			a.inUse += int64(cap(pb.data))
			a.hits++
			pb.data = pb.data[:size]
			pb.refs.Store(1)
			return pb, nil
		}
	}

	if a.budget > 0 && a.inUse+a.pooled+int64(size) > a.budget {
		a.trimLocked()
		if a.inUse+int64(size) > a.budget {
			return nil, fmt.Errorf("allocating %d bytes with %d in use (budget %d): %w",
				size, a.inUse, a.budget, ErrResourceExhaustion)
		}
	}

	a.misses++
	a.inUse += int64(size)
	b := &Buffer{data: make([]byte, size), pool: a}
	b.refs.Store(1)
	return b, nil
}

// put returns a released buffer to its free list. Full categories drop the
// buffer for the GC to reclaim.
func (a *Allocator) put(b *Buffer) {
	if cap(b.data) == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.inUse -= int64(cap(b.data))
	pool := a.classList(classify(cap(b.data)))
	if len(*pool) >= maxPooledPerClass {
		return
	}
	a.pooled += int64(cap(b.data))
	*pool = append(*pool, b)
}

// Trim drops all pooled free buffers. Live allocations are untouched.
func (a *Allocator) Trim() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.trimLocked()
}

func (a *Allocator) trimLocked() {
	a.small = nil
	a.medium = nil
	a.large = nil
	a.pooled = 0
}

// Stats returns statistics about allocator usage.
func (a *Allocator) Stats() AllocatorStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	return AllocatorStats{
		Hits:          a.hits,
		Misses:        a.misses,
		InUseBytes:    a.inUse,
		PooledBytes:   a.pooled,
		PooledBuffers: len(a.small) + len(a.medium) + len(a.large),
	}
}

// classify determines the size category for a backing.
func classify(size int) bufferClass {
	if size < smallThreshold {
		return smallBuffer
	}
	if size < mediumThreshold {
		return mediumBuffer
	}
	return largeBuffer
}

// classList returns the free list for a given category.
func (a *Allocator) classList(c bufferClass) *[]*Buffer {
	switch c {
	case smallBuffer:
		return &a.small
	case mediumBuffer:
		return &a.medium
	default:
		return &a.large
	}
}
