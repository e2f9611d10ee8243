// Package gpu manages GPU object handles (buffers, textures, etc) on behalf
// of layers, batching their allocation.
package gpu

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"slices"
)

// MinBatchReserve is the minimum number of handles allocated at once.
const MinBatchReserve = 4

var (
	ErrActiveHandles = errors.New("gpu: capacity would delete active handles")
	ErrUnknownHandle = errors.New("gpu: handle not in cache")
	ErrNoAllocator   = errors.New("gpu: nil allocator")
)

// Allocator creates and deletes GPU object handles of one kind, e.g.
// glGenBuffers and glDeleteBuffers.
type Allocator interface {
	// CreateHandles fills dst with new handles.
	CreateHandles(dst []uint32) error
	// DeleteHandles deletes the given handles.
	DeleteHandles(handles []uint32) error
}

// AllocatorFuncs adapts a pair of functions to an Allocator.
type AllocatorFuncs struct {
	Create func(dst []uint32) error
	Delete func(handles []uint32) error
}

func (x AllocatorFuncs) CreateHandles(dst []uint32) error { return x.Create(dst) }

func (x AllocatorFuncs) DeleteHandles(handles []uint32) error { return x.Delete(handles) }

// HandleCache hands out handles from a pool, growing it in power of two
// batches. Handles returned with Deactivate are reused before new ones are
// created.
//
// The first Len() handles are active, the remainder of the Cap() handles are
// inactive. A HandleCache is not safe for concurrent use.
type HandleCache struct {
	allocator Allocator
	handles   []uint32
	size      int
}

// NewHandleCache returns an empty cache over allocator.
func NewHandleCache(allocator Allocator) *HandleCache {
	return &HandleCache{allocator: allocator}
}

func (x *HandleCache) Allocator() Allocator { return x.allocator }

// Len returns the number of active handles.
func (x *HandleCache) Len() int { return x.size }

// Cap returns the number of allocated handles.
func (x *HandleCache) Cap() int { return len(x.handles) }

// Active returns the active handles. The slice is only valid until the next
// call that modifies the cache.
func (x *HandleCache) Active() []uint32 { return x.handles[:x.size] }

// Inactive returns the allocated handles that are not in use.
func (x *HandleCache) Inactive() []uint32 { return x.handles[x.size:] }

// SetCapacity allocates or deletes handles such that exactly capacity
// handles are held. It fails with ErrActiveHandles if capacity is less than
// Len().
func (x *HandleCache) SetCapacity(capacity int) error {
	old := len(x.handles)
	if capacity == old {
		return nil
	}
	if capacity < x.size {
		return fmt.Errorf("%w: capacity %d, active %d", ErrActiveHandles, capacity, x.size)
	}
	if uint64(capacity) > math.MaxUint32 {
		return fmt.Errorf("gpu: capacity %d exceeds the maximum", capacity)
	}
	if x.allocator == nil {
		return ErrNoAllocator
	}
	if capacity < old {
		if err := x.allocator.DeleteHandles(x.handles[capacity:]); err != nil {
			return fmt.Errorf("gpu: delete handles: %w", err)
		}
		clear(x.handles[capacity:])
		x.handles = slices.Clip(x.handles[:capacity])
		return nil
	}
	handles := make([]uint32, capacity)
	copy(handles, x.handles)
	if err := x.allocator.CreateHandles(handles[old:]); err != nil {
		return fmt.Errorf("gpu: create handles: %w", err)
	}
	x.handles = handles
	return nil
}

// Reserve ensures at least capacity handles are held, rounding up to the
// next power of two.
func (x *HandleCache) Reserve(capacity int) error {
	if len(x.handles) >= capacity {
		return nil
	}
	return x.SetCapacity(nextPowerOfTwo(capacity))
}

// Activate returns a handle that is not in use, allocating more if needed.
func (x *HandleCache) Activate() (uint32, error) {
	if x.size >= len(x.handles) {
		if err := x.Reserve(len(x.handles) + MinBatchReserve); err != nil {
			return 0, err
		}
	}
	h := x.handles[x.size]
	x.size++
	return h, nil
}

// Deactivate returns handle to the pool.
func (x *HandleCache) Deactivate(handle uint32) error {
	i := slices.Index(x.handles[:x.size], handle)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, handle)
	}
	x.size--
	x.handles[i], x.handles[x.size] = x.handles[x.size], x.handles[i]
	return nil
}

// Close deactivates and deletes every handle.
func (x *HandleCache) Close() error {
	x.size = 0
	return x.SetCapacity(0)
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
