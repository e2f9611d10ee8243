package gpu

import (
	"fmt"
	"sync"
)

// CountingDevice is a Device backed by in-memory counters, for headless use
// and tests. Handles are unique per kind, starting at 1, and it tracks
// which handles are live.
type CountingDevice struct {
	buffers       CountingAllocator
	framebuffers  CountingAllocator
	renderbuffers CountingAllocator
	textures      CountingAllocator
	vertexArrays  CountingAllocator
}

var _ Device = (*CountingDevice)(nil)

func (x *CountingDevice) Buffers() Allocator       { return &x.buffers }
func (x *CountingDevice) Framebuffers() Allocator  { return &x.framebuffers }
func (x *CountingDevice) Renderbuffers() Allocator { return &x.renderbuffers }
func (x *CountingDevice) Textures() Allocator      { return &x.textures }
func (x *CountingDevice) VertexArrays() Allocator  { return &x.vertexArrays }

// Live returns the total number of live handles, of all kinds.
func (x *CountingDevice) Live() int {
	return x.buffers.Live() + x.framebuffers.Live() + x.renderbuffers.Live() + x.textures.Live() + x.vertexArrays.Live()
}

// CountingAllocator is an Allocator that issues sequential handles.
type CountingAllocator struct {
	live map[uint32]struct{}
	next uint32
	mu   sync.Mutex
}

var _ Allocator = (*CountingAllocator)(nil)

func (x *CountingAllocator) CreateHandles(dst []uint32) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.live == nil {
		x.live = make(map[uint32]struct{})
	}
	for i := range dst {
		x.next++
		dst[i] = x.next
		x.live[x.next] = struct{}{}
	}
	return nil
}

func (x *CountingAllocator) DeleteHandles(handles []uint32) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, h := range handles {
		if _, ok := x.live[h]; !ok {
			return fmt.Errorf("gpu: delete of unknown handle %d", h)
		}
		delete(x.live, h)
	}
	return nil
}

// Live returns the number of created handles not yet deleted.
func (x *CountingAllocator) Live() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.live)
}
