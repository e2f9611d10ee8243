package gpu

import (
	"errors"
)

// Device provides the handle allocators of a GPU context.
type Device interface {
	Buffers() Allocator
	Framebuffers() Allocator
	Renderbuffers() Allocator
	Textures() Allocator
	VertexArrays() Allocator
}

// Renderer groups the handle caches of one device. It is obtained by layers
// from the running application.
type Renderer struct {
	Buffers       *HandleCache
	Framebuffers  *HandleCache
	Renderbuffers *HandleCache
	Textures      *HandleCache
	VertexArrays  *HandleCache
}

// NewRenderer returns a Renderer with empty caches over the allocators of
// device.
func NewRenderer(device Device) *Renderer {
	return &Renderer{
		Buffers:       NewHandleCache(device.Buffers()),
		Framebuffers:  NewHandleCache(device.Framebuffers()),
		Renderbuffers: NewHandleCache(device.Renderbuffers()),
		Textures:      NewHandleCache(device.Textures()),
		VertexArrays:  NewHandleCache(device.VertexArrays()),
	}
}

func (r *Renderer) caches() []*HandleCache {
	return []*HandleCache{r.Buffers, r.Framebuffers, r.Renderbuffers, r.Textures, r.VertexArrays}
}

// Close deletes every handle of every cache.
func (r *Renderer) Close() error {
	var errs []error
	for _, c := range r.caches() {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
