package layerloop

import (
	"strconv"
)

// Handle is a non-owning reference to a layer in a LayerStack. It pairs a
// slot index with a generation; once the layer is removed the slot's
// generation advances and every outstanding Handle to it is expired.
//
// The zero Handle never refers to a layer.
type Handle struct {
	index uint32
	gen   uint32
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool {
	return h.gen == 0
}

// String formats the handle as slot#generation.
func (h Handle) String() string {
	if h.IsZero() {
		return "<nil>"
	}
	return strconv.FormatUint(uint64(h.index), 10) + "#" + strconv.FormatUint(uint64(h.gen), 10)
}

type arenaSlot struct {
	layer Layer
	gen   uint32
}

// arena stores layers in reusable slots.
type arena struct {
	slots []arenaSlot
	free  []uint32
	live  int
}

func (a *arena) insert(layer Layer) Handle {
	var index uint32
	if n := len(a.free); n != 0 {
		index = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		index = uint32(len(a.slots))
		a.slots = append(a.slots, arenaSlot{gen: 1})
	}
	slot := &a.slots[index]
	slot.layer = layer
	a.live++
	return Handle{index: index, gen: slot.gen}
}

func (a *arena) get(h Handle) (Layer, bool) {
	if h.gen == 0 || int(h.index) >= len(a.slots) {
		return nil, false
	}
	slot := &a.slots[h.index]
	if slot.gen != h.gen || slot.layer == nil {
		return nil, false
	}
	return slot.layer, true
}

func (a *arena) remove(h Handle) (Layer, bool) {
	layer, ok := a.get(h)
	if !ok {
		return nil, false
	}
	slot := &a.slots[h.index]
	slot.layer = nil
	slot.gen++
	if slot.gen == 0 {
		slot.gen = 1
	}
	a.free = append(a.free, h.index)
	a.live--
	return layer, true
}
