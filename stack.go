package layerloop

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"
)

type mutationKind uint8

const (
	mutationPush mutationKind = iota
	mutationPop
	mutationManipulate
	mutationClear
)

// mutation is a deferred structural change to a LayerStack.
type mutation struct {
	factory Factory
	layer   Layer
	fn      func(layers *Layers) error
	index   int
	handle  Handle
	kind    mutationKind
}

// LayerStack is the ordered set of layers driven by an App.
//
// Structural changes are never applied immediately. Push, Pop, Manipulate
// and Clear queue a task, which the App applies at the start of the next
// frame, and these methods are safe to call from any goroutine, including
// from layer callbacks. The read methods (Len, Layers, Lookup...) must only
// be called from the loop goroutine.
type LayerStack struct {
	app     *App
	byLayer map[Layer]Handle
	arena   arena
	order   []Handle
	pending []mutation
	spare   []mutation
	mu      sync.Mutex
	// applying is the id of the goroutine applying mutations, or 0
	applying atomic.Int64
}

func newLayerStack(app *App) *LayerStack {
	return &LayerStack{
		app:     app,
		byLayer: make(map[Layer]Handle),
	}
}

// Push queues construction of a layer by factory, and its insertion at
// index. Negative indexes count from the end, with -1 meaning append.
//
// The task fails if the factory fails or returns nil, if the layer is
// already in the stack, or if the normalized index is not in [0, Len()].
func (s *LayerStack) Push(factory Factory, index int) {
	s.enqueue(mutation{kind: mutationPush, factory: factory, index: index})
}

// PushLayer queues insertion of an existing layer instance at index.
func (s *LayerStack) PushLayer(layer Layer, index int) {
	s.Push(func(*App) (Layer, error) { return layer, nil }, index)
}

// PushWith queues construction of a layer from args, deferring ctor until
// the task is applied, so any resources it acquires are acquired exactly
// once, and only for a layer that will be inserted.
func PushWith[A any](s *LayerStack, index int, ctor func(app *App, args A) (Layer, error), args A) {
	if ctor == nil {
		s.Push(nil, index)
		return
	}
	s.Push(func(app *App) (Layer, error) { return ctor(app, args) }, index)
}

// Pop queues removal of layer. The task fails with ErrLayerNotFound if the
// layer is not in the stack when it is applied. The layer is released as
// part of the task.
func (s *LayerStack) Pop(layer Layer) {
	s.enqueue(mutation{kind: mutationPop, layer: layer})
}

// PopHandle queues removal of the layer referenced by h.
func (s *LayerStack) PopHandle(h Handle) {
	s.enqueue(mutation{kind: mutationPop, handle: h})
}

// Manipulate queues fn, which receives the live stack for arbitrary bulk
// changes.
func (s *LayerStack) Manipulate(fn func(layers *Layers) error) {
	s.enqueue(mutation{kind: mutationManipulate, fn: fn})
}

// Clear queues removal of every layer.
func (s *LayerStack) Clear() {
	s.enqueue(mutation{kind: mutationClear})
}

// Pending returns the number of queued tasks.
func (s *LayerStack) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Len returns the number of layers.
func (s *LayerStack) Len() int {
	return s.arena.live
}

// Layers returns the layers in stack order.
func (s *LayerStack) Layers() []Layer {
	layers := make([]Layer, 0, s.arena.live)
	for _, h := range s.order {
		if layer, ok := s.arena.get(h); ok {
			layers = append(layers, layer)
		}
	}
	return layers
}

// Handles returns the handles of the layers, in stack order.
func (s *LayerStack) Handles() []Handle {
	handles := make([]Handle, 0, s.arena.live)
	for _, h := range s.order {
		if !h.IsZero() {
			handles = append(handles, h)
		}
	}
	return handles
}

// Lookup resolves h, returning false if the layer has been removed.
func (s *LayerStack) Lookup(h Handle) (Layer, bool) {
	return s.arena.get(h)
}

// HandleOf returns the handle of layer, if it is in the stack.
func (s *LayerStack) HandleOf(layer Layer) (Handle, bool) {
	if layer == nil || !reflect.TypeOf(layer).Comparable() {
		return Handle{}, false
	}
	h, ok := s.byLayer[layer]
	return h, ok
}

func (s *LayerStack) alive(h Handle) bool {
	_, ok := s.arena.get(h)
	return ok
}

func (s *LayerStack) enqueue(m mutation) {
	if id := s.applying.Load(); id != 0 && id == goid.Get() {
		panic(invariantf("structural mutations cannot be scheduled from a structural mutation task"))
	}
	s.mu.Lock()
	s.pending = append(s.pending, m)
	s.mu.Unlock()
}

// apply runs every queued task, in order, then compacts the stack. The
// first failing task aborts the batch, and the remaining tasks are
// discarded. It reports whether there was anything to apply.
func (s *LayerStack) apply() (bool, *MutationError) {
	s.mu.Lock()
	tasks := s.pending
	s.pending = s.spare[:0]
	s.spare = nil
	s.mu.Unlock()

	if len(tasks) == 0 {
		s.spare = tasks
		return false, nil
	}

	s.applying.Store(goid.Get())
	defer s.applying.Store(0)

	var failure *MutationError
	for i := range tasks {
		if err := callSafe(func() error { return s.run(&tasks[i]) }); err != nil {
			failure = &MutationError{Err: err, Index: i, Discarded: len(tasks) - i - 1}
			break
		}
	}

	clear(tasks)
	s.spare = tasks[:0]
	s.compact()

	return true, failure
}

func (s *LayerStack) run(m *mutation) error {
	layers := Layers{s: s}
	switch m.kind {
	case mutationPush:
		if m.factory == nil {
			return ErrNilFactory
		}
		layer, err := m.factory(s.app)
		if err != nil {
			return err
		}
		if err := s.checkInsertable(layer); err != nil {
			return err
		}
		i, err := normalizeIndex(m.index, s.liveLen())
		if err != nil {
			s.release(layer)
			return err
		}
		s.insertAt(s.slotOf(i), layer)
		return nil

	case mutationPop:
		var i int
		if m.layer != nil {
			i = layers.Index(m.layer)
		} else {
			i = layers.indexOfHandle(m.handle)
		}
		if i < 0 {
			if m.layer != nil {
				return fmt.Errorf("%w: %T", ErrLayerNotFound, m.layer)
			}
			return fmt.Errorf("%w: handle %s", ErrLayerNotFound, m.handle)
		}
		s.erase(i)
		return nil

	case mutationManipulate:
		if m.fn == nil {
			return nil
		}
		return m.fn(&layers)

	case mutationClear:
		for len(s.order) != 0 {
			s.erase(0)
		}
		return nil

	default:
		panic(invariantf("unknown mutation kind %d", m.kind))
	}
}

func (s *LayerStack) compact() {
	s.order = slices.DeleteFunc(s.order, Handle.IsZero)
}

// erase removes and releases the layer at position i, closing the gap.
func (s *LayerStack) erase(i int) {
	h := s.order[i]
	s.order = slices.Delete(s.order, i, i+1)
	s.drop(h)
}

func (s *LayerStack) drop(h Handle) {
	layer, ok := s.arena.remove(h)
	if !ok {
		return
	}
	delete(s.byLayer, layer)
	s.release(layer)
}

// liveLen returns the number of layers, excluding holes.
func (s *LayerStack) liveLen() int {
	n := len(s.order)
	for _, h := range s.order {
		if h.IsZero() {
			n--
		}
	}
	return n
}

// slotOf maps the live position i, in [0, liveLen()], to a position in
// s.order.
func (s *LayerStack) slotOf(i int) int {
	for slot, h := range s.order {
		if h.IsZero() {
			continue
		}
		if i == 0 {
			return slot
		}
		i--
	}
	return len(s.order)
}

func (s *LayerStack) checkInsertable(layer Layer) error {
	if layer == nil {
		return ErrNilLayer
	}
	if v := reflect.ValueOf(layer); v.Kind() == reflect.Pointer && v.IsNil() {
		return ErrNilLayer
	}
	if !reflect.TypeOf(layer).Comparable() {
		return fmt.Errorf("%w: %T", ErrLayerNotComparable, layer)
	}
	if _, ok := s.byLayer[layer]; ok {
		return fmt.Errorf("%w: %T", ErrLayerExists, layer)
	}
	return nil
}

func (s *LayerStack) insertAt(slot int, layer Layer) Handle {
	h := s.arena.insert(layer)
	s.byLayer[layer] = h
	s.order = slices.Insert(s.order, slot, h)
	return h
}

// normalizeIndex resolves index against size, where negative indexes count
// from the end.
func normalizeIndex(index, size int) (int, error) {
	i := index
	if i < 0 {
		i += size + 1
	}
	if i < 0 || i > size {
		return 0, fmt.Errorf("%w: %d not in [0, %d]", ErrIndexOutOfRange, index, size)
	}
	return i, nil
}

func (s *LayerStack) release(layer Layer) {
	if r, ok := layer.(Releaser); ok {
		r.Release(s.app)
	}
}

// Layers is the live view of a LayerStack, passed to tasks queued with
// LayerStack.Manipulate. Removing a layer leaves a hole (a nil layer and a
// zero Handle) at its position, until every task of the frame has run.
//
// A Layers value must not be retained beyond the task it was passed to.
type Layers struct {
	s *LayerStack
}

// Len returns the number of positions, including holes.
func (l *Layers) Len() int {
	return len(l.s.order)
}

// At returns the layer at position i, or nil for a hole.
func (l *Layers) At(i int) Layer {
	layer, _ := l.s.arena.get(l.s.order[i])
	return layer
}

// Handle returns the handle at position i, which is zero for a hole.
func (l *Layers) Handle(i int) Handle {
	return l.s.order[i]
}

// Index returns the position of layer, or -1.
func (l *Layers) Index(layer Layer) int {
	h, ok := l.s.HandleOf(layer)
	if !ok {
		return -1
	}
	return l.indexOfHandle(h)
}

func (l *Layers) indexOfHandle(h Handle) int {
	if h.IsZero() {
		return -1
	}
	return slices.Index(l.s.order, h)
}

// Insert adds layer at index, where negative indexes count from the end,
// -1 meaning append.
func (l *Layers) Insert(index int, layer Layer) (Handle, error) {
	if err := l.s.checkInsertable(layer); err != nil {
		return Handle{}, err
	}
	i, err := normalizeIndex(index, len(l.s.order))
	if err != nil {
		return Handle{}, err
	}
	return l.s.insertAt(i, layer), nil
}

// Remove removes and releases the layer at position i, leaving a hole.
// Removing a hole is a no-op.
func (l *Layers) Remove(i int) error {
	s := l.s
	if i < 0 || i >= len(s.order) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, len(s.order))
	}
	h := s.order[i]
	s.order[i] = Handle{}
	s.drop(h)
	return nil
}

// Clear removes and releases every layer, in stack order.
func (l *Layers) Clear() {
	for i := range l.s.order {
		_ = l.Remove(i)
	}
}
