package layerloop

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by operations on an App after Close.
	ErrClosed = errors.New("layerloop: app closed")

	// ErrReentrantRun is returned when Run or Step is called from a layer
	// callback, i.e. from the goroutine that is already driving the loop.
	ErrReentrantRun = errors.New("layerloop: cannot run the loop from within the loop")

	// ErrRunning is returned when Run or Step is called from a second
	// goroutine while the loop is already being driven.
	ErrRunning = errors.New("layerloop: loop is already running")

	ErrNilLayer           = errors.New("layerloop: nil layer")
	ErrNilFactory         = errors.New("layerloop: nil layer factory")
	ErrLayerExists        = errors.New("layerloop: layer already in stack")
	ErrLayerNotFound      = errors.New("layerloop: layer not in stack")
	ErrLayerNotComparable = errors.New("layerloop: layer type is not comparable")
	ErrIndexOutOfRange    = errors.New("layerloop: stack index out of range")
)

// PanicError wraps a value recovered from a panicking layer callback or
// mutation task.
type PanicError struct {
	Value any
}

// Error implements the error interface.
func (e PanicError) Error() string {
	return fmt.Sprintf("layerloop: panic: %v", e.Value)
}

// Unwrap returns the panic value if it is an error, allowing
// [errors.Is] and [errors.As] to see through the panic.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// MutationError reports the structural mutation task that aborted the
// mutation phase of a frame. Tasks queued after it were discarded.
type MutationError struct {
	Err error
	// Index is the position of the failed task within the frame's batch.
	Index int
	// Discarded is the number of tasks dropped after the failure.
	Discarded int
}

// Error implements the error interface.
func (e *MutationError) Error() string {
	return fmt.Sprintf("layerloop: mutation task %d failed (%d discarded): %v", e.Index, e.Discarded, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

// CallbackError reports a failed layer callback. It is logged and counted,
// never propagated out of the loop.
type CallbackError struct {
	Err    error
	Handle Handle
	Phase  Phase
}

// Error implements the error interface.
func (e *CallbackError) Error() string {
	return fmt.Sprintf("layerloop: %s callback of layer %s failed: %v", e.Phase, e.Handle, e.Err)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}

// InvariantError indicates a logic defect, e.g. a layer scheduled twice, or
// a mutation enqueued while mutations are being applied. It is always raised
// with panic, and is never recovered by the loop.
type InvariantError struct {
	Message string
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	return "layerloop: invariant violated: " + e.Message
}

func invariantf(format string, args ...any) *InvariantError {
	return &InvariantError{Message: fmt.Sprintf(format, args...)}
}

// Phase identifies a stage of the frame loop.
type Phase uint8

const (
	PhaseMutate Phase = iota
	PhaseEvent
	PhaseUpdate
	PhaseRender
)

// String returns the lowercase phase name.
func (p Phase) String() string {
	switch p {
	case PhaseMutate:
		return "mutate"
	case PhaseEvent:
		return "event"
	case PhaseUpdate:
		return "update"
	case PhaseRender:
		return "render"
	default:
		return fmt.Sprintf("Phase(%d)", uint8(p))
	}
}

// callSafe runs fn, converting a panic into a PanicError. An *InvariantError
// panic is re-raised.
func callSafe(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if ie, ok := r.(*InvariantError); ok {
				panic(ie)
			}
			err = PanicError{Value: r}
		}
	}()
	return fn()
}
