package headless

import (
	"errors"

	"github.com/joeycumines/logiface"
)

const defaultEventBuffer = 256

type backendOptions struct {
	logger      *logiface.Logger[logiface.Event]
	eventBuffer int
	maxFrames   int
}

// Option configures a Backend.
type Option interface {
	applyBackend(*backendOptions) error
}

type optionImpl struct {
	applyBackendFunc func(*backendOptions) error
}

func (o *optionImpl) applyBackend(opts *backendOptions) error {
	return o.applyBackendFunc(opts)
}

// WithLogger sets the logger, which may be nil.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *backendOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithEventBuffer sets the capacity of the event channel. Defaults to 256.
func WithEventBuffer(size int) Option {
	return &optionImpl{func(opts *backendOptions) error {
		if size < 0 {
			return errors.New("headless: negative event buffer")
		}
		opts.eventBuffer = size
		return nil
	}}
}

// WithFrameLimit requests a close after n buffer swaps. Zero (the default)
// means no limit.
func WithFrameLimit(n int) Option {
	return &optionImpl{func(opts *backendOptions) error {
		if n < 0 {
			return errors.New("headless: negative frame limit")
		}
		opts.maxFrames = n
		return nil
	}}
}

func resolveOptions(opts []Option) (*backendOptions, error) {
	cfg := &backendOptions{
		eventBuffer: defaultEventBuffer,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyBackend(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
