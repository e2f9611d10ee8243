package layerloop

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/joeycumines/go-layerloop/gpu"
	"github.com/joeycumines/logiface"
)

// DefaultTargetRenderPeriod is 60 frames per second.
const DefaultTargetRenderPeriod = time.Second / 60

// DefaultErrorLogRates bounds callback failure logs, per phase and layer.
var DefaultErrorLogRates = map[time.Duration]int{
	time.Second: 5,
	time.Minute: 60,
}

// appOptions holds configuration options for App creation.
type appOptions struct {
	logger        *logiface.Logger[logiface.Event]
	clock         Clock
	device        gpu.Device
	errorLogRates map[time.Duration]int
	period        time.Duration
}

// Option configures an App instance.
type Option interface {
	applyApp(*appOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyAppFunc func(*appOptions) error
}

func (o *optionImpl) applyApp(opts *appOptions) error {
	return o.applyAppFunc(opts)
}

// WithLogger sets the logger used by the App. A nil logger (the default)
// disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *appOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithClock replaces the wall clock, e.g. with a simulated one.
func WithClock(clock Clock) Option {
	return &optionImpl{func(opts *appOptions) error {
		if clock == nil {
			return errors.New("layerloop: nil clock")
		}
		opts.clock = clock
		return nil
	}}
}

// WithTargetRenderPeriod sets the initial target render period.
func WithTargetRenderPeriod(period time.Duration) Option {
	return &optionImpl{func(opts *appOptions) error {
		if period <= 0 {
			return errors.New("layerloop: target render period must be positive")
		}
		opts.period = period
		return nil
	}}
}

// WithTargetRenderRate sets the initial target render rate, in hertz.
func WithTargetRenderRate(hz float64) Option {
	return &optionImpl{func(opts *appOptions) error {
		period, err := rateToPeriod(hz)
		if err != nil {
			return err
		}
		opts.period = period
		return nil
	}}
}

// WithErrorLogRates configures the rate limits applied to callback failure
// logs, per phase and layer. A nil or empty map disables limiting.
func WithErrorLogRates(rates map[time.Duration]int) Option {
	return &optionImpl{func(opts *appOptions) error {
		opts.errorLogRates = rates
		return nil
	}}
}

// WithDevice sets the GPU device backing App.Renderer, overriding any
// device provided by a DeviceBackend.
func WithDevice(device gpu.Device) Option {
	return &optionImpl{func(opts *appOptions) error {
		opts.device = device
		return nil
	}}
}

// resolveOptions applies Option instances to appOptions.
func resolveOptions(opts []Option) (*appOptions, error) {
	cfg := &appOptions{
		clock:         SystemClock{},
		period:        DefaultTargetRenderPeriod,
		errorLogRates: DefaultErrorLogRates,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyApp(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func rateToPeriod(hz float64) (time.Duration, error) {
	if !(hz > 0) {
		return 0, errors.New("layerloop: target render rate must be positive")
	}
	if math.IsInf(hz, 1) || 1/hz > math.MaxInt64/float64(time.Second) {
		return 0, fmt.Errorf("layerloop: target render rate out of range: %vHz", hz)
	}
	return max(time.Duration(float64(time.Second)/hz), 1), nil
}
