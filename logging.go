package layerloop

import (
	"fmt"
	"time"

	catrate "github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// callbackCategory is the rate limit category of callback failure logs.
type callbackCategory struct {
	handle Handle
	phase  Phase
}

func newErrorLimiter(rates map[time.Duration]int) (limiter *catrate.Limiter, err error) {
	if len(rates) == 0 {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("layerloop: invalid error log rates: %v", r)
		}
	}()
	return catrate.NewLimiter(rates), nil
}

func (a *App) log() *logiface.Logger[logiface.Event] {
	if a == nil {
		return nil
	}
	return a.logger
}

func (a *App) logCritical(err error, msg string) {
	a.log().Crit().
		Err(err).
		Log(msg)
}

func (a *App) logCallbackError(err *CallbackError, layer Layer) {
	if _, ok := a.errLimiter.Allow(callbackCategory{handle: err.Handle, phase: err.Phase}); !ok {
		return
	}
	a.logger.Err().
		Str(`phase`, err.Phase.String()).
		Str(`layer`, err.Handle.String()).
		Str(`layer_type`, fmt.Sprintf(`%T`, layer)).
		Err(err.Err).
		Log(`layer callback failed`)
}

func (a *App) logMutationError(err *MutationError) {
	a.logger.Err().
		Int(`task`, err.Index).
		Int(`discarded`, err.Discarded).
		Err(err.Err).
		Log(`structural mutation failed`)
}
