package statemachine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/huntsman-telescope/huntsman-core/internal/observatory"
	"github.com/huntsman-telescope/huntsman-core/internal/remoteevent"
)

// DefaultHandlers returns the handler table for every state.
func DefaultHandlers() map[State]Handler {
	return map[State]Handler{
		StateStarting:             HandlerFunc(onStarting),
		StateReady:                HandlerFunc(onReady),
		StateScheduling:           HandlerFunc(onScheduling),
		StatePreparing:            HandlerFunc(onPreparing),
		StateSlewing:              HandlerFunc(onSlewing),
		StateFocusing:             HandlerFunc(onFocusing),
		StateObserving:            HandlerFunc(onObserving),
		StateAnalyzing:            HandlerFunc(onAnalyzing),
		StateDithering:            HandlerFunc(onDithering),
		StateParking:              HandlerFunc(onParking),
		StateParked:               HandlerFunc(onParked),
		StateHousekeeping:         HandlerFunc(onHousekeeping),
		StateSleeping:             HandlerFunc(onSleeping),
		StateTakingDarks:          HandlerFunc(onTakingDarks),
		StateTwilightFlatFielding: HandlerFunc(onTwilightFlatFielding),
	}
}

// waitForCameras blocks on the AND barrier over events for state. Safety
// for the state's horizon is rechecked on every poll; losing it abandons
// the wait with ErrNotSafe. A positive observing.barrier_timeout gives up
// with ErrExposureTimeout once exceeded. The cameras themselves are not
// interrupted.
func (e *Engine) waitForCameras(ctx context.Context, state State, events map[string]*remoteevent.Event) error {
	horizon := state.Horizon()
	limit := e.settings.Duration(KeyBarrierTimeout, 0)
	waitCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	started := time.Now()
	err := remoteevent.WaitForAll(waitCtx, events, e.pollInterval, func(elapsed time.Duration, pending []string) {
		e.logger.Info("waiting for cameras",
			"state", state, "elapsed", elapsed.Round(time.Second), "pending", pending)
		switch {
		case !e.safety.IsSafe(horizon):
			cancel(observatory.ErrNotSafe)
		case limit > 0 && elapsed >= limit:
			cancel(fmt.Errorf("%w: %v still pending after %v", observatory.ErrExposureTimeout, pending, limit))
		}
	})
	if err != nil && ctx.Err() == nil {
		cause := context.Cause(waitCtx)
		switch {
		case errors.Is(cause, observatory.ErrNotSafe):
			err = fmt.Errorf("%w: %s horizon lost while waiting", observatory.ErrNotSafe, horizon)
		case errors.Is(cause, observatory.ErrExposureTimeout):
			err = cause
		}
	}

	w := BarrierWait{State: state, Events: len(events), Waited: time.Since(started), Err: err}
	for _, o := range e.observers {
		o.OnBarrierWait(w)
	}
	return err
}
