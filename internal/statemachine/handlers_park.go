package statemachine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/cenkalti/backoff/v4"

	"github.com/huntsman-telescope/huntsman-core/internal/observatory"
)

// onParking closes the observatory and parks the mount. A mount timeout
// is retried with the same timeouts up to mount.num_park_attempts times;
// the final timeout ends the run. Any other failure is logged and the
// machine continues to parked.
func onParking(ctx context.Context, ev *EventData) error {
	ev.NextState = StateParked
	e := ev.Engine
	obs := e.observatory

	e.say("Parking the observatory")
	obs.ClearObservation()

	if err := obs.CloseDome(ctx); err != nil {
		e.logger.Error("closing dome failed", "error", err)
	}

	attempts := e.settings.Int(KeyNumParkAttempts, DefaultNumParkAttempts)
	if attempts < 1 {
		attempts = 1
	}
	homeTimeout := e.settings.Duration(KeyHomeTimeout, DefaultHomeTimeout)
	parkTimeout := e.settings.Duration(KeyParkTimeout, DefaultParkTimeout)

	attempt := 0
	op := func() error {
		attempt++
		err := obs.Mount().HomeAndPark(ctx, homeTimeout, parkTimeout)
		for _, o := range e.observers {
			o.OnParkAttempt(attempt, err)
		}
		if err == nil {
			return nil
		}
		if errors.Is(err, observatory.ErrMountTimeout) {
			e.logger.Warn("mount timed out homing and parking",
				"attempt", attempt, "max_attempts", attempts, "error", err)
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(attempts-1)), ctx)
	err := backoff.Retry(op, policy)
	switch {
	case err == nil:
		e.say("Mount parked")
	case errors.Is(err, observatory.ErrMountTimeout):
		e.say("Mount could not be parked")
		return fmt.Errorf("home and park after %d attempts: %w", attempt, err)
	default:
		e.logger.Error("home and park failed", "error", err, "attempt", attempt)
	}
	return nil
}

// onParked chooses darks when it is dark but the weather is bad.
func onParked(_ context.Context, ev *EventData) error {
	ev.NextState = StateHousekeeping
	e := ev.Engine

	if e.safety.IsDark(HorizonFlat) && !e.safety.IsWeatherSafe() {
		e.say("Dark but the weather is bad, taking darks")
		ev.NextState = StateTakingDarks
	}
	return nil
}

// onHousekeeping tidies observation data and warms cooled cameras.
// Failures are logged and never block sleeping.
func onHousekeeping(ctx context.Context, ev *EventData) error {
	ev.NextState = StateSleeping
	e := ev.Engine
	obs := e.observatory

	e.say("Housekeeping")
	if err := obs.CleanupObservations(ctx); err != nil {
		e.logger.Warn("cleaning up observations failed", "error", err)
	}

	cameras := obs.Cameras()
	ids := make([]string, 0, len(cameras))
	for id := range cameras {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		cam := cameras[id]
		if !cam.IsCooledCamera() || !cam.CoolingEnabled() {
			continue
		}
		if err := cam.DeactivateCooling(ctx); err != nil {
			e.logger.Warn("deactivating cooling failed", "camera", id, "error", err)
		}
	}
	return nil
}

// onSleeping resets the run and waits, closed up, until it is safe to
// start again. Daylight ends the night: twilight flats become due again.
// After a start-up that reached no observation it waits one more
// wait_delay, so a persistent fault cannot cycle the hardware.
func onSleeping(ctx context.Context, ev *EventData) error {
	ev.NextState = StateStarting
	e := ev.Engine
	obs := e.observatory

	obs.ResetObservingRun()
	delay := e.settings.Duration(KeyWaitDelay, DefaultWaitDelay)

	domeClosed := false
	for !e.safety.IsSafe(HorizonStartup) {
		if !e.safety.IsDark(HorizonStartup) {
			e.flatsDone = false
		}
		if !domeClosed {
			if err := obs.CloseDome(ctx); err != nil {
				e.logger.Error("closing dome failed", "error", err)
			} else {
				domeClosed = true
			}
		}

		e.logger.Info("sleeping until safe", "delay", delay)
		if !e.pause(ctx, delay) {
			return nil
		}
	}

	if e.idleCycles > 0 {
		e.logger.Warn("last start-up reached no observation, backing off",
			"idle_cycles", e.idleCycles, "delay", delay)
		if !e.pause(ctx, delay) {
			return nil
		}
	}

	e.say("Waking up")
	return nil
}
