package statemachine

import (
	"context"
	"errors"

	"github.com/huntsman-telescope/huntsman-core/internal/observatory"
)

// onTakingDarks takes bias frames then darks. Darkness is checked before
// every frame; losing it ends the sequence quietly. Other frame failures
// are logged and the sequence moves on.
func onTakingDarks(ctx context.Context, ev *EventData) error {
	ev.NextState = StateHousekeeping
	e := ev.Engine

	defer func() {
		if e.safety.IsSafe(HorizonStartup) {
			ev.NextState = StateStarting
		}
	}()

	if !e.safety.IsDark(HorizonFlat) {
		e.say("Not dark enough for darks")
		return nil
	}

	steps := []struct {
		name  string
		bias  bool
		count int
	}{
		{"bias", true, e.settings.Int(KeyBiasNumber, DefaultBiasNumber)},
		{"dark", false, e.settings.Int(KeyDarkNumber, DefaultDarkNumber)},
	}

	e.say("Taking darks")
	for _, step := range steps {
		for i := 0; i < step.count; i++ {
			if ctx.Err() != nil || e.stopRequested() {
				return nil
			}
			if !e.safety.IsDark(HorizonFlat) {
				e.say("Darkness ended, stopping darks")
				return nil
			}

			err := e.observatory.TakeDarkObservation(ctx, step.bias)
			switch {
			case err == nil:
			case errors.Is(err, observatory.ErrNotTwilight):
				e.say("Darkness ended, stopping darks")
				return nil
			default:
				e.logger.Warn("calibration frame failed",
					"kind", step.name, "frame", i+1, "of", step.count, "error", err)
			}
		}
	}
	return nil
}

// onTwilightFlatFielding takes flats. Running out of twilight is a normal
// finish; unsafe conditions park. Flats finished before observing darkness
// hand back to ready, which waits for it.
func onTwilightFlatFielding(ctx context.Context, ev *EventData) error {
	ev.NextState = StateParking
	e := ev.Engine

	e.say("Taking twilight flats")
	err := e.observatory.TakeFlatFields(ctx)
	e.flatsDone = true

	switch {
	case err == nil:
		e.say("Flats finished")
	case errors.Is(err, observatory.ErrNotSafe):
		e.say("Not safe for flats, parking")
		return nil
	case errors.Is(err, observatory.ErrNotTwilight):
		e.say("Twilight over, flats finished")
	default:
		e.logger.Error("flat fielding failed", "error", err)
	}

	ev.NextState = StateScheduling
	if !e.safety.IsDark(HorizonObserve) {
		ev.NextState = StateReady
	}
	return nil
}
