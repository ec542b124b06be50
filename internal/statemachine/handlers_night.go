package statemachine

import (
	"context"
	"errors"
	"fmt"

	"github.com/huntsman-telescope/huntsman-core/internal/observatory"
)

// onStarting readies the hardware and opens up if it is safe to do so.
func onStarting(ctx context.Context, ev *EventData) error {
	ev.NextState = StateParking
	e := ev.Engine
	obs := e.observatory

	e.say("Starting up the observatory")
	e.idleCycles++

	if err := obs.PrepareCameras(ctx); err != nil {
		e.logger.Error("preparing cameras failed", "error", err)
		return nil
	}
	if err := obs.Mount().Unpark(ctx); err != nil {
		e.logger.Error("unparking mount failed", "error", err)
		return nil
	}
	if err := obs.OpenDome(ctx); err != nil {
		e.logger.Error("opening dome failed", "error", err)
		return nil
	}

	if e.safety.IsSafe(HorizonStartup) {
		ev.NextState = StateReady
	} else {
		e.say("Not safe to start observing")
	}
	return nil
}

// onReady picks the night's activity. When it is dark enough to start but
// not to observe and flats are done, it waits for observing darkness
// while the startup horizon stays safe.
func onReady(ctx context.Context, ev *EventData) error {
	ev.NextState = StateParking
	e := ev.Engine
	delay := e.settings.Duration(KeyWaitDelay, DefaultWaitDelay)

	for {
		switch {
		case e.safety.IsDark(HorizonObserve):
			e.say("Ready to observe")
			ev.NextState = StateScheduling
			return nil
		case e.safety.IsDark(HorizonFlat) && e.settings.Bool(KeyFlatEnabled, false) && !e.flatsDone:
			e.say("Ready for twilight flats")
			ev.NextState = StateTwilightFlatFielding
			return nil
		case !e.safety.IsSafe(HorizonStartup):
			e.say("Conditions changed while waiting for darkness")
			return nil
		}

		e.logger.Info("waiting for observing darkness", "delay", delay)
		if !e.pause(ctx, delay) {
			return nil
		}
	}
}

// onScheduling asks the scheduler for the next observation.
func onScheduling(ctx context.Context, ev *EventData) error {
	ev.NextState = StateParking
	e := ev.Engine

	constraints := observatory.Constraints{
		MinMoonSep: e.settings.Float(KeyMinMoonSep, DefaultMinMoonSep),
	}
	obs, err := e.observatory.GetObservation(ctx, constraints)
	if err != nil {
		if errors.Is(err, observatory.ErrNoObservation) {
			e.say("No valid observations found, parking")
		} else {
			e.logger.Error("scheduling failed", "error", err)
		}
		return nil
	}
	if obs == nil {
		e.say("Scheduler returned nothing, parking")
		return nil
	}

	e.idleCycles = 0
	e.say(fmt.Sprintf("Got observation %s", obs))
	if e.settings.Bool(KeyPrepareTarget, false) {
		ev.NextState = StatePreparing
	} else {
		ev.NextState = StateSlewing
	}
	return nil
}

// onPreparing runs the per-target setup hook.
func onPreparing(ctx context.Context, ev *EventData) error {
	ev.NextState = StateParking
	e := ev.Engine

	if err := e.observatory.PrepareTarget(ctx); err != nil {
		e.logger.Error("preparing target failed", "error", err)
		return nil
	}
	ev.NextState = StateSlewing
	return nil
}

// onSlewing points the mount at the current observation.
func onSlewing(ctx context.Context, ev *EventData) error {
	ev.NextState = StateParking
	e := ev.Engine

	obs := e.observatory.CurrentObservation()
	if obs == nil {
		e.logger.Error("slewing without an observation")
		return nil
	}

	e.say(fmt.Sprintf("Slewing to %s", obs.Field.Name))
	if err := e.observatory.SlewToTarget(ctx); err != nil {
		e.logger.Error("slew failed", "error", err, "observation", obs.ID)
		return nil
	}

	if obs.FocusRequired {
		ev.NextState = StateFocusing
	} else {
		ev.NextState = StateObserving
	}
	return nil
}

// onFocusing autofocuses every camera and waits for all of them.
func onFocusing(ctx context.Context, ev *EventData) error {
	ev.NextState = StateParking
	e := ev.Engine

	e.say("Focusing the cameras")
	events, err := e.observatory.AutofocusCameras(ctx)
	if err != nil {
		e.logger.Error("starting autofocus failed", "error", err)
		return nil
	}
	if err := e.waitForCameras(ctx, StateFocusing, events); err != nil {
		if errors.Is(err, observatory.ErrExposureTimeout) {
			e.say("Timeout waiting for autofocus")
		}
		e.logger.Error("autofocus did not complete", "error", err)
		return nil
	}

	ev.NextState = StateObserving
	return nil
}

// onObserving exposes the current observation on every camera.
func onObserving(ctx context.Context, ev *EventData) error {
	ev.NextState = StateParking
	e := ev.Engine

	obs := e.observatory.CurrentObservation()
	if obs == nil {
		e.logger.Error("observing without an observation")
		return nil
	}
	if obs.SetIsFinished() {
		e.logger.Info("exposure set already finished", "observation", obs.ID)
		ev.NextState = StateScheduling
		return nil
	}

	e.say(fmt.Sprintf("Observing %s", obs))
	events, err := e.observatory.Observe(ctx)
	if err != nil {
		if errors.Is(err, observatory.ErrExposureTimeout) {
			e.say("Timeout waiting for images")
		} else {
			e.logger.Error("starting exposures failed", "error", err)
		}
		return nil
	}
	if err := e.waitForCameras(ctx, StateObserving, events); err != nil {
		if errors.Is(err, observatory.ErrExposureTimeout) {
			e.say("Timeout waiting for images")
		}
		e.logger.Error("exposures did not complete", "error", err)
		return nil
	}

	ev.NextState = StateAnalyzing
	return nil
}

// onAnalyzing processes the latest frames. Analysis failures never
// change the next state.
func onAnalyzing(ctx context.Context, ev *EventData) error {
	ev.NextState = StateDithering
	e := ev.Engine

	if err := e.observatory.AnalyzeRecent(ctx); err != nil {
		e.logger.Warn("analysis failed", "error", err)
	}

	if e.settings.Bool(KeyForceReschedule, false) {
		e.logger.Info("forcing reschedule")
		ev.NextState = StateScheduling
	}
	if obs := e.observatory.CurrentObservation(); obs != nil && obs.SetIsFinished() {
		e.logger.Info("exposure set finished", "observation", obs.ID)
		ev.NextState = StateScheduling
	}
	return nil
}

// onDithering offsets the mount between exposures.
func onDithering(ctx context.Context, ev *EventData) error {
	ev.NextState = StateParking
	e := ev.Engine

	if err := e.observatory.Dither(ctx); err != nil {
		e.logger.Error("dither failed", "error", err)
		return nil
	}
	ev.NextState = StateObserving
	return nil
}
