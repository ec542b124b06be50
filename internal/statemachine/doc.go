// Package statemachine sequences the observatory through a night.
//
// Each state has a Handler. On entry a handler first records a safe
// default next state (usually parking), then does its hardware work, and
// only advances the next state once that work succeeds. Handlers deal with
// hardware errors themselves; the only error that escapes OnEnter is a
// mount that still times out after every park attempt.
//
// Happy path through a night:
//
//	sleeping ─► starting ─► ready ─┬─► twilight_flat_fielding ─┐
//	    ▲                          │                           ▼
//	    │                          └──────────────────────► scheduling ◄──────────┐
//	    │                                                      │                  │
//	    │                                              (preparing) ─► slewing     │
//	    │                                                          │              │
//	    │                                                 (focusing) ─► observing │
//	    │                                                                 ▲  │    │
//	    │                                                     dithering ◄─┼─ analyzing
//	    │                                                                 │
//	housekeeping ◄── parked ◄── parking ◄── (any failure, or unsafe)
//	    ▲              │
//	    └─ taking_darks ◄┘ (dark but bad weather)
//
// Between states the Engine rechecks safety for the horizon of the state
// about to be entered (focus, flat, startup or observe) and forces parking
// when it fails. States in the parking family (parking, parked,
// housekeeping, sleeping, taking_darks) are exempt so the machine cannot
// loop re-parking.
//
// Focusing and observing block on an AND barrier over one remote event
// per camera, polled every PollInterval (15s by default).
//
// Configuration tunables are read through Settings using dotted keys, for
// example mount.num_park_attempts and wait_delay.
package statemachine
