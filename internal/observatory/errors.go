package observatory

import "errors"

// Domain errors raised by observatory collaborators. Handlers match them
// with errors.Is; anything unrecognised is treated as a generic fault.
var (
	// ErrNotTwilight is returned when an operation needs twilight or
	// darkness that has ended (or not begun).
	ErrNotTwilight = errors.New("observatory: not twilight")

	// ErrNotSafe is returned when conditions became unsafe mid-operation.
	ErrNotSafe = errors.New("observatory: not safe")

	// ErrMountTimeout is returned when a mount home or park exceeds its deadline.
	ErrMountTimeout = errors.New("observatory: mount timeout")

	// ErrExposureTimeout is returned when a camera exposure did not complete.
	ErrExposureTimeout = errors.New("observatory: exposure timeout")

	// ErrNoObservation is returned when the scheduler has nothing valid to observe.
	ErrNoObservation = errors.New("observatory: no valid observation")

	// ErrAttribute is returned for a hardware attribute or driver fault.
	ErrAttribute = errors.New("observatory: hardware attribute error")
)
