package remoteevent

import "errors"

var (
	// ErrInvalidEventType is returned when an event type is not camera,
	// focuser or filterwheel.
	ErrInvalidEventType = errors.New("remoteevent: invalid event type")

	// ErrEmptyURI is returned when an event is built without an address.
	ErrEmptyURI = errors.New("remoteevent: uri cannot be empty")

	// ErrNoTransport is returned when an event is built without a transport.
	ErrNoTransport = errors.New("remoteevent: transport is required")

	// ErrTransport wraps failures talking to the latch backend.
	ErrTransport = errors.New("remoteevent: transport failure")
)
