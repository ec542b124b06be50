package safety

import "errors"

var (
	// ErrUnknownHorizon is returned when a horizon name is not configured.
	ErrUnknownHorizon = errors.New("safety: unknown horizon")

	// ErrInvalidReading is returned when a weather message cannot be decoded.
	ErrInvalidReading = errors.New("safety: invalid weather reading")
)
