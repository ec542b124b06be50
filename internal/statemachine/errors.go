package statemachine

import "errors"

// Errors returned by the engine.
var (
	// ErrAlreadyRunning is returned when Run is called on a running engine.
	ErrAlreadyRunning = errors.New("statemachine: already running")

	// ErrNoHandler is returned when a state has no registered handler.
	ErrNoHandler = errors.New("statemachine: no handler for state")

	// ErrInvalidState is returned for a state outside the state set.
	ErrInvalidState = errors.New("statemachine: invalid state")

	// ErrMissingCollaborator is returned when NewEngine lacks a dependency.
	ErrMissingCollaborator = errors.New("statemachine: missing collaborator")
)
