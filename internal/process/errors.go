package process

import "errors"

var (
	// ErrAlreadyRunning indicates Start was called on a running driver.
	ErrAlreadyRunning = errors.New("process: already running")

	// ErrStartFailed indicates the driver binary could not be started.
	ErrStartFailed = errors.New("process: start failed")

	// ErrUnhealthy indicates the driver was killed after failed health checks.
	ErrUnhealthy = errors.New("process: unhealthy")

	// ErrDriverDown indicates a supervised driver is not running.
	ErrDriverDown = errors.New("process: driver down")
)
