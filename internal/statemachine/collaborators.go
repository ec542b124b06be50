package statemachine

import (
	"context"
	"time"

	"github.com/huntsman-telescope/huntsman-core/internal/observatory"
	"github.com/huntsman-telescope/huntsman-core/internal/remoteevent"
)

// Observatory is the hardware facade the handlers drive. Long operations
// that run on several cameras at once return one remote event per camera;
// the handler waits on them with an AND barrier.
type Observatory interface {
	PrepareCameras(ctx context.Context) error
	Mount() Mount
	Cameras() map[string]Camera
	OpenDome(ctx context.Context) error
	CloseDome(ctx context.Context) error

	// GetObservation asks the scheduler for the next target and makes it current.
	GetObservation(ctx context.Context, c observatory.Constraints) (*observatory.Observation, error)
	CurrentObservation() *observatory.Observation
	ClearObservation()
	ResetObservingRun()

	PrepareTarget(ctx context.Context) error
	SlewToTarget(ctx context.Context) error
	Dither(ctx context.Context) error

	AutofocusCameras(ctx context.Context) (map[string]*remoteevent.Event, error)
	Observe(ctx context.Context) (map[string]*remoteevent.Event, error)
	AnalyzeRecent(ctx context.Context) error

	TakeDarkObservation(ctx context.Context, bias bool) error
	TakeFlatFields(ctx context.Context) error
	CleanupObservations(ctx context.Context) error
}

// Mount is the part of the mount the handlers command directly.
type Mount interface {
	Unpark(ctx context.Context) error
	HomeAndPark(ctx context.Context, homeTimeout, parkTimeout time.Duration) error
}

// Camera is the per-camera view used during housekeeping.
type Camera interface {
	IsCooledCamera() bool
	CoolingEnabled() bool
	DeactivateCooling(ctx context.Context) error
}

// SafetyMonitor answers whether it is safe and dark enough to operate.
type SafetyMonitor interface {
	IsSafe(horizon string) bool
	IsDark(horizon string) bool
	IsWeatherSafe() bool
}

// Settings is read-only access to dotted configuration tunables.
type Settings interface {
	Bool(key string, def bool) bool
	Int(key string, def int) int
	Float(key string, def float64) float64
	Duration(key string, def time.Duration) time.Duration
}

// Narrator relays operator-facing announcements.
type Narrator interface {
	Say(msg string)
}

// Logger is the logging surface used by the engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
