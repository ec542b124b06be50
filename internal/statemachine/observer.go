package statemachine

import "time"

// Transition records one state change.
type Transition struct {
	RunID         string        `json:"run_id"`
	From          State         `json:"from"`
	To            State         `json:"to"`
	Forced        bool          `json:"forced"`
	Duration      time.Duration `json:"duration"`
	At            time.Time     `json:"at"`
	ObservationID string        `json:"observation_id,omitempty"`
}

// BarrierWait records one AND barrier wait.
type BarrierWait struct {
	State  State
	Events int
	Waited time.Duration
	Err    error
}

// Observer receives engine telemetry. Methods are called on the engine
// goroutine and must not block.
type Observer interface {
	OnTransition(t Transition)
	OnBarrierWait(w BarrierWait)
	OnParkAttempt(attempt int, err error)
}

// NopObserver implements Observer with no-ops. Embed it to implement a
// subset of the methods.
type NopObserver struct{}

// OnTransition implements Observer.
func (NopObserver) OnTransition(Transition) {}

// OnBarrierWait implements Observer.
func (NopObserver) OnBarrierWait(BarrierWait) {}

// OnParkAttempt implements Observer.
func (NopObserver) OnParkAttempt(int, error) {}
