package statemachine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventData is handed to a handler on entry. The handler reads the engine
// through it and writes NextState; nothing in it outlives the transition.
type EventData struct {
	Engine    *Engine
	NextState State
}

// Handler runs the work of one state.
type Handler interface {
	// OnEnter performs the state's work and records the next state in ev.
	// It returns an error only when the run cannot continue safely.
	OnEnter(ctx context.Context, ev *EventData) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev *EventData) error

// OnEnter implements Handler.
func (f HandlerFunc) OnEnter(ctx context.Context, ev *EventData) error {
	return f(ctx, ev)
}

// Status is a point-in-time view of the engine.
type Status struct {
	RunID          string    `json:"run_id,omitempty"`
	Running        bool      `json:"running"`
	Stopping       bool      `json:"stopping"`
	State          State     `json:"state,omitempty"`
	Previous       State     `json:"previous,omitempty"`
	Transitions    int       `json:"transitions"`
	LastTransition time.Time `json:"last_transition,omitzero"`
	ObservationID  string    `json:"observation_id,omitempty"`
}

// Engine drives the observatory through its nightly states.
//
// One goroutine (the caller of Run) executes handlers, so at most one
// handler is active at a time. Status and StopStates are safe to call
// from other goroutines.
type Engine struct {
	observatory Observatory
	safety      SafetyMonitor
	settings    Settings

	handlers     map[State]Handler
	observers    []Observer
	narrator     Narrator
	logger       Logger
	pollInterval time.Duration
	initial      State

	mu       sync.RWMutex
	status   Status
	stopCh   chan struct{}
	stopOnce *sync.Once

	// Night-scoped bookkeeping, touched only by handlers.
	flatsDone  bool
	// idleCycles counts start-ups in a row that never reached an
	// observation. sleeping backs off while it is non-zero.
	idleCycles int
}

// Option configures an Engine.
type Option func(*Engine)

// WithPollInterval sets the AND barrier poll period.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.pollInterval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObserver registers observers for transitions and waits.
func WithObserver(observers ...Observer) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, observers...)
	}
}

// WithNarrator sets where announcements are relayed besides the log.
func WithNarrator(n Narrator) Option {
	return func(e *Engine) {
		e.narrator = n
	}
}

// WithHandler replaces the handler for one state.
func WithHandler(state State, h Handler) Option {
	return func(e *Engine) {
		e.handlers[state] = h
	}
}

// WithInitialState sets the state a run starts in (default starting).
func WithInitialState(state State) Option {
	return func(e *Engine) {
		e.initial = state
	}
}

// NewEngine creates an engine with the default handler table.
func NewEngine(obs Observatory, safety SafetyMonitor, settings Settings, opts ...Option) (*Engine, error) {
	if obs == nil || safety == nil || settings == nil {
		return nil, fmt.Errorf("%w: observatory, safety monitor and settings are required", ErrMissingCollaborator)
	}

	e := &Engine{
		observatory:  obs,
		safety:       safety,
		settings:     settings,
		handlers:     DefaultHandlers(),
		logger:       noopLogger{},
		pollInterval: DefaultPollInterval,
		initial:      StateStarting,
	}
	for _, opt := range opts {
		opt(e)
	}

	if !e.initial.Valid() {
		return nil, fmt.Errorf("%w: initial state %q", ErrInvalidState, e.initial)
	}
	for _, s := range AllStates {
		if e.handlers[s] == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoHandler, s)
		}
	}
	return e, nil
}

// Observatory returns the hardware facade.
func (e *Engine) Observatory() Observatory { return e.observatory }

// Safety returns the safety monitor.
func (e *Engine) Safety() SafetyMonitor { return e.safety }

// Settings returns the configuration tunables.
func (e *Engine) Settings() Settings { return e.settings }

// Logger returns the engine logger.
func (e *Engine) Logger() Logger { return e.logger }

// PollInterval returns the AND barrier poll period.
func (e *Engine) PollInterval() time.Duration { return e.pollInterval }

// Status returns a snapshot of the engine.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// StopStates asks a running engine to stop at the next state boundary.
// Waits inside handlers that poll (sleeping, ready) are cut short.
func (e *Engine) StopStates() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.status.Running {
		return
	}
	e.status.Stopping = true
	e.stopOnce.Do(func() { close(e.stopCh) })
}

func (e *Engine) stopRequested() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status.Stopping
}

// Run executes states until StopStates is called, ctx is cancelled, or a
// handler reports that the run cannot continue. Stopping outside the
// parking family parks the observatory first, on a context that ignores
// cancellation. A clean stop returns nil.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.status.Running {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	e.status = Status{
		RunID:   uuid.NewString(),
		Running: true,
		State:   e.initial,
	}
	e.stopCh = make(chan struct{})
	e.stopOnce = &sync.Once{}
	runID := e.status.RunID
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.status.Running = false
		e.status.Stopping = false
		e.mu.Unlock()
	}()

	e.logger.Info("state machine started", "run_id", runID, "state", e.initial)

	var last State
	state := e.initial
	for {
		if e.stopRequested() || ctx.Err() != nil {
			return e.shutdown(ctx, last, state)
		}

		next, err := e.step(ctx, state)
		if err != nil {
			e.say(fmt.Sprintf("Stopping: %v", err))
			return err
		}
		last, state = state, next
	}
}

// step runs one handler and returns the state to enter next.
func (e *Engine) step(ctx context.Context, state State) (State, error) {
	h, ok := e.handlers[state]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoHandler, state)
	}

	started := time.Now()
	ev := &EventData{Engine: e, NextState: StateParking}
	if err := e.enter(ctx, state, h, ev); err != nil {
		return "", fmt.Errorf("state %s: %w", state, err)
	}

	next := ev.NextState
	if !next.Valid() {
		e.logger.Error("handler chose an unknown state, parking", "state", state, "next", next)
		next = StateParking
	}

	forced := false
	if !state.Parking() && !next.Parking() && !e.safety.IsSafe(next.Horizon()) {
		e.logger.Warn("unsafe conditions, parking instead",
			"state", state, "requested", next, "horizon", next.Horizon())
		e.say("Conditions are not safe, parking")
		next = StateParking
		forced = true
	}

	e.transition(Transition{
		From:     state,
		To:       next,
		Forced:   forced,
		Duration: time.Since(started),
	})
	return next, nil
}

// enter calls the handler, converting a panic into the handler's pre-set
// default next state.
func (e *Engine) enter(ctx context.Context, state State, h Handler, ev *EventData) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("handler panicked", "state", state, "panic", r, "next", ev.NextState)
			err = nil
		}
	}()
	return h.OnEnter(ctx, ev)
}

// shutdown parks when a stop lands outside the parking family.
func (e *Engine) shutdown(ctx context.Context, last, upcoming State) error {
	needsPark := upcoming == StateParking || (last != "" && !last.Parking())
	if !needsPark {
		e.logger.Info("state machine stopped", "state", last)
		return nil
	}

	e.say("Stop requested, parking before shutdown")
	parkCtx := context.WithoutCancel(ctx)
	started := time.Now()
	ev := &EventData{Engine: e, NextState: StateParked}
	if err := e.enter(parkCtx, StateParking, e.handlers[StateParking], ev); err != nil {
		return fmt.Errorf("state %s: %w", StateParking, err)
	}

	from := last
	if from == "" {
		from = upcoming
	}
	e.transition(Transition{
		From:     from,
		To:       StateParking,
		Forced:   true,
		Duration: time.Since(started),
	})
	e.logger.Info("state machine stopped", "state", StateParking)
	return nil
}

func (e *Engine) transition(t Transition) {
	t.At = time.Now()
	if obs := e.observatory.CurrentObservation(); obs != nil {
		t.ObservationID = obs.ID
	}

	e.mu.Lock()
	t.RunID = e.status.RunID
	e.status.Previous = t.From
	e.status.State = t.To
	e.status.Transitions++
	e.status.LastTransition = t.At
	e.status.ObservationID = t.ObservationID
	e.mu.Unlock()

	e.logger.Info("state transition",
		"from", t.From, "to", t.To, "forced", t.Forced, "duration", t.Duration)

	for _, o := range e.observers {
		o.OnTransition(t)
	}
}

// say announces msg to the operator.
func (e *Engine) say(msg string) {
	e.logger.Info(msg, "component", "say")
	if e.narrator != nil {
		e.narrator.Say(msg)
	}
}

// pause waits for d. It returns false if ctx is done or a stop was
// requested first.
func (e *Engine) pause(ctx context.Context, d time.Duration) bool {
	e.mu.RLock()
	stopCh := e.stopCh
	e.mu.RUnlock()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	case <-stopCh:
		return false
	}
}
