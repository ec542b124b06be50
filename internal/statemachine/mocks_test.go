package statemachine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/huntsman-telescope/huntsman-core/internal/infrastructure/config"
	"github.com/huntsman-telescope/huntsman-core/internal/observatory"
	"github.com/huntsman-telescope/huntsman-core/internal/remoteevent"
)

var errHardware = errors.New("hardware fault")

// mockMount records home-and-park calls and replays scripted results.
type mockMount struct {
	mu        sync.Mutex
	unparkErr error
	results   []error
	calls     [][2]time.Duration
}

func (m *mockMount) Unpark(context.Context) error { return m.unparkErr }

func (m *mockMount) HomeAndPark(_ context.Context, home, park time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, [2]time.Duration{home, park})
	if len(m.results) == 0 {
		return nil
	}
	err := m.results[0]
	if len(m.results) > 1 {
		m.results = m.results[1:]
	}
	return err
}

func (m *mockMount) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type mockCamera struct {
	cooled      bool
	cooling     bool
	err         error
	deactivated bool
}

func (c *mockCamera) IsCooledCamera() bool { return c.cooled }
func (c *mockCamera) CoolingEnabled() bool { return c.cooling }
func (c *mockCamera) DeactivateCooling(context.Context) error {
	c.deactivated = true
	return c.err
}

// mockObservatory records every call. errs holds per-method failures;
// failAll makes every fallible method fail.
type mockObservatory struct {
	mu      sync.Mutex
	calls   []string
	errs    map[string]error
	failAll error

	mount   *mockMount
	cameras map[string]Camera

	next    *observatory.Observation
	current *observatory.Observation
	lastC   observatory.Constraints

	// events returned by Observe and AutofocusCameras; nil means
	// a fresh set of already-set camera events.
	events   map[string]*remoteevent.Event
	onAction func(name string)
}

func newMockObservatory() *mockObservatory {
	return &mockObservatory{
		errs:    make(map[string]error),
		mount:   &mockMount{},
		cameras: map[string]Camera{},
	}
}

func (o *mockObservatory) record(name string) error {
	o.mu.Lock()
	o.calls = append(o.calls, name)
	err := o.errs[name]
	if o.failAll != nil {
		err = o.failAll
	}
	hook := o.onAction
	o.mu.Unlock()

	if hook != nil {
		hook(name)
	}
	return err
}

func (o *mockObservatory) called(name string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, c := range o.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (o *mockObservatory) cameraEvents(ctx context.Context) map[string]*remoteevent.Event {
	if o.events != nil {
		return o.events
	}
	tr := remoteevent.NewLocalTransport()
	events := make(map[string]*remoteevent.Event)
	for _, id := range []string{"cam-a", "cam-b"} {
		ev, _ := remoteevent.New(id, remoteevent.TypeCamera, tr)
		_ = ev.Set(ctx)
		events[id] = ev
	}
	return events
}

func (o *mockObservatory) PrepareCameras(context.Context) error { return o.record("PrepareCameras") }
func (o *mockObservatory) Mount() Mount                         { return o.mount }
func (o *mockObservatory) Cameras() map[string]Camera           { return o.cameras }
func (o *mockObservatory) OpenDome(context.Context) error       { return o.record("OpenDome") }
func (o *mockObservatory) CloseDome(context.Context) error      { return o.record("CloseDome") }

func (o *mockObservatory) GetObservation(_ context.Context, c observatory.Constraints) (*observatory.Observation, error) {
	if err := o.record("GetObservation"); err != nil {
		return nil, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastC = c
	o.current = o.next
	return o.current, nil
}

func (o *mockObservatory) CurrentObservation() *observatory.Observation {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

func (o *mockObservatory) ClearObservation() {
	_ = o.record("ClearObservation")
	o.mu.Lock()
	o.current = nil
	o.mu.Unlock()
}

func (o *mockObservatory) ResetObservingRun() { _ = o.record("ResetObservingRun") }

func (o *mockObservatory) PrepareTarget(context.Context) error { return o.record("PrepareTarget") }
func (o *mockObservatory) SlewToTarget(context.Context) error  { return o.record("SlewToTarget") }
func (o *mockObservatory) Dither(context.Context) error        { return o.record("Dither") }

func (o *mockObservatory) AutofocusCameras(ctx context.Context) (map[string]*remoteevent.Event, error) {
	if err := o.record("AutofocusCameras"); err != nil {
		return nil, err
	}
	return o.cameraEvents(ctx), nil
}

func (o *mockObservatory) Observe(ctx context.Context) (map[string]*remoteevent.Event, error) {
	if err := o.record("Observe"); err != nil {
		return nil, err
	}
	o.mu.Lock()
	if o.current != nil {
		o.current.CurrentExpNum++
	}
	o.mu.Unlock()
	return o.cameraEvents(ctx), nil
}

func (o *mockObservatory) AnalyzeRecent(context.Context) error { return o.record("AnalyzeRecent") }

func (o *mockObservatory) TakeDarkObservation(_ context.Context, bias bool) error {
	if bias {
		return o.record("TakeBias")
	}
	return o.record("TakeDark")
}

func (o *mockObservatory) TakeFlatFields(context.Context) error { return o.record("TakeFlatFields") }
func (o *mockObservatory) CleanupObservations(context.Context) error {
	return o.record("CleanupObservations")
}

// mockSafety answers from per-horizon darkness flags and a weather flag.
type mockSafety struct {
	mu      sync.Mutex
	dark    map[string]bool
	weather bool
}

func newMockSafety(dark bool, weather bool) *mockSafety {
	return &mockSafety{
		dark: map[string]bool{
			HorizonStartup: dark,
			HorizonFlat:    dark,
			HorizonFocus:   dark,
			HorizonObserve: dark,
		},
		weather: weather,
	}
}

func (s *mockSafety) set(horizon string, dark bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dark[horizon] = dark
}

func (s *mockSafety) setAll(dark, weather bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for h := range s.dark {
		s.dark[h] = dark
	}
	s.weather = weather
}

func (s *mockSafety) IsDark(horizon string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dark[horizon]
}

func (s *mockSafety) IsWeatherSafe() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.weather
}

func (s *mockSafety) IsSafe(horizon string) bool {
	return s.IsDark(horizon) && s.IsWeatherSafe()
}

// recordingObserver captures everything the engine reports.
type recordingObserver struct {
	mu          sync.Mutex
	transitions []Transition
	waits       []BarrierWait
	attempts    []error
	onTransit   func(t Transition)
}

func (r *recordingObserver) OnTransition(t Transition) {
	r.mu.Lock()
	r.transitions = append(r.transitions, t)
	hook := r.onTransit
	r.mu.Unlock()
	if hook != nil {
		hook(t)
	}
}

func (r *recordingObserver) OnBarrierWait(w BarrierWait) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waits = append(r.waits, w)
}

func (r *recordingObserver) OnParkAttempt(_ int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, err)
}

func (r *recordingObserver) path() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	var states []State
	for _, t := range r.transitions {
		states = append(states, t.To)
	}
	return states
}

func testSettings(overrides map[string]any) *config.Values {
	v := config.NewValues(nil)
	v.Set(KeyWaitDelay, "10ms")
	for k, val := range overrides {
		v.Set(k, val)
	}
	return v
}

type testRig struct {
	obs      *mockObservatory
	safety   *mockSafety
	settings *config.Values
	observer *recordingObserver
	engine   *Engine
}

func newTestRig(t *testing.T, opts ...Option) *testRig {
	t.Helper()
	r := &testRig{
		obs:      newMockObservatory(),
		safety:   newMockSafety(true, true),
		settings: testSettings(nil),
		observer: &recordingObserver{},
	}
	opts = append([]Option{WithPollInterval(10 * time.Millisecond), WithObserver(r.observer)}, opts...)
	e, err := NewEngine(r.obs, r.safety, r.settings, opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	r.engine = e
	return r
}

// enter runs one handler directly.
func (r *testRig) enter(t *testing.T, ctx context.Context, state State) (*EventData, error) {
	t.Helper()
	ev := &EventData{Engine: r.engine}
	err := r.engine.handlers[state].OnEnter(ctx, ev)
	return ev, err
}

func testObservation(current, minNexp, setSize int) *observatory.Observation {
	return &observatory.Observation{
		ID:            "obs-1",
		Field:         observatory.Field{Name: "M42"},
		ExpTime:       time.Second,
		MinNexp:       minNexp,
		ExpSetSize:    setSize,
		CurrentExpNum: current,
	}
}
