package simulator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/huntsman-telescope/huntsman-core/internal/infrastructure/config"
	"github.com/huntsman-telescope/huntsman-core/internal/observatory"
	"github.com/huntsman-telescope/huntsman-core/internal/remoteevent"
	"github.com/huntsman-telescope/huntsman-core/internal/statemachine"
)

// Sky answers darkness and safety questions; safety.Monitor implements it.
type Sky interface {
	IsDark(horizon string) bool
	IsSafe(horizon string) bool
}

// Logger is the logging surface used by the simulator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Config configures a simulated observatory.
type Config struct {
	Cameras   []config.CameraConfig
	Fields    []config.FieldConfig
	TimeScale float64
	MoonRA    float64
	MoonDec   float64

	Mount       MountTimings
	FocusTime   time.Duration
	DarkExpTime time.Duration
	FlatExpTime time.Duration
	Flats       int

	// SignalInterval and SignalRetries bound how long a camera keeps
	// trying to report a finished operation. Zero means the defaults.
	SignalInterval time.Duration
	SignalRetries  int
}

// DefaultConfig returns real-time durations for cfg's cameras and fields.
func DefaultConfig(cfg *config.Config) Config {
	return Config{
		Cameras:   cfg.Cameras,
		Fields:    cfg.Fields,
		TimeScale: cfg.Simulation.TimeScale,
		MoonRA:    cfg.Simulation.MoonRA,
		MoonDec:   cfg.Simulation.MoonDec,
		Mount: MountTimings{
			Slew: 30 * time.Second,
			Home: 2 * time.Second,
			Park: 2 * time.Second,
		},
		FocusTime:   2 * time.Minute,
		DarkExpTime: time.Minute,
		FlatExpTime: 5 * time.Second,
		Flats:       5,

		SignalInterval: DefaultSignalInterval,
		SignalRetries:  DefaultSignalRetries,
	}
}

// Observatory is a simulated observatory implementing the state machine's
// hardware facade.
type Observatory struct {
	cfg       Config
	sky       Sky
	logger    Logger
	cameras   map[string]*Camera
	driver    *Mount
	mount     *observatory.HuntsmanMount
	scheduler *Scheduler

	mu        sync.Mutex
	domeOpen  bool
	current   *observatory.Observation
	completed map[string]bool
	focused   map[string]bool
	images    int

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

var _ statemachine.Observatory = (*Observatory)(nil)

// New builds a simulated observatory. Camera events go through transport.
func New(cfg Config, transport remoteevent.Transport, sky Sky, logger Logger) (*Observatory, error) {
	if cfg.TimeScale <= 0 {
		cfg.TimeScale = 1
	}
	if logger == nil {
		logger = noopLogger{}
	}

	scaled := func(d time.Duration) time.Duration { return time.Duration(float64(d) * cfg.TimeScale) }
	driver := NewMount(MountTimings{
		Slew: scaled(cfg.Mount.Slew),
		Home: scaled(cfg.Mount.Home),
		Park: scaled(cfg.Mount.Park),
	})

	o := &Observatory{
		cfg:       cfg,
		sky:       sky,
		logger:    logger,
		cameras:   make(map[string]*Camera, len(cfg.Cameras)),
		driver:    driver,
		mount:     observatory.NewHuntsmanMount(driver),
		scheduler: NewScheduler(cfg.Fields, cfg.MoonRA, cfg.MoonDec),
		completed: make(map[string]bool),
		focused:   make(map[string]bool),
		done:      make(chan struct{}),
	}
	for _, cc := range cfg.Cameras {
		cam, err := NewCamera(cc.Name, cc.Cooled, transport)
		if err != nil {
			return nil, err
		}
		cam.logger = logger
		if cfg.SignalInterval > 0 {
			cam.signalInterval = cfg.SignalInterval
		}
		if cfg.SignalRetries > 0 {
			cam.signalRetries = uint64(cfg.SignalRetries)
		}
		o.cameras[cc.Name] = cam
	}
	return o, nil
}

// Close abandons in-flight exposures and waits for their goroutines.
func (o *Observatory) Close() error {
	o.closeOnce.Do(func() { close(o.done) })
	o.wg.Wait()
	return nil
}

func (o *Observatory) scale(d time.Duration) time.Duration {
	return time.Duration(float64(d) * o.cfg.TimeScale)
}

func (o *Observatory) cameraNames() []string {
	names := make([]string, 0, len(o.cameras))
	for name := range o.cameras {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Driver returns the simulated vendor mount driver.
func (o *Observatory) Driver() *Mount { return o.driver }

// DomeOpen reports whether the dome is open.
func (o *Observatory) DomeOpen() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.domeOpen
}

// PrepareCameras starts cooling on every cooled camera.
func (o *Observatory) PrepareCameras(ctx context.Context) error {
	for _, name := range o.cameraNames() {
		if err := o.cameras[name].ActivateCooling(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Mount returns the Huntsman mount composition.
func (o *Observatory) Mount() statemachine.Mount { return o.mount }

// Cameras returns the camera array keyed by name.
func (o *Observatory) Cameras() map[string]statemachine.Camera {
	cams := make(map[string]statemachine.Camera, len(o.cameras))
	for name, cam := range o.cameras {
		cams[name] = cam
	}
	return cams
}

// OpenDome opens the dome.
func (o *Observatory) OpenDome(context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.domeOpen = true
	return nil
}

// CloseDome closes the dome.
func (o *Observatory) CloseDome(context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.domeOpen = false
	return nil
}

// GetObservation picks the next field. A field is complete once its
// current set finishes; the same field is kept while it is unfinished.
func (o *Observatory) GetObservation(_ context.Context, c observatory.Constraints) (*observatory.Observation, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current != nil && o.current.SetIsFinished() {
		o.completed[o.current.Field.Name] = true
	}

	t, ok := o.scheduler.Next(c, o.completed)
	if !ok {
		o.current = nil
		return nil, observatory.ErrNoObservation
	}
	if o.current != nil && o.current.Field.Name == t.Field.Name {
		return o.current, nil
	}

	o.current = &observatory.Observation{
		ID:            uuid.NewString(),
		Field:         t.Field,
		ExpTime:       t.ExpTime,
		MinNexp:       t.MinNexp,
		ExpSetSize:    t.ExpSetSize,
		FocusRequired: !o.focused[t.Field.Name],
		SeqTime:       time.Now().UTC(),
	}
	o.logger.Info("scheduled observation", "observation", o.current.ID, "field", t.Field.Name)
	return o.current, nil
}

// CurrentObservation returns the observation in progress, if any.
func (o *Observatory) CurrentObservation() *observatory.Observation {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// ClearObservation drops the observation in progress.
func (o *Observatory) ClearObservation() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.current = nil
}

// ResetObservingRun forgets completed and focused fields.
func (o *Observatory) ResetObservingRun() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.current = nil
	o.completed = make(map[string]bool)
	o.focused = make(map[string]bool)
}

// PrepareTarget is a no-op for the simulator.
func (o *Observatory) PrepareTarget(context.Context) error {
	o.logger.Debug("preparing target")
	return nil
}

// SlewToTarget points the mount at the current observation.
func (o *Observatory) SlewToTarget(ctx context.Context) error {
	obs := o.CurrentObservation()
	if obs == nil {
		return observatory.ErrNoObservation
	}
	return o.mount.SlewTo(ctx, obs.Field.RA, obs.Field.Dec)
}

// Dither applies a small random offset.
func (o *Observatory) Dither(ctx context.Context) error {
	const maxOffset = 0.1 // degrees
	return o.mount.Offset(ctx, (rand.Float64()*2-1)*maxOffset, (rand.Float64()*2-1)*maxOffset)
}

// startAll starts one timed operation per camera and returns its events.
// Either every camera starts or none is left running. A completion some
// camera failed to signal earlier is reported here instead.
func (o *Observatory) startAll(ctx context.Context, pick func(*Camera) *remoteevent.Event, d time.Duration) (map[string]*remoteevent.Event, error) {
	names := o.cameraNames()

	var faults []error
	for _, name := range names {
		cam := o.cameras[name]
		if err := cam.takeFailure(); err != nil {
			faults = append(faults, err)
		}
		if cam.Busy() {
			faults = append(faults, fmt.Errorf("camera %s: busy", name))
		}
	}
	if len(faults) > 0 {
		return nil, fmt.Errorf("%w: %w", observatory.ErrAttribute, errors.Join(faults...))
	}

	events := make(map[string]*remoteevent.Event, len(names))
	for _, name := range names {
		cam := o.cameras[name]
		ev := pick(cam)
		if err := cam.start(ctx, ev, d, o.done, &o.wg); err != nil {
			for started := range events {
				o.cameras[started].cancel()
			}
			return nil, fmt.Errorf("%w: %w", observatory.ErrAttribute, err)
		}
		events[name] = ev
	}
	return events, nil
}

// AutofocusCameras starts autofocus on every camera.
func (o *Observatory) AutofocusCameras(ctx context.Context) (map[string]*remoteevent.Event, error) {
	events, err := o.startAll(ctx, func(c *Camera) *remoteevent.Event { return c.focus }, o.scale(o.cfg.FocusTime))
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	if o.current != nil {
		o.focused[o.current.Field.Name] = true
		o.current.FocusRequired = false
	}
	o.mu.Unlock()
	return events, nil
}

// Observe starts an exposure of the current observation on every camera.
func (o *Observatory) Observe(ctx context.Context) (map[string]*remoteevent.Event, error) {
	o.mu.Lock()
	obs := o.current
	open := o.domeOpen
	o.mu.Unlock()

	if obs == nil {
		return nil, observatory.ErrNoObservation
	}
	if !open {
		return nil, fmt.Errorf("%w: dome is closed", observatory.ErrAttribute)
	}

	events, err := o.startAll(ctx, func(c *Camera) *remoteevent.Event { return c.exposure }, o.scale(obs.ExpTime))
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	obs.CurrentExpNum++
	o.images += len(events)
	o.mu.Unlock()
	return events, nil
}

// AnalyzeRecent pretends to analyse the latest frames.
func (o *Observatory) AnalyzeRecent(context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return observatory.ErrNoObservation
	}
	o.logger.Debug("analyzed frames", "observation", o.current.ID, "exposure", o.current.CurrentExpNum)
	return nil
}

// exposeAll takes one exposure on every camera and waits for it.
func (o *Observatory) exposeAll(ctx context.Context, d time.Duration) error {
	d = o.scale(d)
	events, err := o.startAll(ctx, func(c *Camera) *remoteevent.Event { return c.exposure }, d)
	if err != nil {
		return err
	}

	timeout := d + time.Second
	for name, ev := range events {
		set, err := ev.Wait(ctx, timeout)
		if err != nil {
			return err
		}
		if !set {
			return fmt.Errorf("%w: %s", observatory.ErrExposureTimeout, name)
		}
	}

	o.mu.Lock()
	o.images += len(events)
	o.mu.Unlock()
	return nil
}

// TakeDarkObservation takes one bias or dark frame on every camera.
func (o *Observatory) TakeDarkObservation(ctx context.Context, bias bool) error {
	if !o.sky.IsDark(statemachine.HorizonFlat) {
		return observatory.ErrNotTwilight
	}
	exp := o.cfg.DarkExpTime
	if bias {
		exp = 0
	}
	return o.exposeAll(ctx, exp)
}

// TakeFlatFields takes flats until the count is reached or twilight ends.
func (o *Observatory) TakeFlatFields(ctx context.Context) error {
	for i := 0; i < o.cfg.Flats; i++ {
		if !o.sky.IsSafe(statemachine.HorizonFlat) {
			return observatory.ErrNotSafe
		}
		if o.sky.IsDark(statemachine.HorizonFocus) {
			return fmt.Errorf("%w: sky too dark after %d flats", observatory.ErrNotTwilight, i)
		}
		if err := o.exposeAll(ctx, o.cfg.FlatExpTime); err != nil {
			return err
		}
	}
	return nil
}

// CleanupObservations discards stored frames.
func (o *Observatory) CleanupObservations(context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.logger.Debug("cleaning up frames", "count", o.images)
	o.images = 0
	return nil
}

// Images returns the number of frames taken since the last cleanup.
func (o *Observatory) Images() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.images
}
