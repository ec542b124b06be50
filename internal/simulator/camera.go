package simulator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/huntsman-telescope/huntsman-core/internal/remoteevent"
)

// Signal retry defaults: long enough to outlast an open publish breaker.
const (
	DefaultSignalInterval = 2 * time.Second
	DefaultSignalRetries  = 30
)

// Camera is a simulated camera with an attached focuser.
type Camera struct {
	name   string
	cooled bool

	mu      sync.Mutex
	cooling bool
	busy    bool
	abort   chan struct{}
	failed  error

	signalInterval time.Duration
	signalRetries  uint64
	logger         Logger

	exposure *remoteevent.Event
	focus    *remoteevent.Event
}

// NewCamera creates a camera whose events are published through transport
// under the camera name.
func NewCamera(name string, cooled bool, transport remoteevent.Transport) (*Camera, error) {
	exposure, err := remoteevent.New(name, remoteevent.TypeCamera, transport)
	if err != nil {
		return nil, fmt.Errorf("camera %s: %w", name, err)
	}
	focus, err := remoteevent.New(name, remoteevent.TypeFocuser, transport)
	if err != nil {
		return nil, fmt.Errorf("camera %s: %w", name, err)
	}
	return &Camera{
		name:           name,
		cooled:         cooled,
		exposure:       exposure,
		focus:          focus,
		signalInterval: DefaultSignalInterval,
		signalRetries:  DefaultSignalRetries,
		logger:         noopLogger{},
	}, nil
}

// Name returns the camera name.
func (c *Camera) Name() string { return c.name }

// IsCooledCamera reports whether the camera has a cooler.
func (c *Camera) IsCooledCamera() bool { return c.cooled }

// CoolingEnabled reports whether the cooler is running.
func (c *Camera) CoolingEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cooling
}

// ActivateCooling starts the cooler on cooled cameras.
func (c *Camera) ActivateCooling(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cooled {
		c.cooling = true
	}
	return nil
}

// DeactivateCooling stops the cooler.
func (c *Camera) DeactivateCooling(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cooling = false
	return nil
}

// Busy reports whether an exposure or autofocus is in flight.
func (c *Camera) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// takeFailure returns and forgets the last completion that could not be
// signalled.
func (c *Camera) takeFailure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.failed
	c.failed = nil
	return err
}

// start clears ev and sets it again once d has elapsed. done or cancel
// abandons the operation without setting the event.
func (c *Camera) start(ctx context.Context, ev *remoteevent.Event, d time.Duration, done <-chan struct{}, wg *sync.WaitGroup) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return fmt.Errorf("camera %s: busy", c.name)
	}
	c.busy = true
	abort := make(chan struct{})
	c.abort = abort
	c.mu.Unlock()

	if err := ev.Clear(ctx); err != nil {
		c.setIdle()
		return fmt.Errorf("camera %s: %w", c.name, err)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer c.setIdle()

		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			c.signal(ev, done, abort)
		case <-done:
		case <-abort:
		}
	}()
	return nil
}

// signal sets ev, retrying at a constant interval while the transport
// refuses. A completion that still cannot be signalled is kept and
// reported by the next operation.
func (c *Camera) signal(ev *remoteevent.Event, done, abort <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-done:
		case <-abort:
		case <-ctx.Done():
		}
		cancel()
	}()

	attempt := 0
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(c.signalInterval), c.signalRetries), ctx)
	err := backoff.Retry(func() error {
		attempt++
		return ev.Set(ctx)
	}, policy)
	if err == nil || ctx.Err() != nil {
		return
	}

	c.logger.Warn("camera could not signal completion", "camera", c.name, "event", ev.String(), "attempts", attempt, "error", err)
	c.mu.Lock()
	c.failed = fmt.Errorf("camera %s: signalling %s after %d attempts: %w", c.name, ev, attempt, err)
	c.mu.Unlock()
}

// cancel abandons the in-flight operation, if any.
func (c *Camera) cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy && c.abort != nil {
		close(c.abort)
		c.abort = nil
	}
}

func (c *Camera) setIdle() {
	c.mu.Lock()
	c.busy = false
	c.abort = nil
	c.mu.Unlock()
}
