package simulator

import (
	"context"
	"sync"
	"time"
)

// MountTimings are the simulated durations of mount moves.
type MountTimings struct {
	Slew time.Duration
	Home time.Duration
	Park time.Duration
}

// Mount is a simulated vendor mount driver.
type Mount struct {
	timings MountTimings

	mu       sync.Mutex
	parked   bool
	ra, dec  float64
	failNext error
}

// NewMount creates a parked mount.
func NewMount(timings MountTimings) *Mount {
	return &Mount{timings: timings, parked: true}
}

func (m *Mount) move(ctx context.Context, d time.Duration) error {
	m.mu.Lock()
	err := m.failNext
	m.failNext = nil
	m.mu.Unlock()
	if err != nil {
		return err
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FailNext makes the next move return err.
func (m *Mount) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

// Unpark releases the mount.
func (m *Mount) Unpark(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parked = false
	return nil
}

// Home moves to the home position.
func (m *Mount) Home(ctx context.Context) error {
	return m.move(ctx, m.timings.Home)
}

// Park moves to the park position.
func (m *Mount) Park(ctx context.Context) error {
	if err := m.move(ctx, m.timings.Park); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parked = true
	return nil
}

// SlewTo points at ra, dec in degrees.
func (m *Mount) SlewTo(ctx context.Context, ra, dec float64) error {
	if err := m.move(ctx, m.timings.Slew); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ra, m.dec = ra, dec
	return nil
}

// Offset nudges the pointing by dRA, dDec degrees.
func (m *Mount) Offset(_ context.Context, dRA, dDec float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ra += dRA
	m.dec += dDec
	return nil
}

// IsParked reports whether the mount is parked.
func (m *Mount) IsParked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.parked
}

// Position returns the current pointing.
func (m *Mount) Position() (ra, dec float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ra, m.dec
}
