package observatory

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// MountDriver is the vendor mount interface: raw motion commands with no
// Huntsman policy on top.
type MountDriver interface {
	Unpark(ctx context.Context) error
	Home(ctx context.Context) error
	Park(ctx context.Context) error
	SlewTo(ctx context.Context, ra, dec float64) error
	Offset(ctx context.Context, dRA, dDec float64) error
	IsParked() bool
}

// HuntsmanMount composes a vendor driver with the observatory's combined
// home-and-park operation.
type HuntsmanMount struct {
	MountDriver
}

// NewHuntsmanMount wraps driver.
func NewHuntsmanMount(driver MountDriver) *HuntsmanMount {
	return &HuntsmanMount{MountDriver: driver}
}

// HomeAndPark homes the mount then parks it, each phase bounded by its own
// timeout. A phase that overruns returns ErrMountTimeout; other driver
// failures are returned wrapped as-is.
func (m *HuntsmanMount) HomeAndPark(ctx context.Context, homeTimeout, parkTimeout time.Duration) error {
	if err := runPhase(ctx, "home", homeTimeout, m.Home); err != nil {
		return err
	}
	return runPhase(ctx, "park", parkTimeout, m.Park)
}

func runPhase(ctx context.Context, name string, timeout time.Duration, fn func(context.Context) error) error {
	phaseCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		phaseCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	err := fn(phaseCtx)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrMountTimeout) {
		return err
	}
	// Only our own deadline is a mount timeout; a cancelled parent is not.
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w: %s exceeded %v", ErrMountTimeout, name, timeout)
	}
	return fmt.Errorf("mount %s: %w", name, err)
}
