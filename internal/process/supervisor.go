package process

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/huntsman-telescope/huntsman-core/internal/infrastructure/config"
)

// FromDriverConfig converts a configured driver into a manager Config.
func FromDriverConfig(d config.DriverConfig) Config {
	return Config{
		Name:               d.Name,
		Binary:             d.Binary,
		Args:               d.Args,
		RestartOnFailure:   d.RestartOnFailure,
		RestartDelay:       time.Duration(d.RestartDelay) * time.Second,
		MaxRestartAttempts: d.MaxRestartAttempts,
	}
}

// Supervisor owns the hardware driver processes of the observatory.
type Supervisor struct {
	managers []*Manager
	logger   Logger
}

// NewSupervisor builds a manager per configured driver. Nothing is started.
func NewSupervisor(drivers []config.DriverConfig, logger Logger) *Supervisor {
	if logger == nil {
		logger = noopLogger{}
	}
	s := &Supervisor{logger: logger}
	for _, d := range drivers {
		m := NewManager(FromDriverConfig(d))
		m.SetLogger(logger)
		s.managers = append(s.managers, m)
	}
	return s
}

// Start launches every driver. If one fails to start, those already
// running are stopped again.
func (s *Supervisor) Start(ctx context.Context) error {
	for i, m := range s.managers {
		if err := m.Start(ctx); err != nil {
			for _, started := range s.managers[:i] {
				if stopErr := started.Stop(); stopErr != nil {
					s.logger.Warn("stopping driver after failed start", "name", started.Name(), "error", stopErr)
				}
			}
			return err
		}
	}
	return nil
}

// Stop stops every driver and joins their errors.
func (s *Supervisor) Stop() error {
	var errs []error
	for i := len(s.managers) - 1; i >= 0; i-- {
		if err := s.managers[i].Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats returns a snapshot for every driver in configuration order.
func (s *Supervisor) Stats() []Stats {
	out := make([]Stats, 0, len(s.managers))
	for _, m := range s.managers {
		out = append(out, m.Stats())
	}
	return out
}

// HealthCheck reports ErrDriverDown if any driver is not running.
func (s *Supervisor) HealthCheck(_ context.Context) error {
	var down []error
	for _, m := range s.managers {
		if st := m.Status(); st != StatusRunning {
			down = append(down, fmt.Errorf("%w: %s is %s", ErrDriverDown, m.Name(), st))
		}
	}
	return errors.Join(down...)
}

// Len returns the number of supervised drivers.
func (s *Supervisor) Len() int { return len(s.managers) }
