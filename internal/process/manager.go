package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Status is the lifecycle state of a driver process.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusFailed   Status = "failed"
)

const (
	defaultRestartDelay    = 5 * time.Second
	maxRestartDelay        = 2 * time.Minute
	defaultGracefulTimeout = 10 * time.Second
	defaultHealthInterval  = 30 * time.Second
	healthCheckTimeout     = 5 * time.Second
	maxHealthFailures      = 3
	killWaitTimeout        = 5 * time.Second
	maxLineBytes           = 4096
)

// Config describes one supervised driver process.
type Config struct {
	Name   string
	Binary string
	Args   []string

	// Env is appended to the parent environment.
	Env     []string
	WorkDir string

	// RestartOnFailure restarts the driver after an unexpected exit.
	// Delays start at RestartDelay and double up to two minutes.
	RestartOnFailure   bool
	RestartDelay       time.Duration
	MaxRestartAttempts int // 0 means unlimited

	// GracefulTimeout is how long Stop waits after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration

	// HealthCheck, if set, is polled every HealthCheckInterval. Three
	// consecutive failures kill the driver, which then restarts as if it
	// had crashed.
	HealthCheck         func(ctx context.Context) error
	HealthCheckInterval time.Duration

	// OnExit is called after every exit. err is nil for requested stops.
	OnExit func(err error)
}

// Logger is the logging surface used by the process manager.
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

// Manager runs one driver process and restarts it on failure.
type Manager struct {
	config Config
	logger Logger

	mu            sync.RWMutex
	cmd           *exec.Cmd
	status        Status
	restartCount  int
	lastError     error
	startTime     time.Time
	stopRequested bool
	stop          chan struct{}
	done          chan struct{}
}

// NewManager returns a stopped manager for cfg.
func NewManager(cfg Config) *Manager {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = defaultRestartDelay
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = defaultGracefulTimeout
	}
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = defaultHealthInterval
	}
	return &Manager{config: cfg, logger: noopLogger{}, status: StatusStopped}
}

// SetLogger sets the logger. Call before Start.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Name returns the driver name.
func (m *Manager) Name() string { return m.config.Name }

// Start launches the driver and supervises it until Stop or ctx ends.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.status == StatusRunning || m.status == StatusStarting {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, m.config.Name)
	}
	m.status = StatusStarting
	m.stopRequested = false
	m.stop = make(chan struct{})
	done := make(chan struct{})
	m.done = done
	m.mu.Unlock()

	if err := m.spawn(ctx); err != nil {
		m.mu.Lock()
		m.status = StatusFailed
		m.lastError = err
		m.mu.Unlock()
		close(done)
		return err
	}

	go m.supervise(ctx, done)
	return nil
}

func (m *Manager) spawn(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, m.config.Binary, m.config.Args...) //nolint:gosec // binary comes from operator config
	// Own process group so Stop reaches the driver's children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if m.config.Env != nil {
		cmd.Env = append(os.Environ(), m.config.Env...)
	}
	cmd.Dir = m.config.WorkDir

	cmd.Stdout = &lineLogger{manager: m, stream: "stdout"}
	cmd.Stderr = &lineLogger{manager: m, stream: "stderr"}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrStartFailed, m.config.Name, err)
	}

	m.mu.Lock()
	m.cmd = cmd
	m.status = StatusRunning
	m.startTime = time.Now()
	m.mu.Unlock()

	m.logger.Info("driver started", "name", m.config.Name, "pid", cmd.Process.Pid)
	return nil
}

// lineLogger forwards driver output to the logger one line at a time.
type lineLogger struct {
	manager *Manager
	stream  string
	buf     []byte
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.buf = append(l.buf, p...)
	for {
		i := bytes.IndexByte(l.buf, '\n')
		if i < 0 {
			break
		}
		if line := bytes.TrimRight(l.buf[:i], "\r"); len(line) > 0 {
			l.manager.logger.Debug("driver output", "name", l.manager.config.Name, "stream", l.stream, "line", string(line))
		}
		l.buf = l.buf[i+1:]
	}
	if len(l.buf) > maxLineBytes {
		l.manager.logger.Debug("driver output", "name", l.manager.config.Name, "stream", l.stream, "line", string(l.buf))
		l.buf = l.buf[:0]
	}
	return len(p), nil
}

// wait blocks until the driver exits, ctx ends, or the health check
// fails repeatedly (in which case the driver is killed).
func (m *Manager) wait(ctx context.Context, cmd *exec.Cmd) error {
	exitCh := make(chan error, 1)
	go func() { exitCh <- cmd.Wait() }()

	if m.config.HealthCheck == nil {
		return <-exitCh
	}

	ticker := time.NewTicker(m.config.HealthCheckInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case err := <-exitCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := m.config.HealthCheck(checkCtx)
		cancel()
		if err == nil {
			if failures > 0 {
				m.logger.Info("driver health recovered", "name", m.config.Name, "previous_failures", failures)
			}
			failures = 0
			continue
		}

		failures++
		m.logger.Warn("driver health check failed", "name", m.config.Name, "error", err, "consecutive_failures", failures)
		if failures < maxHealthFailures {
			continue
		}

		m.logger.Error("driver unhealthy, killing", "name", m.config.Name)
		_ = cmd.Process.Kill()
		select {
		case <-exitCh:
		case <-time.After(killWaitTimeout):
		}
		return fmt.Errorf("%w: %d consecutive failures: %w", ErrUnhealthy, failures, err)
	}
}

// supervise waits for each exit and restarts with exponential backoff.
func (m *Manager) supervise(ctx context.Context, done chan struct{}) {
	defer close(done)

	restarts := backoff.NewExponentialBackOff()
	restarts.InitialInterval = m.config.RestartDelay
	restarts.MaxInterval = maxRestartDelay
	restarts.MaxElapsedTime = 0
	restarts.Reset()

	for {
		m.mu.RLock()
		cmd := m.cmd
		m.mu.RUnlock()

		err := m.wait(ctx, cmd)

		m.mu.Lock()
		stopping := m.stopRequested
		if stopping {
			m.status = StatusStopped
		} else {
			m.status = StatusFailed
			m.lastError = err
		}
		m.mu.Unlock()

		if stopping {
			m.logger.Info("driver stopped", "name", m.config.Name)
			m.notifyExit(nil)
			return
		}

		m.logger.Warn("driver exited unexpectedly", "name", m.config.Name, "error", err)
		m.notifyExit(err)

		if !m.config.RestartOnFailure || ctx.Err() != nil {
			return
		}
		if !m.restart(ctx, restarts) {
			m.mu.Lock()
			if m.status == StatusStarting {
				m.status = StatusFailed
			}
			m.mu.Unlock()
			return
		}
	}
}

// restart respawns the driver, retrying spawn failures, and reports
// whether supervision should continue.
func (m *Manager) restart(ctx context.Context, delays backoff.BackOff) bool {
	for {
		m.mu.Lock()
		m.restartCount++
		attempt := m.restartCount
		m.status = StatusStarting
		m.mu.Unlock()

		if m.config.MaxRestartAttempts > 0 && attempt > m.config.MaxRestartAttempts {
			m.logger.Error("driver restart limit reached", "name", m.config.Name, "attempts", attempt-1)
			return false
		}

		delay := delays.NextBackOff()
		m.logger.Info("restarting driver", "name", m.config.Name, "attempt", attempt, "delay", delay)

		m.mu.RLock()
		stop := m.stop
		m.mu.RUnlock()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-stop:
			timer.Stop()
			m.mu.Lock()
			m.status = StatusStopped
			m.mu.Unlock()
			return false
		case <-timer.C:
		}

		err := m.spawn(ctx)
		if err == nil {
			return true
		}
		m.mu.Lock()
		m.lastError = err
		m.mu.Unlock()
		m.logger.Error("driver restart failed", "name", m.config.Name, "error", err)
	}
}

func (m *Manager) notifyExit(err error) {
	if m.config.OnExit != nil {
		m.config.OnExit(err)
	}
}

// Stop sends SIGTERM to the driver's process group, escalating to SIGKILL
// after GracefulTimeout, and waits for supervision to end.
func (m *Manager) Stop() error {
	m.mu.Lock()
	done := m.done
	if done == nil {
		m.mu.Unlock()
		return nil
	}
	if !m.stopRequested {
		m.stopRequested = true
		close(m.stop)
	}
	cmd := m.cmd
	running := m.status == StatusRunning
	m.mu.Unlock()

	if running && cmd != nil && cmd.Process != nil {
		pid := cmd.Process.Pid
		m.logger.Info("stopping driver", "name", m.config.Name, "pid", pid)
		if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
			m.logger.Warn("SIGTERM failed", "name", m.config.Name, "error", err)
		}

		select {
		case <-done:
			return nil
		case <-time.After(m.config.GracefulTimeout):
			m.logger.Warn("driver ignored SIGTERM, killing", "name", m.config.Name, "timeout", m.config.GracefulTimeout)
		}
		if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
			return fmt.Errorf("killing %s: %w", m.config.Name, err)
		}
	}

	<-done
	return nil
}

// Status returns the driver's lifecycle state.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Stats is a snapshot of a driver's supervision state.
type Stats struct {
	Name         string        `json:"name"`
	Status       Status        `json:"status"`
	PID          int           `json:"pid,omitempty"`
	Uptime       time.Duration `json:"uptime,omitempty"`
	RestartCount int           `json:"restart_count"`
	LastError    string        `json:"last_error,omitempty"`
}

// Stats returns a snapshot for status reporting.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{Name: m.config.Name, Status: m.status, RestartCount: m.restartCount}
	if m.cmd != nil && m.cmd.Process != nil && m.status == StatusRunning {
		stats.PID = m.cmd.Process.Pid
		stats.Uptime = time.Since(m.startTime)
	}
	if m.lastError != nil {
		stats.LastError = m.lastError.Error()
	}
	return stats
}
