package safety

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/huntsman-telescope/huntsman-core/internal/infrastructure/mqtt"
)

// Reading is one weather station report.
type Reading struct {
	Safe      bool      `json:"safe"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Subscriber is the MQTT surface the weather feed needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Logger is the logging surface used by the monitor.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Config configures a Monitor.
type Config struct {
	Latitude  float64
	Longitude float64

	// Horizons maps horizon names to sun altitudes in degrees.
	Horizons map[string]float64

	WeatherTopic  string
	WeatherMaxAge time.Duration

	SimulateNight   bool
	SimulateWeather bool
}

// Conditions is a point-in-time view of the monitor's inputs.
type Conditions struct {
	SunAltitude float64            `json:"sun_altitude"`
	Dark        map[string]bool    `json:"dark"`
	Horizons    map[string]float64 `json:"horizons"`
	WeatherSafe bool               `json:"weather_safe"`
	Weather     Reading            `json:"weather"`
	Simulated   []string           `json:"simulated,omitempty"`
	EvaluatedAt time.Time          `json:"evaluated_at"`
}

// Monitor answers darkness and weather questions for the state machine.
// Safe for concurrent use.
type Monitor struct {
	cfg    Config
	now    func() time.Time
	logger Logger

	mu      sync.RWMutex
	weather Reading
}

// NewMonitor creates a monitor. Every horizon must lie in [-90, 90].
func NewMonitor(cfg Config) (*Monitor, error) {
	for name, alt := range cfg.Horizons {
		if alt < -90 || alt > 90 {
			return nil, fmt.Errorf("safety: horizon %q altitude %.1f out of range", name, alt)
		}
	}
	return &Monitor{
		cfg:    cfg,
		now:    time.Now,
		logger: noopLogger{},
	}, nil
}

// SetLogger sets the logger.
func (m *Monitor) SetLogger(logger Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// Start subscribes to the weather topic. Not needed when weather is simulated.
func (m *Monitor) Start(sub Subscriber) error {
	if m.cfg.SimulateWeather || m.cfg.WeatherTopic == "" {
		return nil
	}
	if err := sub.Subscribe(m.cfg.WeatherTopic, 1, m.handleReading); err != nil {
		return fmt.Errorf("safety: subscribing to %s: %w", m.cfg.WeatherTopic, err)
	}
	return nil
}

func (m *Monitor) handleReading(_ string, payload []byte) error {
	var r Reading
	if err := json.Unmarshal(payload, &r); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidReading, err)
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = m.now()
	}
	m.UpdateWeather(r)
	return nil
}

// UpdateWeather records a weather reading.
func (m *Monitor) UpdateWeather(r Reading) {
	m.mu.Lock()
	changed := r.Safe != m.weather.Safe
	m.weather = r
	m.mu.Unlock()

	if changed {
		m.logger.Info("weather safety changed", "safe", r.Safe, "reason", r.Reason)
	}
}

// SunAltitude returns the current sun altitude at the site.
func (m *Monitor) SunAltitude() float64 {
	return SunAltitude(m.now(), m.cfg.Latitude, m.cfg.Longitude)
}

// Horizon returns the sun altitude configured for name.
func (m *Monitor) Horizon(name string) (float64, error) {
	alt, ok := m.cfg.Horizons[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownHorizon, name)
	}
	return alt, nil
}

// IsDark reports whether the sun is below the named horizon. An unknown
// horizon is never dark.
func (m *Monitor) IsDark(horizon string) bool {
	if m.cfg.SimulateNight {
		return true
	}
	alt, err := m.Horizon(horizon)
	if err != nil {
		m.logger.Warn("darkness check failed", "error", err)
		return false
	}
	return m.SunAltitude() < alt
}

// IsWeatherSafe reports whether the latest weather reading is safe and fresh.
func (m *Monitor) IsWeatherSafe() bool {
	if m.cfg.SimulateWeather {
		return true
	}

	m.mu.RLock()
	r := m.weather
	m.mu.RUnlock()

	if !r.Safe || r.Timestamp.IsZero() {
		return false
	}
	if m.cfg.WeatherMaxAge > 0 && m.now().Sub(r.Timestamp) > m.cfg.WeatherMaxAge {
		return false
	}
	return true
}

// IsSafe reports whether it is both dark for horizon and weather safe.
func (m *Monitor) IsSafe(horizon string) bool {
	return m.IsDark(horizon) && m.IsWeatherSafe()
}

// Conditions returns a snapshot for status reporting.
func (m *Monitor) Conditions() Conditions {
	m.mu.RLock()
	weather := m.weather
	m.mu.RUnlock()

	c := Conditions{
		SunAltitude: m.SunAltitude(),
		Dark:        make(map[string]bool, len(m.cfg.Horizons)),
		Horizons:    m.cfg.Horizons,
		WeatherSafe: m.IsWeatherSafe(),
		Weather:     weather,
		EvaluatedAt: m.now(),
	}
	for name := range m.cfg.Horizons {
		c.Dark[name] = m.IsDark(name)
	}
	if m.cfg.SimulateNight {
		c.Simulated = append(c.Simulated, "night")
	}
	if m.cfg.SimulateWeather {
		c.Simulated = append(c.Simulated, "weather")
	}
	return c
}
