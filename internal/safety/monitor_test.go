package safety

import (
	"errors"
	"testing"
	"time"

	"github.com/huntsman-telescope/huntsman-core/internal/infrastructure/mqtt"
)

var (
	winterNoon     = time.Date(2024, 6, 21, 2, 5, 0, 0, time.UTC)
	winterMidnight = time.Date(2024, 6, 21, 14, 5, 0, 0, time.UTC)
	winterDusk     = time.Date(2024, 6, 21, 7, 0, 0, 0, time.UTC) // sun near 0.9 degrees
)

func testConfig() Config {
	return Config{
		Latitude:      siteLat,
		Longitude:     siteLon,
		Horizons:      map[string]float64{"startup": -6, "flat": -3, "focus": -12, "observe": -18, "sunset": 2},
		WeatherTopic:  "huntsman/weather",
		WeatherMaxAge: 5 * time.Minute,
	}
}

func newTestMonitor(t *testing.T, cfg Config, now time.Time) *Monitor {
	t.Helper()
	m, err := NewMonitor(cfg)
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}
	m.now = func() time.Time { return now }
	return m
}

func TestNewMonitor_RejectsBadHorizon(t *testing.T) {
	cfg := testConfig()
	cfg.Horizons["broken"] = -120
	if _, err := NewMonitor(cfg); err == nil {
		t.Fatal("expected error for out-of-range horizon")
	}
}

func TestMonitor_IsDark(t *testing.T) {
	tests := []struct {
		name    string
		now     time.Time
		horizon string
		want    bool
	}{
		{"noon startup", winterNoon, "startup", false},
		{"noon observe", winterNoon, "observe", false},
		{"midnight startup", winterMidnight, "startup", true},
		{"midnight observe", winterMidnight, "observe", true},
		{"dusk below sunset horizon", winterDusk, "sunset", true},
		{"dusk above flat horizon", winterDusk, "flat", false},
		{"unknown horizon", winterMidnight, "nautical", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMonitor(t, testConfig(), tt.now)
			if got := m.IsDark(tt.horizon); got != tt.want {
				t.Errorf("IsDark(%q) = %v, want %v (sun %.2f)", tt.horizon, got, tt.want, m.SunAltitude())
			}
		})
	}
}

func TestMonitor_IsWeatherSafe(t *testing.T) {
	now := winterMidnight

	tests := []struct {
		name    string
		reading *Reading
		want    bool
	}{
		{"no reading", nil, false},
		{"fresh safe", &Reading{Safe: true, Timestamp: now.Add(-time.Minute)}, true},
		{"fresh unsafe", &Reading{Safe: false, Reason: "rain", Timestamp: now}, false},
		{"stale safe", &Reading{Safe: true, Timestamp: now.Add(-10 * time.Minute)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMonitor(t, testConfig(), now)
			if tt.reading != nil {
				m.UpdateWeather(*tt.reading)
			}
			if got := m.IsWeatherSafe(); got != tt.want {
				t.Errorf("IsWeatherSafe() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMonitor_IsSafe(t *testing.T) {
	m := newTestMonitor(t, testConfig(), winterMidnight)
	if m.IsSafe("observe") {
		t.Error("IsSafe() = true without a weather reading")
	}

	m.UpdateWeather(Reading{Safe: true, Timestamp: winterMidnight})
	if !m.IsSafe("observe") {
		t.Error("IsSafe() = false at midnight with safe weather")
	}

	m.now = func() time.Time { return winterNoon }
	m.UpdateWeather(Reading{Safe: true, Timestamp: winterNoon})
	if m.IsSafe("observe") {
		t.Error("IsSafe() = true at noon")
	}
}

func TestMonitor_Simulation(t *testing.T) {
	cfg := testConfig()
	cfg.SimulateNight = true
	cfg.SimulateWeather = true

	m := newTestMonitor(t, cfg, winterNoon)
	if !m.IsSafe("observe") {
		t.Error("simulated night and weather should be safe at noon")
	}

	c := m.Conditions()
	if len(c.Simulated) != 2 || !c.WeatherSafe || !c.Dark["observe"] {
		t.Errorf("Conditions() = %+v", c)
	}
}

type fakeSubscriber struct {
	topic   string
	handler mqtt.MessageHandler
	err     error
}

func (f *fakeSubscriber) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.topic = topic
	f.handler = handler
	return f.err
}

func TestMonitor_WeatherFeed(t *testing.T) {
	m := newTestMonitor(t, testConfig(), winterMidnight)
	sub := &fakeSubscriber{}
	if err := m.Start(sub); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sub.topic != "huntsman/weather" {
		t.Fatalf("subscribed to %q", sub.topic)
	}

	// Missing timestamp is stamped on receipt.
	if err := sub.handler(sub.topic, []byte(`{"safe":true}`)); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !m.IsWeatherSafe() {
		t.Error("IsWeatherSafe() = false after safe reading")
	}

	if err := sub.handler(sub.topic, []byte(`{"safe":false,"reason":"cloud","timestamp":"2024-06-21T14:04:00Z"}`)); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if m.IsWeatherSafe() {
		t.Error("IsWeatherSafe() = true after unsafe reading")
	}

	if err := sub.handler(sub.topic, []byte(`{`)); !errors.Is(err, ErrInvalidReading) {
		t.Errorf("bad payload error = %v, want ErrInvalidReading", err)
	}
}

func TestMonitor_StartSkipsSimulatedWeather(t *testing.T) {
	cfg := testConfig()
	cfg.SimulateWeather = true
	m := newTestMonitor(t, cfg, winterMidnight)

	sub := &fakeSubscriber{err: errors.New("should not subscribe")}
	if err := m.Start(sub); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sub.topic != "" {
		t.Error("subscribed although weather is simulated")
	}
}

func TestMonitor_Horizon(t *testing.T) {
	m := newTestMonitor(t, testConfig(), winterNoon)
	if alt, err := m.Horizon("focus"); err != nil || alt != -12 {
		t.Errorf("Horizon(focus) = %v, %v", alt, err)
	}
	if _, err := m.Horizon("missing"); !errors.Is(err, ErrUnknownHorizon) {
		t.Errorf("Horizon(missing) error = %v", err)
	}
}
