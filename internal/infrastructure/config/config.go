package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Huntsman controller.
// Infrastructure sections are typed; observing tunables are read through
// Tunables with dotted keys (see Values).
type Config struct {
	Site       SiteConfig       `yaml:"site"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	API        APIConfig        `yaml:"api"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
	Events     EventsConfig     `yaml:"events"`
	Safety     SafetyConfig     `yaml:"safety"`
	Drivers    []DriverConfig   `yaml:"drivers"`
	Cameras    []CameraConfig   `yaml:"cameras"`
	Simulator  []string         `yaml:"simulator"`
	Simulation SimulationConfig `yaml:"simulation"`
	Fields     []FieldConfig    `yaml:"fields"`

	// Tunables holds the whole document as a key tree for Get-style lookups.
	Tunables *Values `yaml:"-"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string         `yaml:"id"`
	Name     string         `yaml:"name"`
	Timezone string         `yaml:"timezone"`
	Location LocationConfig `yaml:"location"`
}

// LocationConfig contains geographic coordinates for the sun-altitude calculation.
type LocationConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Elevation float64 `yaml:"elevation"`
}

// DatabaseConfig contains SQLite database settings for the transition journal.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains the status/control HTTP server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// EventsConfig selects the remote-event transport.
type EventsConfig struct {
	// Transport is "mqtt" (cross-process) or "local" (single process).
	Transport string `yaml:"transport"`

	// BreakerFailures is the number of consecutive publish failures
	// before the transport stops calling the broker for BreakerOpenSeconds.
	BreakerFailures    int `yaml:"breaker_failures"`
	BreakerOpenSeconds int `yaml:"breaker_open_seconds"`
}

// SafetyConfig contains the safety monitor settings.
type SafetyConfig struct {
	// Horizons maps a horizon name to the sun altitude (degrees) below which
	// it counts as dark for that activity.
	Horizons map[string]float64 `yaml:"horizons"`

	// WeatherTopic is the MQTT topic weather readings arrive on.
	WeatherTopic string `yaml:"weather_topic"`

	// WeatherMaxAge is how old (seconds) a reading may be before the
	// weather is considered unsafe.
	WeatherMaxAge int `yaml:"weather_max_age"`
}

// DriverConfig describes an out-of-process hardware driver the controller supervises.
type DriverConfig struct {
	Name               string   `yaml:"name"`
	Binary             string   `yaml:"binary"`
	Args               []string `yaml:"args"`
	RestartOnFailure   bool     `yaml:"restart_on_failure"`
	RestartDelay       int      `yaml:"restart_delay"`
	MaxRestartAttempts int      `yaml:"max_restart_attempts"`
}

// CameraConfig describes one camera of the array. Name doubles as the
// remote event URI for the camera's exposures and focuser.
type CameraConfig struct {
	Name   string `yaml:"name"`
	Cooled bool   `yaml:"cooled"`
}

// SimulationConfig tunes simulated hardware.
type SimulationConfig struct {
	// TimeScale multiplies every simulated hardware duration (1 = real time).
	TimeScale float64 `yaml:"time_scale"`

	// MoonRA and MoonDec place the simulated moon (degrees).
	MoonRA  float64 `yaml:"moon_ra"`
	MoonDec float64 `yaml:"moon_dec"`
}

// FieldConfig is a target the simulated scheduler can hand out.
type FieldConfig struct {
	Name       string  `yaml:"name"`
	RA         float64 `yaml:"ra"`
	Dec        float64 `yaml:"dec"`
	ExpTime    float64 `yaml:"exp_time"`
	MinNexp    int     `yaml:"min_nexp"`
	ExpSetSize int     `yaml:"exp_set_size"`
	Priority   int     `yaml:"priority"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HUNTSMAN_SECTION_KEY
// For example: HUNTSMAN_DATABASE_PATH, HUNTSMAN_MQTT_HOST
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from YAML bytes. It is Load without the file read.
func Parse(data []byte) (*Config, error) {
	cfg := defaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config tunables: %w", err)
	}
	cfg.Tunables = NewValues(raw)

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "huntsman",
			Name:     "Huntsman Telescope",
			Timezone: "Australia/Sydney",
			Location: LocationConfig{
				Latitude:  -31.2733,
				Longitude: 149.0617,
				Elevation: 1165,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/huntsman.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "huntsman-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Events: EventsConfig{
			Transport:          "mqtt",
			BreakerFailures:    5,
			BreakerOpenSeconds: 30,
		},
		Safety: SafetyConfig{
			Horizons: map[string]float64{
				"startup": -6,
				"flat":    -3,
				"focus":   -12,
				"observe": -18,
			},
			WeatherTopic:  "huntsman/weather",
			WeatherMaxAge: 300,
		},
		Cameras: []CameraConfig{
			{Name: "huntsman-cam-00", Cooled: true},
			{Name: "huntsman-cam-01", Cooled: true},
		},
		Simulation: SimulationConfig{
			TimeScale: 1,
			MoonDec:   -90,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HUNTSMAN_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("HUNTSMAN_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HUNTSMAN_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("HUNTSMAN_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HUNTSMAN_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("HUNTSMAN_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("HUNTSMAN_EVENTS_TRANSPORT"); v != "" {
		cfg.Events.Transport = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if c.Site.Location.Latitude < -90 || c.Site.Location.Latitude > 90 {
		errs = append(errs, "site.location.latitude must be between -90 and 90")
	}
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	switch c.Events.Transport {
	case "mqtt", "local":
	default:
		errs = append(errs, fmt.Sprintf("events.transport %q must be mqtt or local", c.Events.Transport))
	}
	for _, name := range []string{"startup", "flat", "focus", "observe"} {
		if _, ok := c.Safety.Horizons[name]; !ok {
			errs = append(errs, fmt.Sprintf("safety.horizons.%s is required", name))
		}
	}
	for i, d := range c.Drivers {
		if d.Name == "" || d.Binary == "" {
			errs = append(errs, fmt.Sprintf("drivers[%d] needs name and binary", i))
		}
	}
	for i, cam := range c.Cameras {
		if cam.Name == "" {
			errs = append(errs, fmt.Sprintf("cameras[%d] needs a name", i))
		}
	}
	if c.Simulation.TimeScale <= 0 {
		errs = append(errs, "simulation.time_scale must be positive")
	}
	for i, f := range c.Fields {
		if f.Name == "" || f.MinNexp < 1 {
			errs = append(errs, fmt.Sprintf("fields[%d] needs a name and min_nexp >= 1", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Simulates reports whether the named hardware aspect is simulated
// (e.g. "night", "weather").
func (c *Config) Simulates(aspect string) bool {
	for _, s := range c.Simulator {
		if s == aspect || s == "all" {
			return true
		}
	}
	return false
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
