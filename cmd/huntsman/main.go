// Huntsman Core runs the nightly operation of the Huntsman telescope array:
// it drives the observing state machine, journals every transition and
// exposes a small status and control API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/huntsman-telescope/huntsman-core/internal/announce"
	"github.com/huntsman-telescope/huntsman-core/internal/api"
	"github.com/huntsman-telescope/huntsman-core/internal/infrastructure/config"
	"github.com/huntsman-telescope/huntsman-core/internal/infrastructure/database"
	"github.com/huntsman-telescope/huntsman-core/internal/infrastructure/influxdb"
	"github.com/huntsman-telescope/huntsman-core/internal/infrastructure/logging"
	"github.com/huntsman-telescope/huntsman-core/internal/infrastructure/mqtt"
	"github.com/huntsman-telescope/huntsman-core/internal/journal"
	"github.com/huntsman-telescope/huntsman-core/internal/process"
	"github.com/huntsman-telescope/huntsman-core/internal/remoteevent"
	"github.com/huntsman-telescope/huntsman-core/internal/safety"
	"github.com/huntsman-telescope/huntsman-core/internal/simulator"
	"github.com/huntsman-telescope/huntsman-core/internal/statemachine"
	"github.com/huntsman-telescope/huntsman-core/internal/telemetry"
	"github.com/huntsman-telescope/huntsman-core/migrations"
)

// Set at build time via -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath  = "configs/config.yaml"
	defaultEnvFile     = ".env"
	conditionsInterval = time.Minute

	// failedRunGrace keeps the API up after a failed run so operators can
	// see what happened before the process exits non-zero.
	failedRunGrace = 10 * time.Minute
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the controller and blocks until ctx is cancelled.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Huntsman Core", "version", version, "commit", commit, "build_date", date)

	if err := loadDotEnv(getEnvFile()); err != nil {
		return fmt.Errorf("loading env file: %w", err)
	}

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "site", cfg.Site.ID, "simulated", cfg.Simulator)

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("journal database ready", "path", db.Path())

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
	mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
	log.Info("MQTT connected", "broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port))

	influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) { log.Error("InfluxDB write error", "error", err) })
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(registry)
	metrics.RegisterGauge("mqtt", "connected", "1 while the broker link is up.", func() float64 {
		return boolGauge(mqttClient.IsConnected())
	})
	metrics.RegisterGauge("mqtt", "reconnects", "Broker sessions re-established since start.", func() float64 {
		return float64(mqttClient.Stats().Reconnects)
	})
	if influxClient != nil {
		metrics.RegisterGauge("influxdb", "points_queued", "Telemetry points handed to the InfluxDB writer.", func() float64 {
			return float64(influxClient.Stats().Queued)
		})
		metrics.RegisterGauge("influxdb", "write_failures", "Batched InfluxDB writes that failed.", func() float64 {
			return float64(influxClient.Stats().Failed)
		})
	}

	transport, err := newTransport(cfg, mqttClient, log, metrics)
	if err != nil {
		return err
	}

	monitor, err := safety.NewMonitor(safety.Config{
		Latitude:        cfg.Site.Location.Latitude,
		Longitude:       cfg.Site.Location.Longitude,
		Horizons:        cfg.Safety.Horizons,
		WeatherTopic:    cfg.Safety.WeatherTopic,
		WeatherMaxAge:   time.Duration(cfg.Safety.WeatherMaxAge) * time.Second,
		SimulateNight:   cfg.Simulates("night"),
		SimulateWeather: cfg.Simulates("weather"),
	})
	if err != nil {
		return fmt.Errorf("creating safety monitor: %w", err)
	}
	monitor.SetLogger(log.Component("safety"))
	if err := monitor.Start(mqttClient); err != nil {
		return err
	}
	metrics.RegisterGauge("safety", "sun_altitude_degrees", "Current sun altitude at the site.", monitor.SunAltitude)

	drivers := process.NewSupervisor(cfg.Drivers, log.Component("drivers"))
	if err := drivers.Start(ctx); err != nil {
		return fmt.Errorf("starting drivers: %w", err)
	}
	defer func() {
		if stopErr := drivers.Stop(); stopErr != nil {
			log.Error("error stopping drivers", "error", stopErr)
		}
	}()
	if drivers.Len() > 0 {
		log.Info("hardware drivers started", "count", drivers.Len())
	}

	obs, err := simulator.New(simulator.DefaultConfig(cfg), transport, monitor, log.Component("simulator"))
	if err != nil {
		return fmt.Errorf("creating observatory: %w", err)
	}
	defer func() { _ = obs.Close() }()

	journalRepo := journal.NewSQLiteRepository(db.DB)
	recorder := journal.NewRecorder(journalRepo, log.Component("journal"))
	recorderDone := make(chan error, 1)
	recorderCtx, stopRecorder := context.WithCancel(context.WithoutCancel(ctx))
	go func() { recorderDone <- recorder.Run(recorderCtx) }()
	defer func() {
		stopRecorder()
		if runErr := <-recorderDone; runErr != nil {
			log.Error("journal recorder stopped", "error", runErr)
		}
	}()

	announcer := announce.New(mqttClient, log.Component("announce"))
	observers := []statemachine.Observer{metrics, recorder, announcer}
	if influxClient != nil {
		influx := telemetry.NewInflux(influxClient, cfg.Site.ID)
		observers = append(observers, influx)
		go influx.SampleConditions(ctx, monitor, conditionsInterval)
	}

	engine, err := statemachine.NewEngine(obs, monitor, cfg.Tunables,
		statemachine.WithLogger(log.Component("statemachine")),
		statemachine.WithNarrator(announcer),
		statemachine.WithObserver(observers...),
		statemachine.WithPollInterval(cfg.Tunables.Duration("wait_interval", statemachine.DefaultPollInterval)),
	)
	if err != nil {
		return fmt.Errorf("creating state machine: %w", err)
	}

	outcome := &runOutcome{}
	if cfg.API.Enabled {
		server, err := api.New(api.Deps{
			Config:     cfg.API,
			Logger:     log,
			Engine:     engine,
			Conditions: monitor,
			Journal:    journalRepo,
			Metrics:    promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			Checks:     healthChecks(db, mqttClient, influxClient, drivers, outcome),
			Version:    version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	log.Info("initialisation complete, starting state machine")
	runErr := engine.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		outcome.set(runErr)
		log.Error("state machine ended with error", "error", runErr)
		if cfg.API.Enabled {
			log.Warn("keeping the API up before exiting", "grace", failedRunGrace)
			waitOrTimeout(ctx, failedRunGrace)
		}
		return fmt.Errorf("state machine: %w", runErr)
	}
	log.Info("state machine stopped")

	// A stop requested over the API leaves the daemon up for status queries.
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// runOutcome records how the state machine run ended.
type runOutcome struct {
	mu  sync.Mutex
	err error
}

func (o *runOutcome) set(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

// HealthCheck fails once the run has ended with an error.
func (o *runOutcome) HealthCheck(context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return fmt.Errorf("run failed: %w", o.err)
	}
	return nil
}

func waitOrTimeout(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// getConfigPath returns HUNTSMAN_CONFIG if set, otherwise the default path.
func getConfigPath() string {
	if path := os.Getenv("HUNTSMAN_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// getEnvFile returns HUNTSMAN_ENV_FILE if set, otherwise ".env".
func getEnvFile() string {
	if path := os.Getenv("HUNTSMAN_ENV_FILE"); path != "" {
		return path
	}
	return defaultEnvFile
}

// loadDotEnv loads HUNTSMAN_* overrides from path. A missing file is not
// an error. Variables already set in the environment win.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// newTransport builds the remote-event transport the config selects.
func newTransport(cfg *config.Config, client *mqtt.Client, log *logging.Logger, metrics *telemetry.Metrics) (remoteevent.Transport, error) {
	if cfg.Events.Transport == "local" {
		log.Info("remote events are in-process only")
		return remoteevent.NewLocalTransport(), nil
	}

	t := remoteevent.NewMQTTTransport(client, remoteevent.MQTTTransportConfig{
		Source:          cfg.MQTT.Broker.ClientID,
		BreakerFailures: uint32(max(cfg.Events.BreakerFailures, 0)), //nolint:gosec // clamped to non-negative
		BreakerOpen:     time.Duration(cfg.Events.BreakerOpenSeconds) * time.Second,
	})
	t.SetLogger(log.Component("remoteevent"))
	if err := t.Start(); err != nil {
		return nil, fmt.Errorf("starting event transport: %w", err)
	}
	metrics.RegisterGauge("remoteevent", "breaker_open", "1 while the event publish breaker is open.", func() float64 {
		return boolGauge(t.BreakerState() == "open")
	})
	return t, nil
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// healthChecks collects the component probes served on /api/v1/health.
func healthChecks(db *database.DB, client *mqtt.Client, influx *influxdb.Client, drivers *process.Supervisor, outcome *runOutcome) map[string]api.HealthCheck {
	checks := map[string]api.HealthCheck{
		"database":      db.HealthCheck,
		"mqtt":          client.HealthCheck,
		"drivers":       drivers.HealthCheck,
		"state_machine": outcome.HealthCheck,
	}
	if influx != nil {
		checks["influxdb"] = influx.HealthCheck
	}
	return checks
}
