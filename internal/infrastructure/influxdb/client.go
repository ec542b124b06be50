package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/huntsman-telescope/huntsman-core/internal/infrastructure/config"
)

const (
	connectTimeout      = 10 * time.Second
	pingTimeout         = 5 * time.Second
	defaultBatchSize    = 100
	defaultFlushSeconds = 10
)

// Stats counts points handed to the write API and async write failures.
type Stats struct {
	Queued uint64 `json:"queued"`
	Failed uint64 `json:"failed"`
}

// Client is a batched, non-blocking InfluxDB v2 writer for controller
// telemetry. Points queued after Close are dropped. Safe for concurrent use.
type Client struct {
	influx influxdb2.Client
	writer api.WriteAPI

	closed atomic.Bool
	queued atomic.Uint64
	failed atomic.Uint64

	mu      sync.RWMutex
	onError func(err error)
}

// Connect pings the server and starts the batched write API for
// cfg.Org/cfg.Bucket. It returns ErrDisabled when telemetry is off.
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	opts := influxdb2.DefaultOptions().
		SetBatchSize(uint(positiveOr(cfg.BatchSize, defaultBatchSize))). //nolint:gosec // positive
		SetFlushInterval(uint(positiveOr(cfg.FlushInterval, defaultFlushSeconds)) * uint(time.Second/time.Millisecond)). //nolint:gosec // positive
		SetPrecision(time.Millisecond)
	influx := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	if err := ping(ctx, influx, connectTimeout); err != nil {
		influx.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Client{influx: influx, writer: influx.WriteAPI(cfg.Org, cfg.Bucket)}
	go c.drainErrors(c.writer.Errors())
	return c, nil
}

func positiveOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func ping(ctx context.Context, influx influxdb2.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	healthy, err := influx.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if !healthy {
		return fmt.Errorf("ping: server not ready")
	}
	return nil
}

// drainErrors counts async write failures and reports them to the
// error callback. The write API closes errs on Close.
func (c *Client) drainErrors(errs <-chan error) {
	for err := range errs {
		c.failed.Add(1)

		c.mu.RLock()
		callback := c.onError
		c.mu.RUnlock()
		if callback != nil {
			callback(fmt.Errorf("%w: %w", ErrWriteFailed, err))
		}
	}
}

// Close flushes queued points and releases the client. Nil-safe.
func (c *Client) Close() error {
	if c == nil || c.influx == nil || c.closed.Swap(true) {
		return nil
	}
	c.writer.Flush()
	c.influx.Close()
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if err := ping(ctx, c.influx, pingTimeout); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// IsConnected reports whether the client is open. HealthCheck probes the
// server itself.
func (c *Client) IsConnected() bool {
	return c != nil && c.influx != nil && !c.closed.Load()
}

// Stats returns the write counters.
func (c *Client) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{Queued: c.queued.Load(), Failed: c.failed.Load()}
}

// SetOnError sets the callback for async write failures.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	c.onError = callback
	c.mu.Unlock()
}
