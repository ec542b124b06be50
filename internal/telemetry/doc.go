// Package telemetry turns state machine activity into metrics.
//
// Metrics is a Prometheus collector set scraped through /metrics.
// Influx writes the same events, plus periodic sky conditions, to
// InfluxDB for long-term history. Both implement statemachine.Observer
// and never block the engine.
package telemetry
