// Package logging provides structured logging for the Huntsman controller.
//
// It wraps log/slog so every component logs the same way: JSON in
// production, text on a developer terminal, with service and version
// attached to every entry.
//
// Configuration (config.yaml):
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("statemachine").Info("state changed", "from", "parked", "to", "housekeeping")
package logging
