// Package config handles loading and validating the Huntsman controller configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//   - Dotted-key lookups for observing tunables (Values)
//
// Sensitive values (broker password, InfluxDB token) should be set via
// environment variables rather than committed to the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	attempts := cfg.Tunables.Int("mount.num_park_attempts", 3)
package config
