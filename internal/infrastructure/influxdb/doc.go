// Package influxdb writes controller telemetry to InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library with connection
// checks and a non-blocking batched write API. State transitions, camera
// barrier waits and park attempts are recorded as points by the telemetry
// package; this package knows nothing about their shape.
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WritePoint("state_transition",
//	    map[string]string{"to": "observing"},
//	    map[string]any{"duration_s": 12.5}, time.Now())
//
// Batch size and flush interval come from config.yaml. Write errors are
// delivered asynchronously through SetOnError.
package influxdb
