package telemetry

import (
	"context"
	"time"

	"github.com/huntsman-telescope/huntsman-core/internal/safety"
	"github.com/huntsman-telescope/huntsman-core/internal/statemachine"
)

// Measurement names written to InfluxDB.
const (
	MeasurementTransition  = "state_transition"
	MeasurementBarrierWait = "camera_barrier"
	MeasurementParkAttempt = "park_attempt"
	MeasurementConditions  = "sky_conditions"
)

// PointWriter queues a point; influxdb.Client implements it.
type PointWriter interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time)
}

// ConditionsSource reports current sky conditions; safety.Monitor
// implements it.
type ConditionsSource interface {
	Conditions() safety.Conditions
}

// Influx writes engine activity to InfluxDB.
type Influx struct {
	w    PointWriter
	site string
}

// NewInflux returns an observer writing through w, tagging every point
// with site.
func NewInflux(w PointWriter, site string) *Influx {
	return &Influx{w: w, site: site}
}

func (i *Influx) tags(kv ...string) map[string]string {
	tags := map[string]string{"site": i.site}
	for n := 0; n+1 < len(kv); n += 2 {
		tags[kv[n]] = kv[n+1]
	}
	return tags
}

// OnTransition implements statemachine.Observer.
func (i *Influx) OnTransition(t statemachine.Transition) {
	fields := map[string]any{
		"duration_s": t.Duration.Seconds(),
		"run_id":     t.RunID,
	}
	if t.ObservationID != "" {
		fields["observation_id"] = t.ObservationID
	}
	i.w.WritePoint(MeasurementTransition,
		i.tags("from", string(t.From), "to", string(t.To), "forced", boolTag(t.Forced)),
		fields, t.At)
}

// OnBarrierWait implements statemachine.Observer.
func (i *Influx) OnBarrierWait(w statemachine.BarrierWait) {
	fields := map[string]any{
		"waited_s": w.Waited.Seconds(),
		"events":   w.Events,
	}
	if w.Err != nil {
		fields["error"] = w.Err.Error()
	}
	i.w.WritePoint(MeasurementBarrierWait, i.tags("state", string(w.State), "result", result(w.Err)), fields, time.Now())
}

// OnParkAttempt implements statemachine.Observer.
func (i *Influx) OnParkAttempt(attempt int, err error) {
	fields := map[string]any{"attempt": attempt}
	if err != nil {
		fields["error"] = err.Error()
	}
	i.w.WritePoint(MeasurementParkAttempt, i.tags("result", result(err)), fields, time.Now())
}

// SampleConditions writes src's conditions every interval until ctx is done.
func (i *Influx) SampleConditions(ctx context.Context, src ConditionsSource, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		i.writeConditions(src.Conditions())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (i *Influx) writeConditions(c safety.Conditions) {
	fields := map[string]any{
		"sun_altitude": c.SunAltitude,
		"weather_safe": c.WeatherSafe,
	}
	for horizon, dark := range c.Dark {
		fields["dark_"+horizon] = dark
	}
	i.w.WritePoint(MeasurementConditions, i.tags(), fields, c.EvaluatedAt)
}

func boolTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
