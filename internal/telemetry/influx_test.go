package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/huntsman-telescope/huntsman-core/internal/safety"
	"github.com/huntsman-telescope/huntsman-core/internal/statemachine"
)

type point struct {
	measurement string
	tags        map[string]string
	fields      map[string]any
	ts          time.Time
}

type fakeWriter struct {
	mu     sync.Mutex
	points []point
}

func (w *fakeWriter) WritePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.points = append(w.points, point{measurement, tags, fields, ts})
}

func (w *fakeWriter) snapshot() []point {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]point(nil), w.points...)
}

func TestInflux_Transition(t *testing.T) {
	w := &fakeWriter{}
	in := NewInflux(w, "siding-spring")
	at := time.Date(2026, 6, 21, 10, 0, 0, 0, time.UTC)

	in.OnTransition(statemachine.Transition{
		RunID: "run-1", From: statemachine.StateObserving, To: statemachine.StateParking,
		Forced: true, Duration: 90 * time.Second, At: at, ObservationID: "obs-1",
	})

	pts := w.snapshot()
	if len(pts) != 1 {
		t.Fatalf("points = %d, want 1", len(pts))
	}
	p := pts[0]
	if p.measurement != MeasurementTransition || !p.ts.Equal(at) {
		t.Errorf("point = %s at %v", p.measurement, p.ts)
	}
	wantTags := map[string]string{"site": "siding-spring", "from": "observing", "to": "parking", "forced": "true"}
	for k, v := range wantTags {
		if p.tags[k] != v {
			t.Errorf("tag %s = %q, want %q", k, p.tags[k], v)
		}
	}
	if p.fields["duration_s"] != 90.0 || p.fields["observation_id"] != "obs-1" {
		t.Errorf("fields = %v", p.fields)
	}
}

func TestInflux_BarrierAndPark(t *testing.T) {
	w := &fakeWriter{}
	in := NewInflux(w, "site")

	in.OnBarrierWait(statemachine.BarrierWait{State: statemachine.StateFocusing, Events: 3, Err: errors.New("not safe")})
	in.OnParkAttempt(2, nil)

	pts := w.snapshot()
	if len(pts) != 2 {
		t.Fatalf("points = %d, want 2", len(pts))
	}
	if pts[0].tags["result"] != "error" || pts[0].fields["error"] != "not safe" || pts[0].fields["events"] != 3 {
		t.Errorf("barrier point = %+v", pts[0])
	}
	if pts[1].measurement != MeasurementParkAttempt || pts[1].tags["result"] != "ok" || pts[1].fields["attempt"] != 2 {
		t.Errorf("park point = %+v", pts[1])
	}
}

type staticConditions safety.Conditions

func (s staticConditions) Conditions() safety.Conditions { return safety.Conditions(s) }

func TestInflux_SampleConditions(t *testing.T) {
	w := &fakeWriter{}
	in := NewInflux(w, "site")
	src := staticConditions{
		SunAltitude: -20,
		Dark:        map[string]bool{"observe": true},
		WeatherSafe: true,
		EvaluatedAt: time.Now(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		in.SampleConditions(ctx, src, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for len(w.snapshot()) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("conditions not sampled")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	p := w.snapshot()[0]
	if p.measurement != MeasurementConditions || p.fields["sun_altitude"] != -20.0 || p.fields["dark_observe"] != true {
		t.Errorf("conditions point = %+v", p)
	}
}
