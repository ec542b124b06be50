package telemetry

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/huntsman-telescope/huntsman-core/internal/statemachine"
)

const namespace = "huntsman"

// Metrics exports engine activity as Prometheus metrics.
type Metrics struct {
	transitions   *prometheus.CounterVec
	state         *prometheus.GaugeVec
	stateDuration *prometheus.HistogramVec
	barrierWait   *prometheus.HistogramVec
	parkAttempts  *prometheus.CounterVec

	reg prometheus.Registerer

	mu      sync.Mutex
	current statemachine.State
}

// NewMetrics registers the engine metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		reg: reg,
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "statemachine",
			Name:      "transitions_total",
			Help:      "State transitions by source, destination and whether the safety interlock forced them.",
		}, []string{"from", "to", "forced"}),
		state: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "statemachine",
			Name:      "state",
			Help:      "1 for the state the machine is in, 0 otherwise.",
		}, []string{"state"}),
		stateDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "statemachine",
			Name:      "state_duration_seconds",
			Help:      "Time spent in a state's handler.",
			Buckets:   []float64{0.1, 1, 10, 30, 60, 300, 900, 3600, 14400},
		}, []string{"state"}),
		barrierWait: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cameras",
			Name:      "barrier_wait_seconds",
			Help:      "Time spent waiting for every camera event to be set.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"state", "result"}),
		parkAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mount",
			Name:      "park_attempts_total",
			Help:      "Home-and-park attempts by result.",
		}, []string{"result"}),
	}
	for _, s := range statemachine.AllStates {
		m.state.WithLabelValues(string(s)).Set(0)
	}
	return m
}

// RegisterGauge exports fn as a gauge, for values read on scrape such as a
// circuit breaker state.
func (m *Metrics) RegisterGauge(subsystem, name, help string, fn func() float64) {
	promauto.With(m.reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, fn)
}

// OnTransition implements statemachine.Observer.
func (m *Metrics) OnTransition(t statemachine.Transition) {
	m.transitions.WithLabelValues(string(t.From), string(t.To), strconv.FormatBool(t.Forced)).Inc()
	m.stateDuration.WithLabelValues(string(t.From)).Observe(t.Duration.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != "" {
		m.state.WithLabelValues(string(m.current)).Set(0)
	}
	m.state.WithLabelValues(string(t.To)).Set(1)
	m.current = t.To
}

// OnBarrierWait implements statemachine.Observer.
func (m *Metrics) OnBarrierWait(w statemachine.BarrierWait) {
	m.barrierWait.WithLabelValues(string(w.State), result(w.Err)).Observe(w.Waited.Seconds())
}

// OnParkAttempt implements statemachine.Observer.
func (m *Metrics) OnParkAttempt(_ int, err error) {
	m.parkAttempts.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
