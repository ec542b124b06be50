// Package announce publishes the controller's narration and current state
// to MQTT for dashboards and the operator's console.
package announce

import (
	"encoding/json"
	"time"

	"github.com/huntsman-telescope/huntsman-core/internal/infrastructure/mqtt"
	"github.com/huntsman-telescope/huntsman-core/internal/statemachine"
)

// Publisher sends one MQTT message; mqtt.Client implements it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger is the logging surface used by the announcer.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// SayMessage is the payload of huntsman/core/say.
type SayMessage struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// StateMessage is the retained payload of huntsman/core/state.
type StateMessage struct {
	RunID         string             `json:"run_id"`
	State         statemachine.State `json:"state"`
	Previous      statemachine.State `json:"previous"`
	Forced        bool               `json:"forced"`
	ObservationID string             `json:"observation_id,omitempty"`
	At            time.Time          `json:"at"`
}

// Announcer is a statemachine.Narrator and Observer that mirrors the
// engine onto MQTT. Publish failures are logged and otherwise ignored.
type Announcer struct {
	statemachine.NopObserver

	pub    Publisher
	logger Logger
	topics mqtt.Topics
	now    func() time.Time
}

// New returns an announcer publishing through pub.
func New(pub Publisher, logger Logger) *Announcer {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Announcer{pub: pub, logger: logger, now: time.Now}
}

// Say implements statemachine.Narrator.
func (a *Announcer) Say(msg string) {
	a.publish(a.topics.CoreSay(), SayMessage{Message: msg, At: a.now().UTC()}, false)
}

// OnTransition implements statemachine.Observer.
func (a *Announcer) OnTransition(t statemachine.Transition) {
	a.publish(a.topics.CoreState(), StateMessage{
		RunID:         t.RunID,
		State:         t.To,
		Previous:      t.From,
		Forced:        t.Forced,
		ObservationID: t.ObservationID,
		At:            t.At.UTC(),
	}, true)
}

func (a *Announcer) publish(topic string, v any, retained bool) {
	payload, err := json.Marshal(v)
	if err != nil {
		a.logger.Warn("encoding announcement", "topic", topic, "error", err)
		return
	}
	if err := a.pub.Publish(topic, payload, 1, retained); err != nil {
		a.logger.Warn("publishing announcement", "topic", topic, "error", err)
	}
}
