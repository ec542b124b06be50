package remoteevent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/huntsman-telescope/huntsman-core/internal/infrastructure/mqtt"
)

// PubSub is the subset of the MQTT client the transport needs.
type PubSub interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Logger is the logging surface used by the MQTT transport.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// latchPayload is the retained message body on an event topic.
type latchPayload struct {
	Set       bool   `json:"set"`
	Source    string `json:"source,omitempty"`
	Timestamp string `json:"timestamp"`
}

// MQTTTransportConfig tunes the MQTT transport.
type MQTTTransportConfig struct {
	// Source is recorded in every published payload (usually the client ID).
	Source string

	// BreakerFailures is the consecutive publish failures that open the breaker.
	BreakerFailures uint32

	// BreakerOpen is how long the breaker stays open before probing.
	BreakerOpen time.Duration
}

// MQTTTransport stores latches as retained messages on
// huntsman/event/{uri}/{type}. Reads are served from a local mirror kept
// current by a wildcard subscription, so IsSet never blocks on the broker.
type MQTTTransport struct {
	pubsub  PubSub
	source  string
	table   *latchTable
	breaker *gobreaker.CircuitBreaker
	logger  Logger

	startOnce sync.Once
	startErr  error
}

// NewMQTTTransport creates a transport over pubsub. Start must be called
// before latches set by other processes become visible.
func NewMQTTTransport(pubsub PubSub, cfg MQTTTransportConfig) *MQTTTransport {
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerOpen <= 0 {
		cfg.BreakerOpen = 30 * time.Second
	}

	t := &MQTTTransport{
		pubsub: pubsub,
		source: cfg.Source,
		table:  newLatchTable(),
		logger: noopLogger{},
	}
	t.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "remoteevent-publish",
		Timeout: cfg.BreakerOpen,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			t.logger.Warn("circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return t
}

// SetLogger sets the logger. Call before Start.
func (t *MQTTTransport) SetLogger(logger Logger) {
	if logger != nil {
		t.logger = logger
	}
}

// Start subscribes to every event topic. Retained latches published before
// this process started are delivered by the broker on subscribe.
func (t *MQTTTransport) Start() error {
	t.startOnce.Do(func() {
		err := t.pubsub.Subscribe(mqtt.Topics{}.AllEvents(), 1, t.handleMessage)
		if err != nil {
			t.startErr = fmt.Errorf("%w: subscribing to events: %w", ErrTransport, err)
		}
	})
	return t.startErr
}

func (t *MQTTTransport) handleMessage(topic string, payload []byte) error {
	uri, typ, ok := mqtt.ParseEventTopic(topic)
	if !ok {
		return fmt.Errorf("unexpected event topic %q", topic)
	}
	et, err := ParseEventType(typ)
	if err != nil {
		return err
	}

	// An empty retained payload deletes the topic: treat as cleared.
	var p latchPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decoding latch on %s: %w", topic, err)
		}
	}

	t.table.store(latchKey{uri, et}, p.Set)
	t.logger.Debug("event latch updated", "uri", uri, "type", et, "set", p.Set, "source", p.Source)
	return nil
}

func (t *MQTTTransport) publish(uri string, et EventType, value bool) error {
	payload, err := json.Marshal(latchPayload{
		Set:       value,
		Source:    t.source,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("%w: encoding latch: %w", ErrTransport, err)
	}

	topic := mqtt.Topics{}.Event(uri, string(et))
	_, err = t.breaker.Execute(func() (any, error) {
		return nil, t.pubsub.Publish(topic, payload, 1, true)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: publish suspended: %w", ErrTransport, err)
		}
		return fmt.Errorf("%w: publishing %s: %w", ErrTransport, topic, err)
	}

	// Mirror locally so a read straight after a write is consistent
	// without waiting for the broker echo.
	t.table.store(latchKey{mqtt.SanitiseLevel(uri), et}, value)
	return nil
}

// EventSet implements Transport.
func (t *MQTTTransport) EventSet(_ context.Context, uri string, et EventType) error {
	return t.publish(uri, et, true)
}

// EventClear implements Transport.
func (t *MQTTTransport) EventClear(_ context.Context, uri string, et EventType) error {
	return t.publish(uri, et, false)
}

// EventIsSet implements Transport.
func (t *MQTTTransport) EventIsSet(_ context.Context, uri string, et EventType) (bool, error) {
	return t.table.isSet(latchKey{mqtt.SanitiseLevel(uri), et}), nil
}

// EventWait implements Transport.
func (t *MQTTTransport) EventWait(ctx context.Context, uri string, et EventType, timeout time.Duration) (bool, error) {
	return t.table.wait(ctx, latchKey{mqtt.SanitiseLevel(uri), et}, timeout)
}

// BreakerState reports the publish breaker state ("closed", "open", "half-open").
func (t *MQTTTransport) BreakerState() string {
	return t.breaker.State().String()
}
