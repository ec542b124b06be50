package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/huntsman-telescope/huntsman-core/internal/infrastructure/config"
)

// Logger is the subset of logging.Logger the client needs.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler receives one message. It runs on a paho goroutine and
// must return quickly; a returned error is logged.
type MessageHandler func(topic string, payload []byte) error

// Stats describes the broker link for health reporting.
type Stats struct {
	Connected     bool      `json:"connected"`
	Reconnects    int       `json:"reconnects"`
	LastLost      time.Time `json:"last_lost,omitempty"`
	LastLostError string    `json:"last_lost_error,omitempty"`
	Subscriptions int       `json:"subscriptions"`
}

// Client is the controller's broker connection. It announces presence on
// the system status topic, replays subscriptions after a reconnect and
// shields the process from panicking handlers. Safe for concurrent use.
type Client struct {
	paho pahomqtt.Client
	cfg  config.MQTTConfig

	mu            sync.RWMutex
	connected     bool
	connects      int
	lastLost      time.Time
	lastLostErr   error
	subscriptions map[string]subscription
	onConnect     func()
	onDisconnect  func(err error)
	logger        Logger
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Connect dials the broker and waits for the first session. A retained
// Last Will marks the controller offline if the process dies.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{cfg: cfg, subscriptions: make(map[string]subscription)}

	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.sessionUp() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.sessionLost(err) })

	c.paho = pahomqtt.NewClient(opts)
	if err := await(c.paho.Connect(), defaultConnectTimeout); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The connect handler runs asynchronously; callers may publish now.
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return c, nil
}

func (c *Client) sessionUp() {
	c.mu.Lock()
	c.connected = true
	c.connects++
	subs := make(map[string]subscription, len(c.subscriptions))
	for topic, s := range c.subscriptions {
		subs[topic] = s
	}
	callback := c.onConnect
	c.mu.Unlock()

	// Clean sessions drop subscriptions on the broker side.
	for topic, s := range subs {
		c.paho.Subscribe(topic, s.qos, c.dispatch(s.handler))
	}
	c.paho.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true,
		statusPayload(c.cfg.Broker.ClientID, "online", ""))

	if callback != nil {
		callback()
	}
}

func (c *Client) sessionLost(err error) {
	c.mu.Lock()
	c.connected = false
	c.lastLost = time.Now()
	c.lastLostErr = err
	callback := c.onDisconnect
	c.mu.Unlock()

	if callback != nil {
		callback(err)
	}
}

// Close marks the controller offline and disconnects. Safe on a client
// that never connected.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}
	if c.IsConnected() {
		c.paho.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true,
			statusPayload(c.cfg.Broker.ClientID, "offline", "graceful_shutdown")).WaitTimeout(defaultPublishTimeout)
	}
	c.paho.Disconnect(defaultDisconnectQuiesce)

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	return nil
}

// HealthCheck returns ErrNotConnected, with the last loss reason, while
// the broker link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if c.IsConnected() {
		return nil
	}
	c.mu.RLock()
	lost := c.lastLostErr
	c.mu.RUnlock()
	if lost != nil {
		return fmt.Errorf("%w: %w", ErrNotConnected, lost)
	}
	return ErrNotConnected
}

// IsConnected reports whether the broker link is up.
func (c *Client) IsConnected() bool {
	if c == nil || c.paho == nil {
		return false
	}
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.paho.IsConnected()
}

// Stats returns a snapshot of the broker link.
func (c *Client) Stats() Stats {
	connected := c.IsConnected()

	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Stats{
		Connected:     connected,
		Reconnects:    max(c.connects-1, 0),
		LastLost:      c.lastLost,
		Subscriptions: len(c.subscriptions),
	}
	if c.lastLostErr != nil {
		s.LastLostError = c.lastLostErr.Error()
	}
	return s
}

// SetOnConnect sets a callback run after every session start.
func (c *Client) SetOnConnect(callback func()) {
	c.mu.Lock()
	c.onConnect = callback
	c.mu.Unlock()
}

// SetOnDisconnect sets a callback run when the link drops.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.mu.Lock()
	c.onDisconnect = callback
	c.mu.Unlock()
}

// SetLogger sets the logger for handler errors and panics.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}
