package remoteevent

import (
	"context"
	"fmt"
	"time"
)

// EventType identifies which kind of hardware operation a latch tracks.
type EventType string

// Recognised event types.
const (
	TypeCamera      EventType = "camera"
	TypeFocuser     EventType = "focuser"
	TypeFilterWheel EventType = "filterwheel"
)

// Valid reports whether t is one of the recognised types.
func (t EventType) Valid() bool {
	switch t {
	case TypeCamera, TypeFocuser, TypeFilterWheel:
		return true
	}
	return false
}

// ParseEventType converts s to an EventType.
func ParseEventType(s string) (EventType, error) {
	t := EventType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidEventType, s)
	}
	return t, nil
}

// Transport is the URI-addressed latch contract. Implementations must be
// safe for concurrent use; consistency across processes is theirs to provide.
type Transport interface {
	EventSet(ctx context.Context, uri string, t EventType) error
	EventClear(ctx context.Context, uri string, t EventType) error
	EventIsSet(ctx context.Context, uri string, t EventType) (bool, error)

	// EventWait blocks until the latch is set or timeout elapses and reports
	// whether it was set. A zero timeout waits until ctx is done.
	EventWait(ctx context.Context, uri string, t EventType, timeout time.Duration) (bool, error)
}

// Event is a handle on one remote latch.
type Event struct {
	uri       string
	eventType EventType
	transport Transport
}

// New builds an Event. It fails unless eventType is recognised and both
// uri and transport are provided.
func New(uri string, eventType EventType, transport Transport) (*Event, error) {
	if !eventType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEventType, eventType)
	}
	if uri == "" {
		return nil, ErrEmptyURI
	}
	if transport == nil {
		return nil, ErrNoTransport
	}
	return &Event{uri: uri, eventType: eventType, transport: transport}, nil
}

// URI returns the latch address.
func (e *Event) URI() string { return e.uri }

// Type returns the latch type.
func (e *Event) Type() EventType { return e.eventType }

// Set raises the latch.
func (e *Event) Set(ctx context.Context) error {
	return e.transport.EventSet(ctx, e.uri, e.eventType)
}

// Clear lowers the latch.
func (e *Event) Clear(ctx context.Context) error {
	return e.transport.EventClear(ctx, e.uri, e.eventType)
}

// IsSet reports the current latch value.
func (e *Event) IsSet(ctx context.Context) (bool, error) {
	return e.transport.EventIsSet(ctx, e.uri, e.eventType)
}

// Wait blocks until the latch is set or timeout elapses.
func (e *Event) Wait(ctx context.Context, timeout time.Duration) (bool, error) {
	return e.transport.EventWait(ctx, e.uri, e.eventType, timeout)
}

// String implements fmt.Stringer.
func (e *Event) String() string {
	return fmt.Sprintf("%s(%s)", e.eventType, e.uri)
}
