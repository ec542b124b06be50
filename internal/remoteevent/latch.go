package remoteevent

import (
	"context"
	"sync"
	"time"
)

// latch is a settable flag whose waiters are released by closing ch.
type latch struct {
	set bool
	ch  chan struct{}
}

type latchKey struct {
	uri       string
	eventType EventType
}

// latchTable holds latches keyed by (uri, type). It backs LocalTransport
// and the MQTT transport's mirror of the retained topics.
type latchTable struct {
	mu      sync.Mutex
	latches map[latchKey]*latch
}

func newLatchTable() *latchTable {
	return &latchTable{latches: make(map[latchKey]*latch)}
}

// get returns the latch for key, creating an unset one. Caller holds mu.
func (lt *latchTable) get(key latchKey) *latch {
	l, ok := lt.latches[key]
	if !ok {
		l = &latch{ch: make(chan struct{})}
		lt.latches[key] = l
	}
	return l
}

func (lt *latchTable) store(key latchKey, value bool) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	l := lt.get(key)
	switch {
	case value && !l.set:
		l.set = true
		close(l.ch)
	case !value && l.set:
		l.set = false
		l.ch = make(chan struct{})
	}
}

func (lt *latchTable) isSet(key latchKey) bool {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.get(key).set
}

// wait blocks until key is set, timeout elapses (if > 0) or ctx is done.
func (lt *latchTable) wait(ctx context.Context, key latchKey, timeout time.Duration) (bool, error) {
	lt.mu.Lock()
	l := lt.get(key)
	if l.set {
		lt.mu.Unlock()
		return true, nil
	}
	ch := l.ch
	lt.mu.Unlock()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-ch:
		return true, nil
	case <-expired:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// LocalTransport keeps latches in process memory.
type LocalTransport struct {
	table *latchTable
}

// NewLocalTransport creates an empty in-memory transport.
func NewLocalTransport() *LocalTransport {
	return &LocalTransport{table: newLatchTable()}
}

// EventSet implements Transport.
func (t *LocalTransport) EventSet(_ context.Context, uri string, et EventType) error {
	t.table.store(latchKey{uri, et}, true)
	return nil
}

// EventClear implements Transport.
func (t *LocalTransport) EventClear(_ context.Context, uri string, et EventType) error {
	t.table.store(latchKey{uri, et}, false)
	return nil
}

// EventIsSet implements Transport.
func (t *LocalTransport) EventIsSet(_ context.Context, uri string, et EventType) (bool, error) {
	return t.table.isSet(latchKey{uri, et}), nil
}

// EventWait implements Transport.
func (t *LocalTransport) EventWait(ctx context.Context, uri string, et EventType, timeout time.Duration) (bool, error) {
	return t.table.wait(ctx, latchKey{uri, et}, timeout)
}
