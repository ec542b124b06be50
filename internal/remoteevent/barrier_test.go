package remoteevent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newCameraEvents(t *testing.T, tr Transport, ids ...string) map[string]*Event {
	t.Helper()
	events := make(map[string]*Event, len(ids))
	for _, id := range ids {
		ev, err := New(id, TypeCamera, tr)
		if err != nil {
			t.Fatalf("New(%s): %v", id, err)
		}
		events[id] = ev
	}
	return events
}

func TestWaitForAll_ReleasesWhenLastEventSet(t *testing.T) {
	ctx := context.Background()
	const interval = 20 * time.Millisecond

	events := newCameraEvents(t, NewLocalTransport(), "cam-a", "cam-b", "cam-c")
	_ = events["cam-a"].Set(ctx)
	_ = events["cam-b"].Set(ctx)

	var (
		mu    sync.Mutex
		ticks int
		seen  [][]string
	)
	onTick := func(_ time.Duration, pending []string) {
		mu.Lock()
		defer mu.Unlock()
		ticks++
		seen = append(seen, pending)
	}

	go func() {
		time.Sleep(2 * interval)
		_ = events["cam-c"].Set(ctx)
	}()

	start := time.Now()
	if err := WaitForAll(ctx, events, interval, onTick); err != nil {
		t.Fatalf("WaitForAll: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 2*interval {
		t.Errorf("released after %v, before the last event was set", elapsed)
	}
	if elapsed > 10*interval {
		t.Errorf("released after %v, want shortly after the event was set", elapsed)
	}

	mu.Lock()
	defer mu.Unlock()
	if ticks < 2 {
		t.Errorf("ticks = %d, want at least 2", ticks)
	}
	for _, pending := range seen {
		if len(pending) != 1 || pending[0] != "cam-c" {
			t.Errorf("pending = %v, want [cam-c]", pending)
		}
	}
}

func TestWaitForAll_AllSetReleasesImmediately(t *testing.T) {
	ctx := context.Background()
	events := newCameraEvents(t, NewLocalTransport(), "cam-a", "cam-b")
	for _, ev := range events {
		_ = ev.Set(ctx)
	}

	ticked := false
	err := WaitForAll(ctx, events, time.Hour, func(time.Duration, []string) { ticked = true })
	if err != nil {
		t.Fatalf("WaitForAll: %v", err)
	}
	if ticked {
		t.Error("onTick called although nothing was pending")
	}
}

func TestWaitForAll_EmptyMap(t *testing.T) {
	if err := WaitForAll(context.Background(), nil, time.Hour, nil); err != nil {
		t.Fatalf("WaitForAll(nil) = %v, want nil", err)
	}
}

func TestWaitForAll_ContextCancelled(t *testing.T) {
	events := newCameraEvents(t, NewLocalTransport(), "cam-a")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := WaitForAll(ctx, events, 10*time.Millisecond, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("WaitForAll() error = %v, want DeadlineExceeded", err)
	}
}

type failingTransport struct {
	LocalTransport
}

func (failingTransport) EventIsSet(context.Context, string, EventType) (bool, error) {
	return false, errors.New("broker gone")
}

func TestWaitForAll_TransportError(t *testing.T) {
	events := newCameraEvents(t, &failingTransport{}, "cam-a")

	err := WaitForAll(context.Background(), events, 10*time.Millisecond, nil)
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("WaitForAll() error = %v, want ErrTransport", err)
	}
}

func TestPending_Sorted(t *testing.T) {
	ctx := context.Background()
	events := newCameraEvents(t, NewLocalTransport(), "cam-c", "cam-a", "cam-b")
	_ = events["cam-b"].Set(ctx)

	pending, err := Pending(ctx, events)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 2 || pending[0] != "cam-a" || pending[1] != "cam-c" {
		t.Errorf("Pending() = %v, want [cam-a cam-c]", pending)
	}
}
