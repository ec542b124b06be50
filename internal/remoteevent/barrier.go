package remoteevent

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// TickFunc is called on every barrier poll that finds work outstanding.
// pending lists the map keys whose events are still unset, sorted.
type TickFunc func(elapsed time.Duration, pending []string)

// WaitForAll blocks until every event in events reports set, polling every
// interval. It never releases while any event is unset and releases on the
// first poll at which all are set. There is no timeout: only ctx ends the
// wait early. A transport error aborts the wait.
func WaitForAll(ctx context.Context, events map[string]*Event, interval time.Duration, onTick TickFunc) error {
	start := time.Now()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		pending, err := Pending(ctx, events)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return nil
		}

		if onTick != nil {
			onTick(time.Since(start), pending)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %v: %w", pending, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Pending returns the sorted keys of events that are not yet set.
func Pending(ctx context.Context, events map[string]*Event) ([]string, error) {
	var pending []string
	for id, ev := range events {
		set, err := ev.IsSet(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: checking %s for %s: %w", ErrTransport, ev, id, err)
		}
		if !set {
			pending = append(pending, id)
		}
	}
	sort.Strings(pending)
	return pending, nil
}
