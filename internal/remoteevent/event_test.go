package remoteevent

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNew_Validation(t *testing.T) {
	tr := NewLocalTransport()

	tests := []struct {
		name      string
		uri       string
		eventType EventType
		transport Transport
		wantErr   error
	}{
		{"camera", "cam-01", TypeCamera, tr, nil},
		{"focuser", "foc-01", TypeFocuser, tr, nil},
		{"filterwheel", "fw-01", TypeFilterWheel, tr, nil},
		{"unknown type", "cam-01", EventType("dome"), tr, ErrInvalidEventType},
		{"empty type", "cam-01", EventType(""), tr, ErrInvalidEventType},
		{"empty uri", "", TypeCamera, tr, ErrEmptyURI},
		{"nil transport", "cam-01", TypeCamera, nil, ErrNoTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := New(tt.uri, tt.eventType, tt.transport)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
				}
				if ev != nil {
					t.Error("New() returned an event alongside an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() unexpected error: %v", err)
			}
			if ev.URI() != tt.uri || ev.Type() != tt.eventType {
				t.Errorf("New() = %s, want %s(%s)", ev, tt.eventType, tt.uri)
			}
		})
	}
}

func TestParseEventType(t *testing.T) {
	if got, err := ParseEventType("focuser"); err != nil || got != TypeFocuser {
		t.Errorf("ParseEventType(focuser) = %q, %v", got, err)
	}
	if _, err := ParseEventType("mount"); !errors.Is(err, ErrInvalidEventType) {
		t.Errorf("ParseEventType(mount) error = %v, want ErrInvalidEventType", err)
	}
}

func TestEvent_SetClear(t *testing.T) {
	ctx := context.Background()
	ev, err := New("cam-01", TypeCamera, NewLocalTransport())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	assertSet := func(want bool) {
		t.Helper()
		got, err := ev.IsSet(ctx)
		if err != nil {
			t.Fatalf("IsSet: %v", err)
		}
		if got != want {
			t.Fatalf("IsSet() = %v, want %v", got, want)
		}
	}

	assertSet(false)
	if err := ev.Set(ctx); err != nil {
		t.Fatalf("Set: %v", err)
	}
	assertSet(true)
	if err := ev.Set(ctx); err != nil {
		t.Fatalf("second Set: %v", err)
	}
	assertSet(true)
	if err := ev.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	assertSet(false)
}

func TestEvent_SharedThroughTransport(t *testing.T) {
	ctx := context.Background()
	tr := NewLocalTransport()

	// Two handles on one address observe the same latch.
	a, _ := New("cam-01", TypeCamera, tr)
	b, _ := New("cam-01", TypeCamera, tr)
	other, _ := New("cam-01", TypeFocuser, tr)

	if err := a.Set(ctx); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if set, _ := b.IsSet(ctx); !set {
		t.Error("second handle does not see the latch")
	}
	if set, _ := other.IsSet(ctx); set {
		t.Error("latch leaked across event types")
	}
}

func TestEvent_Wait(t *testing.T) {
	ctx := context.Background()
	ev, _ := New("foc-01", TypeFocuser, NewLocalTransport())

	t.Run("times out while unset", func(t *testing.T) {
		set, err := ev.Wait(ctx, 20*time.Millisecond)
		if err != nil || set {
			t.Errorf("Wait() = %v, %v; want false, nil", set, err)
		}
	})

	t.Run("released by set", func(t *testing.T) {
		go func() {
			time.Sleep(10 * time.Millisecond)
			_ = ev.Set(ctx)
		}()
		set, err := ev.Wait(ctx, time.Second)
		if err != nil || !set {
			t.Errorf("Wait() = %v, %v; want true, nil", set, err)
		}
	})

	t.Run("returns immediately when already set", func(t *testing.T) {
		set, err := ev.Wait(ctx, 0)
		if err != nil || !set {
			t.Errorf("Wait() = %v, %v; want true, nil", set, err)
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		_ = ev.Clear(ctx)
		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		set, err := ev.Wait(cctx, 0)
		if set || !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Wait() = %v, %v; want false, DeadlineExceeded", set, err)
		}
	})
}
