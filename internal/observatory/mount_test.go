package observatory

import (
	"context"
	"errors"
	"testing"
	"time"
)

type mockDriver struct {
	homeDelay time.Duration
	homeErr   error
	parkDelay time.Duration
	parkErr   error
	calls     []string
}

func (d *mockDriver) wait(ctx context.Context, delay time.Duration) error {
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *mockDriver) Unpark(context.Context) error { d.calls = append(d.calls, "unpark"); return nil }
func (d *mockDriver) Home(ctx context.Context) error {
	d.calls = append(d.calls, "home")
	if err := d.wait(ctx, d.homeDelay); err != nil {
		return err
	}
	return d.homeErr
}
func (d *mockDriver) Park(ctx context.Context) error {
	d.calls = append(d.calls, "park")
	if err := d.wait(ctx, d.parkDelay); err != nil {
		return err
	}
	return d.parkErr
}
func (d *mockDriver) SlewTo(context.Context, float64, float64) error { return nil }
func (d *mockDriver) Offset(context.Context, float64, float64) error { return nil }
func (d *mockDriver) IsParked() bool                                 { return false }

func TestHomeAndPark(t *testing.T) {
	hardware := errors.New("encoder fault")

	tests := []struct {
		name      string
		driver    *mockDriver
		wantErr   error
		wantCalls int
	}{
		{"success", &mockDriver{}, nil, 2},
		{"home timeout", &mockDriver{homeDelay: time.Second}, ErrMountTimeout, 1},
		{"park timeout", &mockDriver{parkDelay: time.Second}, ErrMountTimeout, 2},
		{"home fault", &mockDriver{homeErr: hardware}, hardware, 1},
		{"park reports timeout", &mockDriver{parkErr: ErrMountTimeout}, ErrMountTimeout, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewHuntsmanMount(tt.driver)
			err := m.HomeAndPark(context.Background(), 20*time.Millisecond, 20*time.Millisecond)

			if tt.wantErr == nil && err != nil {
				t.Fatalf("HomeAndPark() unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("HomeAndPark() error = %v, want %v", err, tt.wantErr)
			}
			if len(tt.driver.calls) != tt.wantCalls {
				t.Errorf("calls = %v, want %d", tt.driver.calls, tt.wantCalls)
			}
		})
	}
}

func TestHomeAndPark_FaultIsNotTimeout(t *testing.T) {
	m := NewHuntsmanMount(&mockDriver{homeErr: errors.New("encoder fault")})
	err := m.HomeAndPark(context.Background(), time.Second, time.Second)
	if errors.Is(err, ErrMountTimeout) {
		t.Errorf("driver fault reported as timeout: %v", err)
	}
}

func TestHomeAndPark_ParentCancelIsNotTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	m := NewHuntsmanMount(&mockDriver{homeDelay: time.Second})
	err := m.HomeAndPark(ctx, time.Minute, time.Minute)
	if errors.Is(err, ErrMountTimeout) {
		t.Errorf("parent deadline reported as mount timeout: %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want DeadlineExceeded", err)
	}
}
