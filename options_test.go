package babz

import (
	"errors"
	"testing"

	"github.com/zoobzio/clockz"
)

func TestNewOptionsDefaults(t *testing.T) {
	o := NewOptions()
	if o.Threads == 0 {
		t.Fatal("default Threads should be >= 1")
	}
	if o.CD != 8 {
		t.Fatalf("expected default CD=8, got %d", o.CD)
	}
	if o.AD != 32 {
		t.Fatalf("expected default AD=32, got %d", o.AD)
	}
	if o.Clock == nil {
		t.Fatal("default Clock should not be nil")
	}
}

func TestOptionsFluentSetters(t *testing.T) {
	stop := func(*Stats, int) bool { return false }
	fake := clockz.NewFakeClock()

	o := NewOptions().
		WithThreads(4).
		WithCopyingDistance(2).
		WithAdaptiveDistance(16).
		WithStop(stop).
		WithClock(fake)

	if o.Threads != 4 {
		t.Errorf("expected Threads=4, got %d", o.Threads)
	}
	if o.CD != 2 {
		t.Errorf("expected CD=2, got %d", o.CD)
	}
	if o.AD != 16 {
		t.Errorf("expected AD=16, got %d", o.AD)
	}
	if o.Stop == nil {
		t.Error("expected Stop to be set")
	}
	if o.getClock() != fake {
		t.Error("expected getClock to return the configured fake clock")
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr error
	}{
		{"zero threads", func(o *Options) { o.Threads = 0 }, ErrInvalidThreads},
		{"zero CD", func(o *Options) { o.CD = 0 }, ErrInvalidCopyingDistance},
		{"zero AD", func(o *Options) { o.AD = 0 }, ErrInvalidAdaptiveDistance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOptions()
			tt.mutate(o)
			err := o.validate()
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected errors.Is(%v, %v) to hold", err, tt.wantErr)
			}
		})
	}

	if err := NewOptions().validate(); err != nil {
		t.Fatalf("default options should validate cleanly, got %v", err)
	}
}

func TestOptionsGetClockNilSafe(t *testing.T) {
	o := &Options{}
	if o.getClock() != clockz.RealClock {
		t.Fatal("getClock should fall back to clockz.RealClock when unset")
	}
}
