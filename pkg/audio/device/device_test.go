// ABOUTME: Device interface tests
// ABOUTME: Verifies backend selection, stop gating and the null device clock
package device

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestBackendsImplementDevice(t *testing.T) {
	var _ Device = (*Null)(nil)
	var _ Device = (*Malgo)(nil)
	var _ Device = (*PortAudio)(nil)
	var _ Device = (*Oto)(nil)
}

func TestNew(t *testing.T) {
	tests := []struct {
		backend string
		wantErr bool
	}{
		{"null", false},
		{"malgo", false},
		{"portaudio", false},
		{"oto", false},
		{"", false},
		{"jack", true},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			dev, err := New(tt.backend)
			if tt.wantErr {
				if !errors.Is(err, ErrDeviceUnavailable) {
					t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
				}
				return
			}
			if err != nil || dev == nil {
				t.Fatalf("expected device, got %v", err)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	good := Config{SampleRate: 48000, PeriodFrames: 256, InputChannels: 2, OutputChannels: 2}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	bad := []Config{
		{SampleRate: 0, PeriodFrames: 256, OutputChannels: 2},
		{SampleRate: 48000, PeriodFrames: 0, OutputChannels: 2},
		{SampleRate: 48000, PeriodFrames: 256, OutputChannels: 0},
	}
	for i, cfg := range bad {
		if err := cfg.Validate(); !errors.Is(err, ErrStreamOpenFailed) {
			t.Errorf("config %d: expected ErrStreamOpenFailed, got %v", i, err)
		}
	}
}

func TestGateStopsAfterStopStatus(t *testing.T) {
	calls := 0
	g := newGate(func(in, out []float32) Status {
		calls++
		for i := range out {
			out[i] = 1
		}
		if calls == 2 {
			return Stop
		}
		return Continue
	})

	out := make([]float32, 4)
	g.run(nil, out)
	g.run(nil, out)

	select {
	case <-g.done:
	default:
		t.Fatal("expected done to be closed after Stop")
	}

	g.run(nil, out)
	if calls != 2 {
		t.Errorf("expected process not called after Stop, got %d calls", calls)
	}
	for i, v := range out {
		if v != 0 {
			t.Errorf("sample %d: expected silence after Stop, got %v", i, v)
		}
	}
}

func TestNullTick(t *testing.T) {
	n := NewNull()
	n.Source = func(in []float32) {
		for i := range in {
			in[i] = 0.25
		}
	}

	var seen float32
	err := n.Open(Config{SampleRate: 48000, PeriodFrames: 8, InputChannels: 2, OutputChannels: 2}, func(in, out []float32) Status {
		seen = in[0]
		copy(out, in)
		return Continue
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	n.Tick()
	if seen != 0.25 {
		t.Errorf("expected input 0.25, got %v", seen)
	}
	if len(n.Output()) != 16 || n.Output()[15] != 0.25 {
		t.Errorf("unexpected output %v", n.Output())
	}
}

func TestNullClockRuns(t *testing.T) {
	n := NewNull()
	var periods atomic.Int32
	err := n.Open(Config{SampleRate: 48000, PeriodFrames: 48, OutputChannels: 2}, func(in, out []float32) Status {
		if periods.Add(1) >= 3 {
			return Stop
		}
		return Continue
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := n.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer n.Close()

	select {
	case <-n.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stop status")
	}
	if periods.Load() < 3 {
		t.Errorf("expected at least 3 periods, got %d", periods.Load())
	}
}

func TestNullOpenTwice(t *testing.T) {
	n := NewNull()
	cfg := Config{SampleRate: 48000, PeriodFrames: 8, OutputChannels: 2}
	process := func(in, out []float32) Status { return Continue }

	if err := n.Open(cfg, process); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := n.Open(cfg, process); !errors.Is(err, ErrStreamOpenFailed) {
		t.Fatalf("expected ErrStreamOpenFailed, got %v", err)
	}
}
