// ABOUTME: Tests for radio state and setters
// ABOUTME: Verifies range checks, rejection behavior and observer notification
package radio

import (
	"errors"
	"math"
	"testing"
)

func TestDefaults(t *testing.T) {
	st := New().State()

	if st.Frequency != 7_000_000 {
		t.Errorf("expected 7000000 Hz, got %d", st.Frequency)
	}
	if st.Mode != USB {
		t.Errorf("expected USB, got %s", st.Mode)
	}
	if st.Bandwidth != 3000 {
		t.Errorf("expected bandwidth 3000, got %d", st.Bandwidth)
	}
	if st.SampleRate != 48000 {
		t.Errorf("expected sample rate 48000, got %d", st.SampleRate)
	}
	if st.PreampGain() != 1 {
		t.Errorf("expected unity preamp, got %f", st.PreampGain())
	}
}

func TestSetFrequency(t *testing.T) {
	tests := []struct {
		name    string
		hz      int64
		wantErr bool
	}{
		{"lower edge", 100_000, false},
		{"upper edge", 30_000_000, false},
		{"20m", 14_074_000, false},
		{"too low", 99_999, true},
		{"too high", 30_000_001, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			err := r.SetFrequency(tt.hz)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidParameter) {
					t.Fatalf("expected ErrInvalidParameter, got %v", err)
				}
				if r.State().Frequency != DefaultFrequency {
					t.Errorf("expected frequency unchanged, got %d", r.State().Frequency)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.State().Frequency != tt.hz {
				t.Errorf("expected %d, got %d", tt.hz, r.State().Frequency)
			}
		})
	}
}

func TestSetFrequencyFollowsVFO(t *testing.T) {
	r := New()
	if err := r.SetVFO(VFOB); err != nil {
		t.Fatalf("SetVFO failed: %v", err)
	}
	if err := r.SetFrequency(3_573_000); err != nil {
		t.Fatalf("SetFrequency failed: %v", err)
	}

	st := r.State()
	if st.FrequencyB != 3_573_000 || st.Frequency != DefaultFrequency {
		t.Errorf("expected only VFO B tuned, got A=%d B=%d", st.Frequency, st.FrequencyB)
	}
}

func TestSetFrequencyAIgnoresVFO(t *testing.T) {
	r := New()
	if err := r.SetVFO(VFOB); err != nil {
		t.Fatalf("SetVFO failed: %v", err)
	}
	if err := r.SetFrequencyA(14_074_000); err != nil {
		t.Fatalf("SetFrequencyA failed: %v", err)
	}

	st := r.State()
	if st.Frequency != 14_074_000 || st.FrequencyB != DefaultFrequency {
		t.Errorf("expected only VFO A tuned, got A=%d B=%d", st.Frequency, st.FrequencyB)
	}
	if st.ActiveFrequency() != DefaultFrequency {
		t.Errorf("expected active frequency %d, got %d", DefaultFrequency, st.ActiveFrequency())
	}

	if err := r.SetFrequencyA(1); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestActiveFrequency(t *testing.T) {
	tests := []struct {
		vfo      VFO
		expected int64
	}{
		{VFOA, 7_000_000},
		{VFOB, 14_074_000},
		{Split, 7_000_000},
	}

	for _, tt := range tests {
		t.Run(tt.vfo.String(), func(t *testing.T) {
			st := State{Frequency: 7_000_000, FrequencyB: 14_074_000, VFO: tt.vfo}
			if got := st.ActiveFrequency(); got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestStep(t *testing.T) {
	r := New()
	if err := r.SetStepSize(500); err != nil {
		t.Fatalf("SetStepSize failed: %v", err)
	}
	if err := r.Step(-2); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if r.State().Frequency != 6_999_000 {
		t.Errorf("expected 6999000, got %d", r.State().Frequency)
	}
}

func TestSetBandwidth(t *testing.T) {
	r := New()

	if err := r.SetBandwidth(99); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter for 99 Hz, got %v", err)
	}
	if err := r.SetBandwidth(10_001); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter for 10001 Hz, got %v", err)
	}
	if err := r.SetBandwidth(2400); err != nil {
		t.Fatalf("SetBandwidth failed: %v", err)
	}

	st := r.State()
	if st.Bandwidth != 2400 || st.FilterHigh-st.FilterLow != 2400 {
		t.Errorf("expected 2400 Hz passband, got %d (%d..%d)", st.Bandwidth, st.FilterLow, st.FilterHigh)
	}
}

func TestSetFilter(t *testing.T) {
	tests := []struct {
		name      string
		low, high int
		wantErr   bool
	}{
		{"usb", 100, 2800, false},
		{"lsb", -2800, -100, false},
		{"am", -5000, 5000, false},
		{"inverted", 2800, 100, true},
		{"equal", 500, 500, true},
		{"low out of range", -10_001, 0, true},
		{"high out of range", 0, 10_001, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			before := r.State()
			err := r.SetFilter(tt.low, tt.high)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidParameter) {
					t.Fatalf("expected ErrInvalidParameter, got %v", err)
				}
				if r.State() != before {
					t.Errorf("expected state unchanged")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.State().Bandwidth != tt.high-tt.low {
				t.Errorf("expected bandwidth %d, got %d", tt.high-tt.low, r.State().Bandwidth)
			}
		})
	}
}

func TestSetSampleRate(t *testing.T) {
	r := New()
	if err := r.SetSampleRate(96000); err != nil {
		t.Fatalf("SetSampleRate failed: %v", err)
	}
	if err := r.SetSampleRate(44100); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter for 44100, got %v", err)
	}
	if r.State().SampleRate != 96000 {
		t.Errorf("expected 96000, got %d", r.State().SampleRate)
	}
}

func TestPreamp(t *testing.T) {
	r := New()
	if err := r.SetPreampDB(20); err != nil {
		t.Fatalf("SetPreampDB failed: %v", err)
	}
	if g := r.State().PreampGain(); math.Abs(float64(g)-10) > 1e-5 {
		t.Errorf("expected gain 10, got %f", g)
	}

	for _, db := range []float64{-70.5, 71, math.NaN()} {
		if err := r.SetPreampDB(db); !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("expected ErrInvalidParameter for %v dB, got %v", db, err)
		}
	}
	if r.State().PreampDB != 20 {
		t.Errorf("expected preamp unchanged at 20 dB, got %f", r.State().PreampDB)
	}
}

func TestObservers(t *testing.T) {
	r := New()
	var got []State
	r.Subscribe(func(s State) { got = append(got, s) })

	r.SetMode(CW)
	r.SetMode(Mode(42))
	r.SetFrequency(1)

	if len(got) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(got))
	}
	if got[0].Mode != CW {
		t.Errorf("expected CW, got %s", got[0].Mode)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input    string
		expected Mode
		wantErr  bool
	}{
		{"LSB", LSB, false},
		{"usb", USB, false},
		{"1", LSB, false},
		{"2", USB, false},
		{"3", AM, false},
		{"6", CW, false},
		{"FM", 0, true},
		{"4", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			m, err := ParseMode(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidParameter) {
					t.Fatalf("expected ErrInvalidParameter, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if m != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, m)
			}
			if m.Digit() == "" {
				t.Errorf("expected a CAT digit for %s", m)
			}
		})
	}
}

func TestValidRecordFormat(t *testing.T) {
	if err := ValidRecordFormat(2, 48000); err != nil {
		t.Errorf("expected stereo 48k to be valid, got %v", err)
	}
	if err := ValidRecordFormat(1, 8000); err != nil {
		t.Errorf("expected mono 8k to be valid, got %v", err)
	}
	if err := ValidRecordFormat(3, 48000); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter for 3 channels, got %v", err)
	}
	if err := ValidRecordFormat(2, 50000); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter for 50000 Hz, got %v", err)
	}
}
