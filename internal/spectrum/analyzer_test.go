// ABOUTME: Tests for the I/Q spectrum analyzer
// ABOUTME: Checks datagram validation, windowing cadence and FFT bin placement
package spectrum

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"
)

// encodePairs packs (I,Q) pairs as little-endian float32
func encodePairs(pairs [][2]float32) []byte {
	b := make([]byte, len(pairs)*8)
	for k, p := range pairs {
		binary.LittleEndian.PutUint32(b[k*8:], math.Float32bits(p[0]))
		binary.LittleEndian.PutUint32(b[k*8+4:], math.Float32bits(p[1]))
	}
	return b
}

// tone returns n pairs of a complex exponential at cycles per sample
func tone(n int, cycles float64) [][2]float32 {
	pairs := make([][2]float32, n)
	for k := range pairs {
		phase := 2 * math.Pi * cycles * float64(k)
		pairs[k] = [2]float32{float32(math.Cos(phase)), float32(math.Sin(phase))}
	}
	return pairs
}

func newAnalyzer(t *testing.T, cfg Config) *Analyzer {
	t.Helper()
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return a
}

func TestNewRejectsSize(t *testing.T) {
	for _, size := range []int{1, 1000, -8, 2 * MaxSize} {
		if _, err := New(Config{Size: size}); err == nil {
			t.Errorf("expected error for size %d", size)
		}
	}

	if _, err := New(Config{Size: MaxSize}); err != nil {
		t.Errorf("expected size %d to be accepted, got %v", MaxSize, err)
	}
}

func TestMalformedDatagramLeavesWindow(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"empty", 0},
		{"half pair", 4},
		{"ragged", 12},
		{"one byte", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAnalyzer(t, Config{})
			if err := a.Ingest(encodePairs(tone(3, 0))); err != nil {
				t.Fatalf("Ingest failed: %v", err)
			}

			err := a.Ingest(make([]byte, tt.size))
			if !errors.Is(err, ErrMalformedDatagram) {
				t.Fatalf("expected ErrMalformedDatagram, got %v", err)
			}

			st := a.Stats()
			if st.Pending != 3 {
				t.Errorf("expected 3 pending pairs, got %d", st.Pending)
			}
			if st.Dropped != 1 || st.Accepted != 1 {
				t.Errorf("expected 1 accepted and 1 dropped, got %d and %d", st.Accepted, st.Dropped)
			}
		})
	}
}

func TestDropLogRateLimited(t *testing.T) {
	a := newAnalyzer(t, Config{})
	start := time.Unix(1_700_000_000, 0)
	clock := start
	a.now = func() time.Time { return clock }

	steps := []struct {
		at   time.Duration
		want bool
	}{
		{0, true},
		{time.Second, false},
		{dropLogInterval - time.Millisecond, false},
		{dropLogInterval, true},
		{dropLogInterval + time.Second, false},
		{3 * dropLogInterval, true},
	}

	for _, s := range steps {
		clock = start.Add(s.at)
		if got := a.shouldLogDrop(); got != s.want {
			t.Errorf("at %v: expected %t, got %t", s.at, s.want, got)
		}
	}
}

func TestNoFrameBeforeFullWindow(t *testing.T) {
	a := newAnalyzer(t, Config{Size: 64})
	if err := a.Ingest(encodePairs(tone(63, 0))); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if a.Latest() != nil {
		t.Fatal("expected no frame with fewer than 64 pairs")
	}

	if err := a.Ingest(encodePairs(tone(1, 0))); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if a.Latest() == nil {
		t.Fatal("expected a frame once 64 pairs arrived")
	}
	if a.Stats().Pending != 0 {
		t.Errorf("expected window consumed, got %d pending", a.Stats().Pending)
	}
}

func TestWindowsDoNotOverlap(t *testing.T) {
	a := newAnalyzer(t, Config{Size: 64})
	if err := a.Ingest(encodePairs(tone(64*3+10, 0.25))); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	st := a.Stats()
	if st.Frames != 3 {
		t.Errorf("expected 3 frames, got %d", st.Frames)
	}
	if st.Pending != 10 {
		t.Errorf("expected 10 pending pairs, got %d", st.Pending)
	}
}

func TestLargeDatagramIsFullyAnalyzed(t *testing.T) {
	a := newAnalyzer(t, Config{Size: 16})
	// Larger than the window storage
	n := windowBlocks*16*3 + 5
	if err := a.Ingest(encodePairs(tone(n, 0))); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	st := a.Stats()
	if st.Frames != uint64(n/16) {
		t.Errorf("expected %d frames, got %d", n/16, st.Frames)
	}
	if st.Pending != n%16 {
		t.Errorf("expected %d pending pairs, got %d", n%16, st.Pending)
	}
}

func TestToneAtEighthRate(t *testing.T) {
	a := newAnalyzer(t, Config{CenterHz: 7_074_000, BandwidthHz: 48000})
	if err := a.Ingest(encodePairs(tone(DefaultSize, 1.0/8))); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	frame := a.Latest()
	if frame == nil {
		t.Fatal("expected a frame")
	}

	idx, _ := frame.Peak()
	if want := DefaultSize/2 + 128; idx != want {
		t.Errorf("expected peak at bin %d, got %d", want, idx)
	}
	if frame.CenterHz != 7_074_000 || frame.BandwidthHz != 48000 {
		t.Errorf("unexpected frame metadata %d Hz / %d Hz", frame.CenterHz, frame.BandwidthHz)
	}
	if frame.BinWidthHz != 48000.0/DefaultSize {
		t.Errorf("expected bin width %v, got %v", 48000.0/DefaultSize, frame.BinWidthHz)
	}
}

func TestDCAtCenterBin(t *testing.T) {
	a := newAnalyzer(t, Config{Size: 256})
	if err := a.Ingest(encodePairs(tone(256, 0))); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	idx, _ := a.Latest().Peak()
	if idx != 128 {
		t.Errorf("expected DC at bin 128, got %d", idx)
	}
}

func TestAllZeroWindow(t *testing.T) {
	a := newAnalyzer(t, Config{})
	if err := a.Ingest(make([]byte, DefaultSize*8)); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	frame := a.Latest()
	if frame == nil {
		t.Fatal("expected a frame")
	}
	if len(frame.Bins) != DefaultSize {
		t.Fatalf("expected %d bins, got %d", DefaultSize, len(frame.Bins))
	}
	for i, v := range frame.Bins {
		if v != -200 {
			t.Fatalf("bin %d: expected -200 dB, got %v", i, v)
		}
	}
}

func TestGainScalesLevel(t *testing.T) {
	unity := newAnalyzer(t, Config{Size: 64})
	boosted := newAnalyzer(t, Config{Size: 64, Gain: 10})

	data := encodePairs(tone(64, 0))
	unity.Ingest(data)
	boosted.Ingest(data)

	_, a := unity.Latest().Peak()
	_, b := boosted.Latest().Peak()
	if diff := b - a; math.Abs(float64(diff)-20) > 0.01 {
		t.Errorf("expected +20 dB with gain 10, got %+.3f dB", diff)
	}

	if err := unity.SetGain(0); err == nil {
		t.Error("expected error for zero gain")
	}
}

func TestSubscribeLatestWins(t *testing.T) {
	a := newAnalyzer(t, Config{Size: 16})
	ch, cancel := a.Subscribe()
	defer cancel()

	if err := a.Ingest(encodePairs(tone(16*4, 0))); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	select {
	case <-ch:
	default:
		t.Fatal("expected a notification")
	}
	select {
	case <-ch:
		t.Fatal("expected notifications to coalesce")
	default:
	}
	if a.Latest().Seq != 4 {
		t.Errorf("expected latest frame 4, got %d", a.Latest().Seq)
	}

	cancel()
	a.Ingest(encodePairs(tone(16, 0)))
	select {
	case <-ch:
		t.Fatal("expected no notification after cancel")
	default:
	}
}
