// ABOUTME: Tests for the float32 ring buffer
// ABOUTME: Covers wraparound, underrun zero-fill and direct fills
package ring

import (
	"errors"
	"io"
	"testing"
)

func TestWriteRead(t *testing.T) {
	b := New(8)

	if n := b.Write([]float32{1, 2, 3, 4, 5}); n != 5 {
		t.Fatalf("expected 5 written, got %d", n)
	}
	if b.Available() != 5 || b.Free() != 3 {
		t.Fatalf("expected 5 available / 3 free, got %d / %d", b.Available(), b.Free())
	}

	out := make([]float32, 3)
	if n := b.Read(out); n != 3 {
		t.Fatalf("expected 3 read, got %d", n)
	}
	if out[0] != 1 || out[2] != 3 {
		t.Errorf("unexpected samples %v", out)
	}

	// Wraps around the end of the backing slice
	if n := b.Write([]float32{6, 7, 8, 9, 10, 11, 12}); n != 6 {
		t.Fatalf("expected 6 written, got %d", n)
	}
	if b.Free() != 0 {
		t.Errorf("expected full buffer, got %d free", b.Free())
	}

	all := make([]float32, 8)
	if n := b.Read(all); n != 8 {
		t.Fatalf("expected 8 read, got %d", n)
	}
	for i, v := range all {
		if v != float32(i+4) {
			t.Errorf("index %d: expected %v, got %v", i, float32(i+4), v)
		}
	}
}

func TestReadUnderrunZeroFills(t *testing.T) {
	b := New(4)
	b.Write([]float32{0.5, 0.25})

	out := []float32{9, 9, 9, 9}
	if n := b.Read(out); n != 2 {
		t.Fatalf("expected 2 read, got %d", n)
	}
	if out[2] != 0 || out[3] != 0 {
		t.Errorf("expected zero-filled tail, got %v", out)
	}
	if b.Available() != 0 {
		t.Errorf("expected empty buffer, got %d", b.Available())
	}
}

func TestFillAppendsAfterRemainder(t *testing.T) {
	b := New(6)
	b.Write([]float32{1, 2, 3, 4})
	b.Read(make([]float32, 3))

	next := float32(100)
	n, err := b.Fill(func(dst []float32) (int, error) {
		for i := range dst {
			dst[i] = next
			next++
		}
		return len(dst), nil
	})
	if err != nil {
		t.Fatalf("Fill failed: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 filled, got %d", n)
	}

	out := make([]float32, 6)
	b.Read(out)
	expected := []float32{4, 100, 101, 102, 103, 104}
	for i := range expected {
		if out[i] != expected[i] {
			t.Errorf("index %d: expected %v, got %v", i, expected[i], out[i])
		}
	}
}

func TestFillStopsOnShortRead(t *testing.T) {
	b := New(16)
	calls := 0
	n, err := b.Fill(func(dst []float32) (int, error) {
		calls++
		return 3, io.EOF
	})
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	if n != 3 || calls != 1 {
		t.Errorf("expected 3 samples in 1 call, got %d in %d", n, calls)
	}
	if b.Available() != 3 {
		t.Errorf("expected 3 available, got %d", b.Available())
	}
}

func TestReset(t *testing.T) {
	b := New(4)
	b.Write([]float32{1, 2, 3})
	b.Reset()

	if b.Available() != 0 || b.Free() != b.Cap() {
		t.Errorf("expected empty buffer after reset, got %d available", b.Available())
	}
}
