// ABOUTME: Tests for the binary spectrum message layout
// ABOUTME: Checks header fields and rejection of truncated messages
package protocol

import (
	"testing"
)

func TestSpectrumLayout(t *testing.T) {
	msg := EncodeSpectrum(42, 7_074_000, 48000, []float32{-200, -3.5, 0})

	if len(msg) != spectrumHeaderSize+12 {
		t.Fatalf("expected %d bytes, got %d", spectrumHeaderSize+12, len(msg))
	}
	if msg[0] != SpectrumMessageType {
		t.Errorf("expected type %d, got %d", SpectrumMessageType, msg[0])
	}

	f, err := DecodeSpectrum(msg)
	if err != nil {
		t.Fatalf("DecodeSpectrum failed: %v", err)
	}
	if f.Seq != 42 || f.CenterHz != 7_074_000 || f.BandwidthHz != 48000 {
		t.Errorf("unexpected header %+v", f)
	}
	if len(f.Bins) != 3 || f.Bins[0] != -200 || f.Bins[1] != -3.5 {
		t.Errorf("unexpected bins %v", f.Bins)
	}
}

func TestDecodeSpectrumRejects(t *testing.T) {
	good := EncodeSpectrum(1, 1, 1, []float32{1, 2})

	tests := []struct {
		name string
		msg  []byte
	}{
		{"empty", nil},
		{"short header", good[:10]},
		{"truncated bins", good[:len(good)-1]},
		{"wrong type", append([]byte{1}, good[1:]...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeSpectrum(tt.msg); err == nil {
				t.Error("expected error")
			}
		})
	}
}
