// ABOUTME: Canonical 44-byte RIFF/WAVE header encoding and format checks
// ABOUTME: Defines the typed rejection errors shared by the reader and writer
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// HeaderSize is the size of the canonical PCM header
	HeaderSize = 44

	// FormatPCM is the WAVE format tag for integer PCM
	FormatPCM = 1
)

var (
	ErrFileNotFound      = errors.New("file not found")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrHeaderInvalid     = errors.New("header invalid")
	ErrFileCreateFailed  = errors.New("file create failed")
)

// Header is the subset of the RIFF/WAVE header the console reads and writes
type Header struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
	DataSize      uint32
}

// NewHeader returns a 16-bit PCM header with an empty payload
func NewHeader(channels, sampleRate int) Header {
	return Header{
		AudioFormat:   FormatPCM,
		Channels:      uint16(channels),
		SampleRate:    uint32(sampleRate),
		BitsPerSample: 16,
	}
}

// BlockAlign returns bytes per interleaved frame
func (h Header) BlockAlign() uint16 {
	return h.Channels * h.BitsPerSample / 8
}

// ByteRate returns payload bytes per second
func (h Header) ByteRate() uint32 {
	return h.SampleRate * uint32(h.BlockAlign())
}

// Frames returns the number of whole frames in the payload
func (h Header) Frames() int {
	if h.BlockAlign() == 0 {
		return 0
	}
	return int(h.DataSize / uint32(h.BlockAlign()))
}

// MarshalTo writes the header into b, which must hold HeaderSize bytes
func (h Header) MarshalTo(b []byte) {
	le := binary.LittleEndian

	copy(b[0:4], "RIFF")
	le.PutUint32(b[4:8], 36+h.DataSize)
	copy(b[8:12], "WAVE")
	copy(b[12:16], "fmt ")
	le.PutUint32(b[16:20], 16)
	le.PutUint16(b[20:22], h.AudioFormat)
	le.PutUint16(b[22:24], h.Channels)
	le.PutUint32(b[24:28], h.SampleRate)
	le.PutUint32(b[28:32], h.ByteRate())
	le.PutUint16(b[32:34], h.BlockAlign())
	le.PutUint16(b[34:36], h.BitsPerSample)
	copy(b[36:40], "data")
	le.PutUint32(b[40:44], h.DataSize)
}

// Marshal returns the encoded header
func (h Header) Marshal() []byte {
	b := make([]byte, HeaderSize)
	h.MarshalTo(b)
	return b
}

// Validate checks the header against what the playback path can mix
func (h Header) Validate(sampleRate int) error {
	if h.AudioFormat != FormatPCM {
		return fmt.Errorf("%w: format tag %d (need PCM)", ErrUnsupportedFormat, h.AudioFormat)
	}
	if h.BitsPerSample != 16 {
		return fmt.Errorf("%w: %d-bit samples (need 16-bit)", ErrUnsupportedFormat, h.BitsPerSample)
	}
	if int(h.SampleRate) != sampleRate {
		return fmt.Errorf("%w: %d Hz (need %d Hz)", ErrUnsupportedFormat, h.SampleRate, sampleRate)
	}
	if h.Channels != 1 && h.Channels != 2 {
		return fmt.Errorf("%w: %d channels (need mono or stereo)", ErrUnsupportedFormat, h.Channels)
	}
	return nil
}
