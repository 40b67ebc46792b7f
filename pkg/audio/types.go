// ABOUTME: Audio type definitions
// ABOUTME: Defines PCM formats and float32/int16 sample conversions
package audio

import "fmt"

const (
	// Full-scale divisor for 16-bit PCM
	Int16Scale = 32768.0

	// Fixed stream parameters of the console audio path
	StreamSampleRate = 48000
	StreamChannels   = 2
	StreamBitDepth   = 16
)

// Format describes a PCM stream or file format
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// FrameSize returns bytes per interleaved frame
func (f Format) FrameSize() int {
	return f.Channels * f.BitDepth / 8
}

// ByteRate returns bytes per second
func (f Format) ByteRate() int {
	return f.SampleRate * f.FrameSize()
}

func (f Format) String() string {
	return fmt.Sprintf("%s %dHz %dch %d-bit", f.Codec, f.SampleRate, f.Channels, f.BitDepth)
}

// Int16ToFloat converts a 16-bit sample to [-1, 1)
func Int16ToFloat(sample int16) float32 {
	return float32(sample) / Int16Scale
}

// FloatToInt16 converts a float sample to 16-bit with clipping
func FloatToInt16(sample float32) int16 {
	scaled := float64(sample) * Int16Scale
	if scaled >= 32767 {
		return 32767
	}
	if scaled <= -32768 {
		return -32768
	}
	if scaled >= 0 {
		return int16(scaled + 0.5)
	}
	return int16(scaled - 0.5)
}

// IntToFloat converts a signed integer sample of the given bit depth to float
func IntToFloat(sample int, bitDepth int) float32 {
	switch bitDepth {
	case 8:
		// 8-bit WAV is unsigned
		return float32(sample-128) / 128.0
	case 16:
		return float32(sample) / Int16Scale
	case 24:
		return float32(sample) / 8388608.0
	case 32:
		return float32(float64(sample) / 2147483648.0)
	default:
		shift := bitDepth - 1
		if shift <= 0 {
			return 0
		}
		return float32(float64(sample) / float64(int64(1)<<uint(shift)))
	}
}
