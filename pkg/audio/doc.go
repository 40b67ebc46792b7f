// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format and float/int16 sample conversion functions
// Package audio provides fundamental PCM types shared by the console audio path.
//
// The device callback works in interleaved float32 samples in [-1, 1), while
// recordings and playback files are 16-bit PCM. This package holds the
// conversions between the two:
//   - Int16ToFloat / FloatToInt16 for the 16-bit container
//   - IntToFloat for importing files of other bit depths
//
// Example:
//
//	format := audio.Format{
//	    Codec:      "pcm",
//	    SampleRate: 48000,
//	    Channels:   2,
//	    BitDepth:   16,
//	}
//
//	s := audio.FloatToInt16(0.25)
package audio
