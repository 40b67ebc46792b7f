// ABOUTME: Audio decoder package for importing files into the console
// ABOUTME: Provides the Decoder interface and WAV, MP3, FLAC and raw PCM decoders
// Package decode provides audio file decoders.
//
// Supports: WAV (8/16/24/32-bit PCM), MP3, FLAC and headerless PCM
// (16-bit and 24-bit little-endian).
//
// All decoders implement the Decoder interface and produce interleaved
// float32 samples, which the importer resamples and writes as 16-bit WAV.
//
// Example:
//
//	dec, err := decode.Open("track.flac")
//	samples, err := decode.ReadAll(dec)
package decode
