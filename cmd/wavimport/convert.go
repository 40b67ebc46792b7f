// ABOUTME: Decode, remix and resample pipeline for the import tool
// ABOUTME: Streams decoder output into a 16-bit WAV writer in fixed chunks
package main

import (
	"fmt"
	"io"

	"github.com/harperreed/sdrconsole/pkg/audio/decode"
	"github.com/harperreed/sdrconsole/pkg/audio/resample"
)

// chunkFrames is the decode block size in frames
const chunkFrames = 4096

// sampleWriter is the part of wav.Writer the pipeline needs
type sampleWriter interface {
	WriteSamples(src []float32) error
}

// convert copies dec into w at channels/sampleRate and returns frames written
func convert(dec decode.Decoder, w sampleWriter, channels, sampleRate int) (int64, error) {
	src := dec.Format()
	if src.Channels <= 0 || src.SampleRate <= 0 {
		return 0, fmt.Errorf("decoder reported invalid format %s", src)
	}

	var rs *resample.Resampler
	if src.SampleRate != sampleRate {
		rs = resample.New(src.SampleRate, sampleRate, channels)
	}

	in := make([]float32, chunkFrames*src.Channels)
	var mixed, out []float32
	var frames int64

	for {
		n, err := dec.Read(in)
		if n > 0 {
			// Decoders may return a partial frame at a block edge
			n -= n % src.Channels
			mixed = remix(in[:n], src.Channels, channels, mixed[:0])
			block := mixed
			if rs != nil {
				out = rs.Process(mixed, out[:0])
				block = out
			}
			if len(block) > 0 {
				if werr := w.WriteSamples(block); werr != nil {
					return frames, werr
				}
				frames += int64(len(block) / channels)
			}
		}
		if err == io.EOF {
			return frames, nil
		}
		if err != nil {
			return frames, fmt.Errorf("decode failed: %w", err)
		}
	}
}

// remix maps interleaved inCh audio to outCh channels. Stereo to mono
// averages; mono to stereo duplicates; extra source channels are dropped.
func remix(in []float32, inCh, outCh int, out []float32) []float32 {
	frames := len(in) / inCh
	for f := 0; f < frames; f++ {
		frame := in[f*inCh : (f+1)*inCh]
		switch {
		case outCh == 1 && inCh >= 2:
			out = append(out, (frame[0]+frame[1])/2)
		case outCh == 1:
			out = append(out, frame[0])
		case inCh == 1:
			out = append(out, frame[0], frame[0])
		default:
			out = append(out, frame[0], frame[1])
		}
	}
	return out
}
