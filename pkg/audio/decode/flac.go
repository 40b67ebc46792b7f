// ABOUTME: FLAC audio decoder
// ABOUTME: Decodes FLAC files frame by frame via mewkiz/flac
package decode

import (
	"fmt"
	"io"

	"github.com/harperreed/sdrconsole/pkg/audio"
	"github.com/mewkiz/flac"
)

// FLACDecoder decodes FLAC audio
type FLACDecoder struct {
	stream  *flac.Stream
	format  audio.Format
	pending []float32
}

// OpenFLAC opens a FLAC file for decoding
func OpenFLAC(path string) (*FLACDecoder, error) {
	stream, err := flac.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open flac stream: %w", err)
	}
	return newFLAC(stream), nil
}

// NewFLAC decodes a FLAC stream from r
func NewFLAC(r io.Reader) (*FLACDecoder, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open flac stream: %w", err)
	}
	return newFLAC(stream), nil
}

func newFLAC(stream *flac.Stream) *FLACDecoder {
	return &FLACDecoder{
		stream: stream,
		format: audio.Format{
			Codec:      "flac",
			SampleRate: int(stream.Info.SampleRate),
			Channels:   int(stream.Info.NChannels),
			BitDepth:   int(stream.Info.BitsPerSample),
		},
	}
}

func (d *FLACDecoder) Format() audio.Format {
	return d.format
}

// Read interleaves decoded subframes into dst
func (d *FLACDecoder) Read(dst []float32) (int, error) {
	for len(d.pending) == 0 {
		frame, err := d.stream.ParseNext()
		if err == io.EOF {
			return 0, io.EOF
		}
		if err != nil {
			return 0, fmt.Errorf("flac decode error: %w", err)
		}

		bps := int(frame.BitsPerSample)
		if bps == 0 {
			bps = d.format.BitDepth
		}
		scale := float32(int64(1) << uint(bps-1))

		channels := len(frame.Subframes)
		blockSize := int(frame.BlockSize)
		d.pending = d.pending[:0]
		for i := 0; i < blockSize; i++ {
			for ch := 0; ch < channels; ch++ {
				// FLAC samples are signed at every bit depth
				d.pending = append(d.pending, float32(frame.Subframes[ch].Samples[i])/scale)
			}
		}
	}

	n := copy(dst, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}

// Close releases decoder resources
func (d *FLACDecoder) Close() error {
	return d.stream.Close()
}
