// ABOUTME: WAV file decoder backed by go-audio/wav
// ABOUTME: Accepts integer PCM of any bit depth go-audio understands
package decode

import (
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
	"github.com/harperreed/sdrconsole/pkg/audio"
)

// wavFormatPCM is the WAVE_FORMAT_PCM tag
const wavFormatPCM = 1

// WAVDecoder decodes a WAV file
type WAVDecoder struct {
	f      *os.File
	dec    *gowav.Decoder
	buf    *goaudio.IntBuffer
	format audio.Format
}

// OpenWAV opens a WAV file for decoding
func OpenWAV(path string) (*WAVDecoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	dec := gowav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("%s is not a valid wav file", path)
	}
	if dec.WavAudioFormat != wavFormatPCM {
		f.Close()
		return nil, fmt.Errorf("%w: wav format tag %d", ErrUnsupportedCodec, dec.WavAudioFormat)
	}

	format := audio.Format{
		Codec:      "wav",
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}
	return &WAVDecoder{
		f:   f,
		dec: dec,
		buf: &goaudio.IntBuffer{
			Format:         dec.Format(),
			SourceBitDepth: format.BitDepth,
		},
		format: format,
	}, nil
}

func (d *WAVDecoder) Format() audio.Format {
	return d.format
}

// Read converts the next block of integer samples to float
func (d *WAVDecoder) Read(dst []float32) (int, error) {
	if cap(d.buf.Data) < len(dst) {
		d.buf.Data = make([]int, len(dst))
	}
	d.buf.Data = d.buf.Data[:len(dst)]

	n, err := d.dec.PCMBuffer(d.buf)
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("wav decode error: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}
	for i := 0; i < n; i++ {
		dst[i] = audio.IntToFloat(d.buf.Data[i], d.format.BitDepth)
	}
	return n, nil
}

// Close releases the file
func (d *WAVDecoder) Close() error {
	return d.f.Close()
}
