// ABOUTME: Headerless PCM audio decoder
// ABOUTME: Decodes 16-bit and 24-bit little-endian PCM to float32 samples
package decode

import (
	"fmt"
	"io"

	"github.com/harperreed/sdrconsole/pkg/audio"
)

// PCMDecoder decodes raw PCM
type PCMDecoder struct {
	r      io.Reader
	format audio.Format
	buf    []byte
	tail   []byte // partial sample left from the previous read
}

// NewPCM creates a decoder for raw little-endian PCM read from r
func NewPCM(r io.Reader, format audio.Format) (*PCMDecoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM decoder: %s", format.Codec)
	}
	if format.BitDepth != 16 && format.BitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", format.BitDepth)
	}
	if format.Channels <= 0 || format.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid pcm format: %s", format)
	}

	return &PCMDecoder{r: r, format: format}, nil
}

func (d *PCMDecoder) Format() audio.Format {
	return d.format
}

// Read decodes whole samples; a trailing partial sample at EOF is discarded
func (d *PCMDecoder) Read(dst []float32) (int, error) {
	width := d.format.BitDepth / 8
	want := len(dst) * width
	if cap(d.buf) < want {
		d.buf = make([]byte, want)
	}
	buf := d.buf[:want]

	held := copy(buf, d.tail)
	d.tail = d.tail[:0]

	n, err := d.r.Read(buf[held:])
	n += held
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("pcm read error: %w", err)
	}

	numSamples := n / width
	d.tail = append(d.tail, buf[numSamples*width:n]...)
	for i := 0; i < numSamples; i++ {
		b := buf[i*width:]
		if width == 3 {
			dst[i] = Sample24ToFloat([3]byte{b[0], b[1], b[2]})
		} else {
			dst[i] = audio.Int16ToFloat(int16(uint16(b[0]) | uint16(b[1])<<8))
		}
	}

	if numSamples == 0 && err == io.EOF {
		return 0, io.EOF
	}
	return numSamples, nil
}

// Close releases resources
func (d *PCMDecoder) Close() error {
	return nil
}

// Sample24ToFloat converts a little-endian signed 24-bit sample
func Sample24ToFloat(b [3]byte) float32 {
	v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	if v&0x800000 != 0 {
		v |= ^0xFFFFFF
	}
	return audio.IntToFloat(int(v), 24)
}
