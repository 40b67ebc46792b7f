// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes MP3 files to float32 samples via go-mp3
package decode

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"
	"github.com/harperreed/sdrconsole/pkg/audio"
)

// MP3Decoder decodes MP3 audio. go-mp3 always produces 16-bit stereo.
type MP3Decoder struct {
	f       *os.File
	decoder *mp3.Decoder
	buf     []byte
	format  audio.Format
	done    bool
}

// OpenMP3 opens an MP3 file for decoding
func OpenMP3(path string) (*MP3Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	d, err := NewMP3(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	d.f = f
	return d, nil
}

// NewMP3 decodes MP3 data from r
func NewMP3(r io.Reader) (*MP3Decoder, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}
	return &MP3Decoder{
		decoder: decoder,
		format: audio.Format{
			Codec:      "mp3",
			SampleRate: decoder.SampleRate(),
			Channels:   2,
			BitDepth:   16,
		},
	}, nil
}

func (d *MP3Decoder) Format() audio.Format {
	return d.format
}

// Read converts decoded 16-bit PCM to float
func (d *MP3Decoder) Read(dst []float32) (int, error) {
	if d.done {
		return 0, io.EOF
	}

	want := len(dst) * 2
	if cap(d.buf) < want {
		d.buf = make([]byte, want)
	}
	buf := d.buf[:want]

	n, err := io.ReadFull(d.decoder, buf)
	switch err {
	case nil:
	case io.EOF, io.ErrUnexpectedEOF:
		d.done = true
	default:
		return 0, fmt.Errorf("mp3 decode error: %w", err)
	}

	numSamples := n / 2
	for i := 0; i < numSamples; i++ {
		dst[i] = audio.Int16ToFloat(int16(binary.LittleEndian.Uint16(buf[i*2:])))
	}
	if numSamples == 0 {
		return 0, io.EOF
	}
	return numSamples, nil
}

// Close releases decoder resources
func (d *MP3Decoder) Close() error {
	if d.f != nil {
		return d.f.Close()
	}
	return nil
}
