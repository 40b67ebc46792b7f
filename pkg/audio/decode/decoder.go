// ABOUTME: Decoder interface and file-type dispatch
// ABOUTME: Decoders stream interleaved float32 samples from an audio file
package decode

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/harperreed/sdrconsole/pkg/audio"
)

var ErrUnsupportedCodec = errors.New("unsupported codec")

// Decoder reads decoded audio
type Decoder interface {
	// Format reports the source sample rate, channel count and bit depth
	Format() audio.Format

	// Read fills dst with interleaved samples in [-1, 1) and returns io.EOF
	// once the stream is exhausted
	Read(dst []float32) (int, error)

	// Close releases decoder resources
	Close() error
}

// Open picks a decoder from the file extension
func Open(path string) (Decoder, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav", ".wave":
		return OpenWAV(path)
	case ".mp3":
		return OpenMP3(path)
	case ".flac":
		return OpenFLAC(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCodec, ext)
	}
}

// ReadAll drains d
func ReadAll(d Decoder) ([]float32, error) {
	var out []float32
	buf := make([]float32, 4096)
	for {
		n, err := d.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
	}
}
