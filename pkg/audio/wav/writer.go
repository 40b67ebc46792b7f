// ABOUTME: Recording writer for 16-bit PCM WAV files
// ABOUTME: Writes a provisional header and patches the sizes on Close
package wav

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/harperreed/sdrconsole/pkg/audio"
)

// maxDataSize keeps the RIFF size field within uint32
const maxDataSize = math.MaxUint32 - 36

// Writer appends float samples to a WAV payload as 16-bit PCM
type Writer struct {
	f       *os.File
	header  Header
	written uint32
	buf     []byte
	closed  bool
}

// Create truncates path and writes a header with a zero-length payload
func Create(path string, channels, sampleRate int) (*Writer, error) {
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, channels)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrUnsupportedFormat, sampleRate)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFileCreateFailed, path, err)
	}

	w := &Writer{
		f:      f,
		header: NewHeader(channels, sampleRate),
	}
	if _, err := f.Write(w.header.Marshal()); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("%w: %s: %v", ErrFileCreateFailed, path, err)
	}

	return w, nil
}

// Header returns the header as it would be finalized now
func (w *Writer) Header() Header {
	h := w.header
	h.DataSize = w.written
	return h
}

// BytesWritten returns payload bytes written so far
func (w *Writer) BytesWritten() int64 {
	return int64(w.written)
}

// Reserve sizes the scratch buffer for writes of up to n samples
func (w *Writer) Reserve(n int) {
	if cap(w.buf) < n*2 {
		w.buf = make([]byte, n*2)
	}
}

// WriteSamples appends whole interleaved frames
func (w *Writer) WriteSamples(src []float32) error {
	if w.closed {
		return fmt.Errorf("write on closed recording")
	}
	if len(src)%int(w.header.Channels) != 0 {
		return fmt.Errorf("partial frame: %d samples for %d channels", len(src), w.header.Channels)
	}
	size := uint64(len(src)) * 2
	if uint64(w.written)+size > maxDataSize {
		return fmt.Errorf("recording exceeds %d bytes", uint64(maxDataSize))
	}

	w.Reserve(len(src))
	buf := w.buf[:size]
	for i, s := range src {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(audio.FloatToInt16(s)))
	}

	n, err := w.f.Write(buf)
	w.written += uint32(n - n%int(w.header.BlockAlign()))
	if err != nil {
		return fmt.Errorf("failed to write samples: %w", err)
	}
	return nil
}

// Close rewrites the header with the final payload length and closes the file
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var hb [HeaderSize]byte
	w.Header().MarshalTo(hb[:])

	if _, err := w.f.WriteAt(hb[:], 0); err != nil {
		w.f.Close()
		return fmt.Errorf("failed to finalize header: %w", err)
	}
	// Drop any torn trailing frame so the payload matches the header
	if err := w.f.Truncate(HeaderSize + int64(w.written)); err != nil {
		w.f.Close()
		return fmt.Errorf("failed to truncate payload: %w", err)
	}
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("failed to close recording: %w", err)
	}
	return nil
}
