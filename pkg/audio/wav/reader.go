// ABOUTME: Streaming reader for canonical 16-bit PCM WAV files
// ABOUTME: Decodes payload samples to float32 without per-call allocation
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	gowav "github.com/go-audio/wav"

	"github.com/harperreed/sdrconsole/pkg/audio"
)

// Reader reads float samples from a WAV payload
type Reader struct {
	f         *os.File
	header    Header
	remaining int64
	buf       []byte
}

// Open opens path and parses its header
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrFileNotFound, path, err)
	}

	header, err := readHeader(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	// Never read past the real end of the file even if the header overstates it
	remaining := int64(header.DataSize)
	if info, err := f.Stat(); err == nil {
		if avail := info.Size() - HeaderSize; avail < remaining {
			remaining = avail
		}
	}
	if align := int64(header.BlockAlign()); align > 0 {
		remaining -= remaining % align
	}

	return &Reader{
		f:         f,
		header:    header,
		remaining: remaining,
	}, nil
}

// readHeader parses the header with the go-audio decoder and leaves rs at
// the first payload byte. Only the canonical layout is accepted: a 16-byte
// fmt chunk followed directly by the data chunk.
func readHeader(rs io.ReadSeeker) (Header, error) {
	var form [4]byte
	if _, err := rs.Seek(8, io.SeekStart); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrHeaderInvalid, err)
	}
	if _, err := io.ReadFull(rs, form[:]); err != nil {
		return Header{}, fmt.Errorf("%w: short header: %v", ErrHeaderInvalid, err)
	}
	if string(form[:]) != "WAVE" {
		return Header{}, fmt.Errorf("%w: missing WAVE form type", ErrHeaderInvalid)
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrHeaderInvalid, err)
	}

	dec := gowav.NewDecoder(rs)
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrHeaderInvalid, err)
	}
	if dec.NumChans == 0 || dec.SampleRate == 0 || dec.BitDepth == 0 {
		return Header{}, fmt.Errorf("%w: zero channels, rate or bit depth", ErrHeaderInvalid)
	}

	h := Header{
		AudioFormat:   dec.WavAudioFormat,
		Channels:      dec.NumChans,
		SampleRate:    dec.SampleRate,
		BitsPerSample: dec.BitDepth,
	}
	if dec.AvgBytesPerSec != h.ByteRate() {
		return Header{}, fmt.Errorf("%w: byte rate %d inconsistent with format", ErrHeaderInvalid, dec.AvgBytesPerSec)
	}

	if err := dec.FwdToPCM(); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrHeaderInvalid, err)
	}
	offset, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrHeaderInvalid, err)
	}
	if offset != HeaderSize {
		return Header{}, fmt.Errorf("%w: payload at offset %d, chunk layout is not canonical", ErrHeaderInvalid, offset)
	}

	h.DataSize = uint32(dec.PCMSize)
	return h, nil
}

// Header returns the parsed header
func (r *Reader) Header() Header {
	return r.header
}

// Remaining returns unread payload bytes
func (r *Reader) Remaining() int64 {
	return r.remaining
}

// Reserve sizes the scratch buffer for reads of up to n samples
func (r *Reader) Reserve(n int) {
	need := n * 2
	if cap(r.buf) < need {
		r.buf = make([]byte, need)
	}
}

// ReadSamples fills dst with up to len(dst) samples in [-1, 1). It returns
// fewer samples than requested only at end of payload, where err is io.EOF.
func (r *Reader) ReadSamples(dst []float32) (int, error) {
	if r.remaining <= 0 {
		return 0, io.EOF
	}

	want := int64(len(dst)) * 2
	if want > r.remaining {
		want = r.remaining
	}
	r.Reserve(len(dst))
	buf := r.buf[:want]

	n, err := io.ReadFull(r.f, buf)
	n -= n % 2
	r.remaining -= int64(n)

	samples := n / 2
	for i := 0; i < samples; i++ {
		dst[i] = audio.Int16ToFloat(int16(binary.LittleEndian.Uint16(buf[i*2:])))
	}

	switch {
	case err == io.ErrUnexpectedEOF || err == io.EOF:
		r.remaining = 0
		return samples, io.EOF
	case err != nil:
		return samples, fmt.Errorf("failed to read samples: %w", err)
	case samples < len(dst):
		return samples, io.EOF
	}
	return samples, nil
}

// Close closes the underlying file
func (r *Reader) Close() error {
	return r.f.Close()
}
