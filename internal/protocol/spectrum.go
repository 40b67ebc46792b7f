// ABOUTME: Binary encoding of spectrum frames for websocket clients
// ABOUTME: Big-endian header followed by float32 dB bins
package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// SpectrumMessageType is the first byte of a binary spectrum message
	SpectrumMessageType = 2

	// [type:1][seq:8][center:8][bandwidth:4][count:2]
	spectrumHeaderSize = 1 + 8 + 8 + 4 + 2
)

// SpectrumFrame is the decoded form of a binary spectrum message
type SpectrumFrame struct {
	Seq         uint64
	CenterHz    int64
	BandwidthHz int
	Bins        []float32
}

// EncodeSpectrum builds a binary spectrum message
func EncodeSpectrum(seq uint64, centerHz int64, bandwidthHz int, bins []float32) []byte {
	msg := make([]byte, spectrumHeaderSize+4*len(bins))
	msg[0] = SpectrumMessageType
	binary.BigEndian.PutUint64(msg[1:9], seq)
	binary.BigEndian.PutUint64(msg[9:17], uint64(centerHz))
	binary.BigEndian.PutUint32(msg[17:21], uint32(bandwidthHz))
	binary.BigEndian.PutUint16(msg[21:23], uint16(len(bins)))
	for i, v := range bins {
		binary.BigEndian.PutUint32(msg[spectrumHeaderSize+4*i:], math.Float32bits(v))
	}
	return msg
}

// DecodeSpectrum parses a binary spectrum message
func DecodeSpectrum(msg []byte) (SpectrumFrame, error) {
	if len(msg) < spectrumHeaderSize || msg[0] != SpectrumMessageType {
		return SpectrumFrame{}, fmt.Errorf("not a spectrum message")
	}
	count := int(binary.BigEndian.Uint16(msg[21:23]))
	if len(msg) != spectrumHeaderSize+4*count {
		return SpectrumFrame{}, fmt.Errorf("spectrum message has %d bytes for %d bins", len(msg), count)
	}

	f := SpectrumFrame{
		Seq:         binary.BigEndian.Uint64(msg[1:9]),
		CenterHz:    int64(binary.BigEndian.Uint64(msg[9:17])),
		BandwidthHz: int(binary.BigEndian.Uint32(msg[17:21])),
		Bins:        make([]float32, count),
	}
	for i := range f.Bins {
		f.Bins[i] = math.Float32frombits(binary.BigEndian.Uint32(msg[spectrumHeaderSize+4*i:]))
	}
	return f, nil
}
