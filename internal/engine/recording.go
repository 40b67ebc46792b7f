// ABOUTME: Recording session fed with raw device input each period
// ABOUTME: Maps interleaved input channels onto the file's channel count
package engine

import (
	"log"
	"sync/atomic"

	"github.com/harperreed/sdrconsole/pkg/audio/wav"
)

type recordingSession struct {
	path     string
	writer   *wav.Writer
	channels int
	scratch  []float32
	bytes    atomic.Int64
}

func newRecordingSession(path string, w *wav.Writer, channels, periodFrames int) *recordingSession {
	w.Reserve(periodFrames * channels)
	return &recordingSession{
		path:     path,
		writer:   w,
		channels: channels,
		scratch:  make([]float32, periodFrames*channels),
	}
}

// append writes one input period. in has inChannels interleaved channels.
func (s *recordingSession) append(in []float32, inChannels int) error {
	if inChannels == s.channels {
		if err := s.writer.WriteSamples(in); err != nil {
			return err
		}
		s.bytes.Store(s.writer.BytesWritten())
		return nil
	}

	frames := len(in) / inChannels
	for start := 0; start < frames; {
		chunk := frames - start
		if limit := len(s.scratch) / s.channels; chunk > limit {
			chunk = limit
		}
		for f := 0; f < chunk; f++ {
			src := in[(start+f)*inChannels:]
			for c := 0; c < s.channels; c++ {
				sc := c
				if sc >= inChannels {
					sc = inChannels - 1
				}
				s.scratch[f*s.channels+c] = src[sc]
			}
		}
		if err := s.writer.WriteSamples(s.scratch[:chunk*s.channels]); err != nil {
			return err
		}
		start += chunk
	}
	s.bytes.Store(s.writer.BytesWritten())
	return nil
}

// Close finalizes the header
func (s *recordingSession) Close() error {
	if err := s.writer.Close(); err != nil {
		log.Printf("Audio engine: failed to finalize recording %s: %v", s.path, err)
		return err
	}
	log.Printf("Audio engine: recording finalized: %s (%d bytes)", s.path, s.bytes.Load())
	return nil
}
