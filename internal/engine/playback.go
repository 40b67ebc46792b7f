// ABOUTME: Playback session state owned by the audio callback
// ABOUTME: Wraps a WAV reader with a float32 ring window refilled on demand
package engine

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/harperreed/sdrconsole/pkg/audio/ring"
	"github.com/harperreed/sdrconsole/pkg/audio/wav"
)

// DefaultWindowFrames is the playback window size in frames
const DefaultWindowFrames = 1024

// playbackSession is created on the control thread and then touched only by
// the audio callback until it is retired.
type playbackSession struct {
	id       int
	path     string
	reader   *wav.Reader
	channels int
	window   *ring.Buffer
	scratch  []float32
	eof      bool
}

func newPlaybackSession(id int, path string, r *wav.Reader, periodFrames, windowFrames int) *playbackSession {
	channels := int(r.Header().Channels)
	if windowFrames < 2*periodFrames {
		windowFrames = 2 * periodFrames
	}

	window := ring.New(windowFrames * channels)
	r.Reserve(window.Cap())

	return &playbackSession{
		id:       id,
		path:     path,
		reader:   r,
		channels: channels,
		window:   window,
		scratch:  make([]float32, periodFrames*channels),
	}
}

// refill tops up the window when it holds fewer than need samples. New
// samples land after the unread remainder. A short read marks end of file.
func (s *playbackSession) refill(need int) error {
	if s.eof || s.window.Available() >= need {
		return nil
	}
	_, err := s.window.Fill(s.reader.ReadSamples)
	if errors.Is(err, io.EOF) {
		s.eof = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("playback %d: %w", s.id, err)
	}
	return nil
}

// mix adds up to frames of gained samples into out, which has outChannels
// interleaved channels. It returns the frames taken from the window.
func (s *playbackSession) mix(out []float32, outChannels int, gain float32) (int, error) {
	frames := len(out) / outChannels
	mixed := 0

	for mixed < frames {
		chunk := frames - mixed
		if limit := len(s.scratch) / s.channels; chunk > limit {
			chunk = limit
		}
		need := chunk * s.channels

		if err := s.refill(need); err != nil {
			return mixed, err
		}

		n := s.window.Read(s.scratch[:need]) / s.channels
		dst := out[mixed*outChannels:]

		if s.channels == 1 {
			for f := 0; f < n; f++ {
				v := s.scratch[f] * gain
				for c := 0; c < outChannels; c++ {
					dst[f*outChannels+c] += v
				}
			}
		} else {
			for f := 0; f < n; f++ {
				for c := 0; c < outChannels && c < s.channels; c++ {
					dst[f*outChannels+c] += s.scratch[f*s.channels+c] * gain
				}
			}
		}

		mixed += n
		if n < chunk {
			break
		}
	}
	return mixed, nil
}

// finished reports that the file and the window are both exhausted
func (s *playbackSession) finished() bool {
	return s.eof && s.window.Available() == 0
}

func (s *playbackSession) Close() error {
	if err := s.reader.Close(); err != nil {
		log.Printf("Audio engine: failed to close playback %d: %v", s.id, err)
		return err
	}
	return nil
}
