// ABOUTME: Audio device interface for callback-driven duplex streams
// ABOUTME: Shared config, stop gating and backend selection
package device

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	ErrDeviceUnavailable = errors.New("device unavailable")
	ErrStreamOpenFailed  = errors.New("stream open failed")
)

// Status is returned by a ProcessFunc after each period
type Status int

const (
	Continue Status = iota
	Stop
)

func (s Status) String() string {
	if s == Stop {
		return "stop"
	}
	return "continue"
}

// ProcessFunc fills out from in for one period. Both slices hold
// interleaved float32 samples; in is empty for output-only devices.
type ProcessFunc func(in, out []float32) Status

// Config describes the stream to open
type Config struct {
	SampleRate     int
	PeriodFrames   int
	InputChannels  int
	OutputChannels int
	DeviceName     string // Substring match; empty selects the default device
}

// Device is a driver that calls a ProcessFunc once per period on its own thread
type Device interface {
	// Open configures the stream; process is not called until Start
	Open(cfg Config, process ProcessFunc) error

	// Start begins periodic callbacks
	Start() error

	// Stop halts callbacks after the current period completes
	Stop() error

	// Close releases driver resources
	Close() error

	// Done is closed once a callback has returned Stop
	Done() <-chan struct{}
}

// New returns the backend registered under name
func New(backend string) (Device, error) {
	switch backend {
	case "malgo", "":
		return NewMalgo(), nil
	case "portaudio":
		return NewPortAudio(), nil
	case "oto":
		return NewOto(), nil
	case "null":
		return NewNull(), nil
	default:
		return nil, fmt.Errorf("%w: unknown audio backend %q", ErrDeviceUnavailable, backend)
	}
}

// Validate checks the stream parameters every backend relies on
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrStreamOpenFailed, c.SampleRate)
	}
	if c.PeriodFrames <= 0 {
		return fmt.Errorf("%w: period %d frames", ErrStreamOpenFailed, c.PeriodFrames)
	}
	if c.OutputChannels <= 0 || c.InputChannels < 0 {
		return fmt.Errorf("%w: %d in / %d out channels", ErrStreamOpenFailed, c.InputChannels, c.OutputChannels)
	}
	return nil
}

// gate forwards driver callbacks to a ProcessFunc until it returns Stop,
// then outputs silence and signals Done.
type gate struct {
	process ProcessFunc
	stopped atomic.Bool
	done    chan struct{}
	once    sync.Once
}

func newGate(process ProcessFunc) *gate {
	return &gate{
		process: process,
		done:    make(chan struct{}),
	}
}

func (g *gate) run(in, out []float32) {
	if g.stopped.Load() {
		clear(out)
		return
	}
	if g.process(in, out) == Stop {
		g.stopped.Store(true)
		g.once.Do(func() { close(g.done) })
	}
}

// closedChan is returned by Done before Open
var closedChan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

func (g *gate) doneChan() <-chan struct{} {
	if g == nil {
		return closedChan
	}
	return g.done
}
