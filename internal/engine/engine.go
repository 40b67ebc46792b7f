// ABOUTME: Audio engine mixing file playback into the output and recording input
// ABOUTME: Sessions are handed to the device callback through atomic pointer swaps
package engine

import (
	"fmt"
	"io"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harperreed/sdrconsole/internal/radio"
	"github.com/harperreed/sdrconsole/pkg/audio"
	"github.com/harperreed/sdrconsole/pkg/audio/device"
	"github.com/harperreed/sdrconsole/pkg/audio/wav"
)

var (
	ErrDeviceUnavailable = device.ErrDeviceUnavailable
	ErrStreamOpenFailed  = device.ErrStreamOpenFailed
	ErrInvalidParameter  = radio.ErrInvalidParameter
)

const (
	// The stream is always stereo in both directions
	inputChannels  = 2
	outputChannels = 2

	DefaultPeriodFrames = 256

	// Upper bound on waiting for the callback to leave a retired session
	quiesceTimeout = 500 * time.Millisecond
)

// Config holds engine configuration
type Config struct {
	Backend      string // device backend name, see device.New
	DeviceName   string
	WindowFrames int
	Debug        bool
}

// Stats is a snapshot for display
type Stats struct {
	Running       bool
	SampleRate    int
	PeriodFrames  int
	Periods       uint64
	Playing       bool
	PlaybackID    int
	PlaybackPath  string
	Recording     bool
	RecordingPath string
	RecordedBytes int64
	Gain          float32
	DroppedEvents uint64
}

// Engine owns the audio device and the playback and recording sessions
type Engine struct {
	cfg Config
	dev device.Device

	sampleRate   int
	periodFrames int
	opened       bool
	running      bool
	mu           sync.Mutex // serializes control operations

	gain      atomic.Uint32 // float32 bits
	playback  atomic.Pointer[playbackSession]
	recording atomic.Pointer[recordingSession]

	busy          atomic.Bool
	periods       atomic.Uint64
	stopRequested atomic.Bool

	events        chan Event
	droppedEvents atomic.Uint64
	retired       chan io.Closer

	quit chan struct{}
	wg   sync.WaitGroup
}

// New creates an engine. A nil dev selects cfg.Backend at Initialize.
func New(cfg Config, dev device.Device) *Engine {
	if cfg.WindowFrames <= 0 {
		cfg.WindowFrames = DefaultWindowFrames
	}

	e := &Engine{
		cfg:          cfg,
		dev:          dev,
		sampleRate:   audio.StreamSampleRate,
		periodFrames: DefaultPeriodFrames,
		events:       make(chan Event, eventBuffer),
		retired:      make(chan io.Closer, eventBuffer),
	}
	e.gain.Store(math.Float32bits(1))
	return e
}

// Initialize opens a duplex stereo float32 stream
func (e *Engine) Initialize(sampleRate, periodFrames int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.opened {
		return fmt.Errorf("%w: engine already initialized", ErrStreamOpenFailed)
	}
	if sampleRate <= 0 || periodFrames <= 0 {
		return fmt.Errorf("%w: %d Hz / %d frames", ErrInvalidParameter, sampleRate, periodFrames)
	}

	if e.dev == nil {
		dev, err := device.New(e.cfg.Backend)
		if err != nil {
			return err
		}
		e.dev = dev
	}

	cfg := device.Config{
		SampleRate:     sampleRate,
		PeriodFrames:   periodFrames,
		InputChannels:  inputChannels,
		OutputChannels: outputChannels,
		DeviceName:     e.cfg.DeviceName,
	}
	if err := e.dev.Open(cfg, e.Process); err != nil {
		return fmt.Errorf("failed to open audio device: %w", err)
	}

	e.sampleRate = sampleRate
	e.periodFrames = periodFrames
	e.opened = true

	log.Printf("Audio engine initialized: %dHz, %d frames/period", sampleRate, periodFrames)
	return nil
}

// Start begins periodic callbacks
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.opened {
		return fmt.Errorf("audio engine not initialized")
	}
	if e.running {
		return nil
	}

	e.stopRequested.Store(false)
	if err := e.dev.Start(); err != nil {
		return fmt.Errorf("failed to start audio stream: %w", err)
	}
	e.running = true

	quit := make(chan struct{})
	e.quit = quit

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.reap(quit)
	}()
	go e.watch(quit, e.dev.Done())

	log.Printf("Audio engine started")
	return nil
}

// Stop releases the device and finalizes any recording. It is a no-op if
// the engine was never initialized.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.opened {
		return nil
	}

	if err := e.dev.Stop(); err != nil {
		log.Printf("Audio engine: device stop error: %v", err)
	}
	e.running = false

	if e.quit != nil {
		close(e.quit)
		e.quit = nil
		e.wg.Wait()
	}

	if rec := e.recording.Swap(nil); rec != nil {
		rec.Close()
	}
	if pb := e.playback.Swap(nil); pb != nil {
		pb.Close()
	}
	e.drainRetired()

	if err := e.dev.Close(); err != nil {
		log.Printf("Audio engine: device close error: %v", err)
	}
	e.opened = false

	log.Printf("Audio engine stopped")
	return nil
}

// RequestStop asks the callback to end the stream at the next period
func (e *Engine) RequestStop() {
	e.stopRequested.Store(true)
}

// Process is the device callback. It never blocks on the control plane.
func (e *Engine) Process(in, out []float32) device.Status {
	e.busy.Store(true)

	clear(out)

	if pb := e.playback.Load(); pb != nil {
		_, err := pb.mix(out, outputChannels, e.Gain())
		switch {
		case err != nil:
			e.retirePlayback(pb, Event{Kind: PlaybackFailed, ID: pb.id, Path: pb.path, Err: err})
		case pb.finished():
			e.retirePlayback(pb, Event{Kind: PlaybackEnded, ID: pb.id, Path: pb.path})
		}
	}

	if rec := e.recording.Load(); rec != nil && len(in) > 0 {
		if err := rec.append(in, inputChannels); err != nil {
			e.retireRecording(rec, Event{Kind: RecordingFailed, Path: rec.path, Err: err})
		}
	}

	e.periods.Add(1)
	e.busy.Store(false)

	if e.stopRequested.Load() {
		return device.Stop
	}
	return device.Continue
}

// StartPlayback replaces any active playback with path
func (e *Engine) StartPlayback(path string, id int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.drainRetired()

	r, err := wav.Open(path)
	if err != nil {
		return err
	}
	if err := r.Header().Validate(e.sampleRate); err != nil {
		r.Close()
		return err
	}

	sess := newPlaybackSession(id, path, r, e.periodFrames, e.cfg.WindowFrames)
	if old := e.playback.Swap(sess); old != nil {
		e.quiesce()
		old.Close()
		log.Printf("Audio engine: playback %d replaced by %d", old.id, id)
	}

	h := r.Header()
	log.Printf("Audio engine: playback %d started: %s (%d ch, %d frames)", id, path, h.Channels, h.Frames())
	return nil
}

// StopPlayback ends playback only if id names the active session
func (e *Engine) StopPlayback(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.playback.Load()
	if cur == nil || cur.id != id {
		if e.cfg.Debug {
			log.Printf("[DEBUG] Audio engine: stop playback %d ignored", id)
		}
		return
	}
	if !e.playback.CompareAndSwap(cur, nil) {
		// The callback retired it first
		return
	}
	e.quiesce()
	cur.Close()
	log.Printf("Audio engine: playback %d stopped", id)
}

// StartRecording begins capturing input to path
func (e *Engine) StartRecording(path string, channels, sampleRate int) error {
	if err := radio.ValidRecordFormat(channels, sampleRate); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.drainRetired()

	if sampleRate != e.sampleRate {
		log.Printf("Warning: recording header says %dHz but the stream runs at %dHz", sampleRate, e.sampleRate)
	}

	w, err := wav.Create(path, channels, sampleRate)
	if err != nil {
		return err
	}

	sess := newRecordingSession(path, w, channels, e.periodFrames)
	if old := e.recording.Swap(sess); old != nil {
		e.quiesce()
		old.Close()
	}

	log.Printf("Audio engine: recording started: %s (%d ch, %dHz)", path, channels, sampleRate)
	return nil
}

// StopRecording finalizes the header and closes the file
func (e *Engine) StopRecording() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.recording.Swap(nil)
	if cur == nil {
		return nil
	}
	e.quiesce()
	return cur.Close()
}

// SetPreamp sets the linear playback gain, effective next period
func (e *Engine) SetPreamp(gain float32) error {
	g := float64(gain)
	if math.IsNaN(g) || math.IsInf(g, 0) || g < 0 {
		return fmt.Errorf("%w: preamp gain %v", ErrInvalidParameter, gain)
	}
	e.gain.Store(math.Float32bits(gain))
	return nil
}

// SetPreampDB sets the playback gain in decibels
func (e *Engine) SetPreampDB(db float64) error {
	if err := radio.ValidatePreampDB(db); err != nil {
		return err
	}
	return e.SetPreamp(radio.DBToGain(db))
}

// Gain returns the linear playback gain
func (e *Engine) Gain() float32 {
	return math.Float32frombits(e.gain.Load())
}

// Stats returns a snapshot of engine state
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	s := Stats{
		Running:      e.running,
		SampleRate:   e.sampleRate,
		PeriodFrames: e.periodFrames,
	}
	e.mu.Unlock()

	s.Periods = e.periods.Load()
	s.Gain = e.Gain()
	s.DroppedEvents = e.droppedEvents.Load()

	if pb := e.playback.Load(); pb != nil {
		s.Playing = true
		s.PlaybackID = pb.id
		s.PlaybackPath = pb.path
	}
	if rec := e.recording.Load(); rec != nil {
		s.Recording = true
		s.RecordingPath = rec.path
		s.RecordedBytes = rec.bytes.Load()
	}
	return s
}

// retirePlayback detaches a session from the callback side
func (e *Engine) retirePlayback(pb *playbackSession, ev Event) {
	if e.playback.CompareAndSwap(pb, nil) {
		e.retire(pb)
		e.post(ev)
	}
}

func (e *Engine) retireRecording(rec *recordingSession, ev Event) {
	if e.recording.CompareAndSwap(rec, nil) {
		e.retire(rec)
		e.post(ev)
	}
}

// retire hands a session to the reaper; it closes inline only if the queue is full
func (e *Engine) retire(c io.Closer) {
	select {
	case e.retired <- c:
	default:
		c.Close()
	}
}

func (e *Engine) drainRetired() {
	for {
		select {
		case c := <-e.retired:
			c.Close()
		default:
			return
		}
	}
}

// reap closes retired sessions off the audio thread
func (e *Engine) reap(quit <-chan struct{}) {
	for {
		select {
		case c := <-e.retired:
			c.Close()
		case <-quit:
			return
		}
	}
}

// watch stops the engine once the callback has returned Stop
func (e *Engine) watch(quit, done <-chan struct{}) {
	select {
	case <-done:
		log.Printf("Audio engine: stream ended by callback")
		e.Stop()
	case <-quit:
	}
}

// quiesce waits until no callback can still hold a session detached by the
// caller. Must be called after the swap.
func (e *Engine) quiesce() {
	p0 := e.periods.Load()
	if !e.busy.Load() {
		return
	}

	deadline := time.Now().Add(quiesceTimeout)
	for e.periods.Load() == p0 {
		if time.Now().After(deadline) {
			log.Printf("Warning: audio callback stalled, releasing session anyway")
			return
		}
		time.Sleep(100 * time.Microsecond)
	}
}
