// ABOUTME: Console coordinator tying radio state, audio engine and analyzer together
// ABOUTME: Implements the validated setter surface used by the control plane
package console

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/harperreed/sdrconsole/internal/engine"
	"github.com/harperreed/sdrconsole/internal/radio"
)

// AudioEngine is the part of engine.Engine the console drives
type AudioEngine interface {
	StartPlayback(path string, id int) error
	StopPlayback(id int)
	StartRecording(path string, channels, sampleRate int) error
	StopRecording() error
	SetPreampDB(db float64) error
	Events() <-chan engine.Event
	Stats() engine.Stats
}

// Display receives tuning changes for spectrum frames
type Display interface {
	SetCenter(hz int64)
	SetBandwidth(hz int)
}

// Config holds console settings
type Config struct {
	RecordDir      string
	DataDir        string
	RecordChannels int
	RecordRate     int
	Debug          bool
}

// Status is a snapshot for display and control replies
type Status struct {
	Radio         radio.State
	Playing       bool
	PlaybackID    int
	PlayingPath   string
	Recording     bool
	RecordingPath string
	RecordedBytes int64
	Playlist      []string
	Current       int
	Loop          bool
}

// Console owns the radio state and routes commands to the engine
type Console struct {
	cfg      Config
	radio    *radio.Radio
	engine   AudioEngine
	display  Display
	playlist *Playlist

	mu        sync.Mutex
	nextID    int
	playingID int // zero when idle
	now       func() time.Time
}

// New creates a console and pushes the current radio state to its collaborators.
// display may be nil.
func New(cfg Config, r *radio.Radio, eng AudioEngine, display Display) *Console {
	if cfg.RecordChannels == 0 {
		cfg.RecordChannels = 2
	}
	if cfg.RecordRate == 0 {
		cfg.RecordRate = radio.DefaultSampleRate
	}

	c := &Console{
		cfg:      cfg,
		radio:    r,
		engine:   eng,
		display:  display,
		playlist: NewPlaylist(),
		now:      time.Now,
	}

	r.Subscribe(c.apply)
	c.apply(r.State())
	return c
}

// apply propagates radio state to the analyzer and the engine preamp
func (c *Console) apply(st radio.State) {
	if c.display != nil {
		c.display.SetCenter(st.ActiveFrequency())
		c.display.SetBandwidth(st.SampleRate)
	}
	if err := c.engine.SetPreampDB(st.PreampDB); err != nil {
		log.Printf("Console: failed to apply preamp: %v", err)
	}
}

// Radio returns the radio state holder
func (c *Console) Radio() *radio.Radio {
	return c.radio
}

// Playlist returns the playlist
func (c *Console) Playlist() *Playlist {
	return c.playlist
}

func (c *Console) SetFrequency(hz int64) error {
	return c.radio.SetFrequency(hz)
}

func (c *Console) SetFrequencyA(hz int64) error {
	return c.radio.SetFrequencyA(hz)
}

func (c *Console) SetFrequencyB(hz int64) error {
	return c.radio.SetFrequencyB(hz)
}

func (c *Console) SetVFO(v radio.VFO) error {
	return c.radio.SetVFO(v)
}

func (c *Console) SetMode(m radio.Mode) error {
	return c.radio.SetMode(m)
}

func (c *Console) SetBandwidth(hz int) error {
	return c.radio.SetBandwidth(hz)
}

func (c *Console) SetFilter(low, high int) error {
	return c.radio.SetFilter(low, high)
}

func (c *Console) SetSampleRate(rate int) error {
	return c.radio.SetSampleRate(rate)
}

func (c *Console) SetPreampDB(db float64) error {
	return c.radio.SetPreampDB(db)
}

// SetLoop sets the playlist loop flag
func (c *Console) SetLoop(loop bool) {
	c.playlist.SetLoop(loop)
}

// PlayFile starts playback of path outside the playlist
func (c *Console) PlayFile(path string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startLocked(path)
}

// Play starts the playlist item at index, or the current item when index < 0
func (c *Console) Play(index int) (int, error) {
	var path string
	if index < 0 {
		_, p, ok := c.playlist.Current()
		if !ok {
			return 0, fmt.Errorf("%w: playlist is empty", radio.ErrInvalidParameter)
		}
		path = p
	} else {
		p, err := c.playlist.Select(index)
		if err != nil {
			return 0, err
		}
		path = p
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startLocked(path)
}

// Next skips to the following playlist item, wrapping at the end
func (c *Console) Next() (int, error) {
	path, ok := c.playlist.Next()
	if !ok {
		return 0, fmt.Errorf("%w: playlist is empty", radio.ErrInvalidParameter)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startLocked(path)
}

// Prev goes back one playlist item
func (c *Console) Prev() (int, error) {
	path, ok := c.playlist.Prev()
	if !ok {
		return 0, fmt.Errorf("%w: already at the first item", radio.ErrInvalidParameter)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startLocked(path)
}

func (c *Console) startLocked(path string) (int, error) {
	c.nextID++
	id := c.nextID
	if err := c.engine.StartPlayback(path, id); err != nil {
		return 0, fmt.Errorf("failed to play %s: %w", filepath.Base(path), err)
	}
	c.playingID = id
	log.Printf("Console: playing %s (id %d)", path, id)
	return id, nil
}

// StopPlayback stops whatever the console started last
func (c *Console) StopPlayback() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playingID == 0 {
		return
	}
	c.engine.StopPlayback(c.playingID)
	c.playingID = 0
}

// StartRecording records to a generated name in the record directory.
// Zero channels or rate select the configured defaults.
func (c *Console) StartRecording(channels, sampleRate int) (string, error) {
	if channels == 0 {
		channels = c.cfg.RecordChannels
	}
	if sampleRate == 0 {
		sampleRate = c.cfg.RecordRate
	}
	if err := radio.ValidRecordFormat(channels, sampleRate); err != nil {
		return "", err
	}

	dir := c.cfg.RecordDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create record directory: %w", err)
	}

	st := c.radio.State()
	path := RecordingPath(dir, st.Mode, st.Frequency, sampleRate, c.now())
	if err := c.engine.StartRecording(path, channels, sampleRate); err != nil {
		return "", err
	}
	return path, nil
}

// StopRecording finalizes the active recording
func (c *Console) StopRecording() error {
	return c.engine.StopRecording()
}

// QuickRecord records to the fixed quick audio file
func (c *Console) QuickRecord() (string, error) {
	path := filepath.Join(c.cfg.DataDir, QuickAudioFile)
	if err := c.engine.StartRecording(path, c.cfg.RecordChannels, c.cfg.RecordRate); err != nil {
		return "", err
	}
	return path, nil
}

// QuickPlay plays back the quick audio file
func (c *Console) QuickPlay() (int, error) {
	return c.PlayFile(filepath.Join(c.cfg.DataDir, QuickAudioFile))
}

// Status returns a snapshot
func (c *Console) Status() Status {
	es := c.engine.Stats()
	idx, _, _ := c.playlist.Current()

	c.mu.Lock()
	playing := c.playingID != 0 && es.Playing && es.PlaybackID == c.playingID
	id := c.playingID
	c.mu.Unlock()

	return Status{
		Radio:         c.radio.State(),
		Playing:       playing,
		PlaybackID:    id,
		PlayingPath:   es.PlaybackPath,
		Recording:     es.Recording,
		RecordingPath: es.RecordingPath,
		RecordedBytes: es.RecordedBytes,
		Playlist:      c.playlist.Items(),
		Current:       idx,
		Loop:          c.playlist.Loop(),
	}
}

// Run handles engine events until ctx is cancelled
func (c *Console) Run(ctx context.Context) error {
	events := c.engine.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			c.handleEvent(ev)
		}
	}
}

func (c *Console) handleEvent(ev engine.Event) {
	switch ev.Kind {
	case engine.PlaybackEnded:
		c.mu.Lock()
		defer c.mu.Unlock()
		if ev.ID != c.playingID {
			return
		}
		c.playingID = 0
		if c.cfg.Debug {
			log.Printf("[DEBUG] Console: playback %d ended", ev.ID)
		}

		// Only playlist playback advances
		if _, cur, ok := c.playlist.Current(); !ok || cur != ev.Path {
			return
		}
		next, ok := c.playlist.Advance()
		if !ok {
			return
		}
		if _, err := c.startLocked(next); err != nil {
			log.Printf("Console: %v", err)
		}

	case engine.PlaybackFailed:
		log.Printf("Console: playback %d failed: %v", ev.ID, ev.Err)
		c.mu.Lock()
		if ev.ID == c.playingID {
			c.playingID = 0
		}
		c.mu.Unlock()

	case engine.RecordingFailed:
		log.Printf("Console: recording %s failed: %v", ev.Path, ev.Err)
	}
}
