//go:build oto

// ABOUTME: Oto-based output-only device
// ABOUTME: Drives the process function from the player's pull reader with silent input
package device

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Oto output-only device using oto library
type Oto struct {
	otoCtx *oto.Context
	player *oto.Player
	source *otoSource
	gate   *gate
	mu     sync.Mutex
}

// otoSource converts one callback period at a time into the byte stream oto pulls
type otoSource struct {
	gate   *gate
	period []float32
	bytes  []byte
	off    int
}

// NewOto creates a new Oto device
func NewOto() *Oto {
	return &Oto{}
}

// Open creates the oto context. Oto allows one context per process.
func (o *Oto) Open(cfg Config, process ProcessFunc) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.otoCtx != nil {
		return fmt.Errorf("%w: device already open", ErrStreamOpenFailed)
	}
	if cfg.InputChannels > 0 {
		log.Printf("Warning: oto is output only, recording input will be empty")
	}

	op := &oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: cfg.OutputChannels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   time.Duration(cfg.PeriodFrames) * time.Second / time.Duration(cfg.SampleRate),
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("%w: failed to create oto context: %v", ErrDeviceUnavailable, err)
	}
	<-readyChan

	g := newGate(process)
	samples := cfg.PeriodFrames * cfg.OutputChannels
	o.source = &otoSource{
		gate:   g,
		period: make([]float32, samples),
		bytes:  make([]byte, samples*4),
		off:    samples * 4,
	}
	o.otoCtx = ctx
	o.gate = g
	o.player = ctx.NewPlayer(o.source)

	log.Printf("Audio device opened: %dHz, %d channels (oto, output only)", cfg.SampleRate, cfg.OutputChannels)
	return nil
}

// Read renders periods on demand
func (s *otoSource) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if s.off >= len(s.bytes) {
			s.gate.run(nil, s.period)
			for i, v := range s.period {
				binary.LittleEndian.PutUint32(s.bytes[i*4:], math.Float32bits(v))
			}
			s.off = 0
		}
		c := copy(p[n:], s.bytes[s.off:])
		s.off += c
		n += c
	}
	return n, nil
}

// Start begins playback
func (o *Oto) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player == nil {
		return fmt.Errorf("device not open")
	}
	if err := o.otoCtx.Resume(); err != nil {
		return fmt.Errorf("failed to resume oto context: %w", err)
	}
	o.player.Play()
	return nil
}

// Stop pauses playback
func (o *Oto) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		o.player.Pause()
	}
	return nil
}

// Close releases output resources
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.otoCtx != nil {
		if err := o.otoCtx.Suspend(); err != nil {
			log.Printf("Warning: oto suspend error: %v", err)
		}
	}
	return nil
}

// Done is closed once a callback has returned Stop
func (o *Oto) Done() <-chan struct{} {
	return o.gate.doneChan()
}
