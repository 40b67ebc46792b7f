//go:build portaudio

// ABOUTME: PortAudio duplex device implementation
// ABOUTME: Selects a device by name with fallback to the default output
package device

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudio device implementation
type PortAudio struct {
	stream      *portaudio.Stream
	gate        *gate
	initialized bool
	running     bool
	mu          sync.Mutex
}

// NewPortAudio creates a new PortAudio device
func NewPortAudio() *PortAudio {
	return &PortAudio{}
}

// Open initializes PortAudio and opens a duplex float32 stream
func (p *PortAudio) Open(cfg Config, process ProcessFunc) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		return fmt.Errorf("%w: device already open", ErrStreamOpenFailed)
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: failed to initialize portaudio: %v", ErrDeviceUnavailable, err)
	}
	p.initialized = true

	out, in, err := selectPortAudioDevices(cfg.DeviceName)
	if err != nil {
		p.terminate()
		return err
	}

	inChannels := cfg.InputChannels
	if in == nil || in.MaxInputChannels < inChannels {
		log.Printf("No input device with %d channels, opening output only", inChannels)
		inChannels = 0
		in = nil
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   in,
			Channels: inChannels,
		},
		Output: portaudio.StreamDeviceParameters{
			Device:   out,
			Channels: cfg.OutputChannels,
			Latency:  out.DefaultLowOutputLatency,
		},
		SampleRate:      float64(cfg.SampleRate),
		FramesPerBuffer: cfg.PeriodFrames,
		Flags:           portaudio.ClipOff,
	}
	if in != nil {
		params.Input.Latency = in.DefaultLowInputLatency
	}

	g := newGate(process)
	stream, err := portaudio.OpenStream(params, func(in, out []float32) {
		g.run(in, out)
	})
	if err != nil {
		p.terminate()
		return fmt.Errorf("%w: failed to open stream: %v", ErrStreamOpenFailed, err)
	}

	p.stream = stream
	p.gate = g

	log.Printf("Audio device opened: %s, %dHz, %d frames/period (portaudio)",
		out.Name, cfg.SampleRate, cfg.PeriodFrames)
	return nil
}

// Start begins callbacks
func (p *PortAudio) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return fmt.Errorf("device not open")
	}
	if p.running {
		return nil
	}
	if err := p.stream.Start(); err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}
	p.running = true
	return nil
}

// Stop halts callbacks after the current buffer drains
func (p *PortAudio) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil || !p.running {
		return nil
	}
	p.running = false
	if err := p.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop stream: %w", err)
	}
	return nil
}

// Close releases resources
func (p *PortAudio) Close() error {
	if err := p.Stop(); err != nil {
		log.Printf("Warning: stream stop error: %v", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		if err := p.stream.Close(); err != nil {
			log.Printf("Warning: stream close error: %v", err)
		}
		p.stream = nil
	}
	return p.terminate()
}

// Done is closed once a callback has returned Stop
func (p *PortAudio) Done() <-chan struct{} {
	return p.gate.doneChan()
}

func (p *PortAudio) terminate() error {
	if !p.initialized {
		return nil
	}
	p.initialized = false
	return portaudio.Terminate()
}

// selectPortAudioDevices finds the named device or falls back to the defaults
func selectPortAudioDevices(name string) (out, in *portaudio.DeviceInfo, err error) {
	if name != "" {
		devices, err := portaudio.Devices()
		if err == nil {
			for _, d := range devices {
				if d.MaxOutputChannels > 0 && strings.Contains(strings.ToLower(d.Name), strings.ToLower(name)) {
					log.Printf("Using audio device: %s", d.Name)
					in = nil
					if d.MaxInputChannels > 0 {
						in = d
					}
					return d, in, nil
				}
			}
		}
		log.Printf("Audio device %q not found, using default output", name)
	}

	out, err = portaudio.DefaultOutputDevice()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: no default output device: %v", ErrDeviceUnavailable, err)
	}
	in, err = portaudio.DefaultInputDevice()
	if err != nil {
		in = nil
	}
	return out, in, nil
}
