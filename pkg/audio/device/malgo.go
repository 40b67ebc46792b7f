// ABOUTME: Malgo-based duplex device using miniaudio
// ABOUTME: Opens capture and playback as one float32 stream with a fixed period
package device

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"unsafe"

	"github.com/gen2brain/malgo"
)

// Malgo duplex device implementation using malgo/miniaudio library
type Malgo struct {
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	gate     *gate
	cfg      Config
	running  bool
	mu       sync.Mutex
}

// NewMalgo creates a new Malgo device
func NewMalgo() *Malgo {
	return &Malgo{}
}

// Open initializes the miniaudio context and duplex device
func (m *Malgo) Open(cfg Config, process ProcessFunc) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return fmt.Errorf("%w: device already open", ErrStreamOpenFailed)
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to initialize malgo context: %v", ErrDeviceUnavailable, err)
	}

	deviceType := malgo.Duplex
	if cfg.InputChannels == 0 {
		deviceType = malgo.Playback
	}

	deviceConfig := malgo.DefaultDeviceConfig(deviceType)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(cfg.OutputChannels)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(cfg.InputChannels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(cfg.PeriodFrames)
	deviceConfig.Alsa.NoMMap = 1

	if cfg.DeviceName != "" {
		if id, ok := findMalgoDevice(ctx, malgo.Playback, cfg.DeviceName); ok {
			deviceConfig.Playback.DeviceID = id.Pointer()
		} else {
			log.Printf("Audio device %q not found, using default output", cfg.DeviceName)
		}
		if deviceType == malgo.Duplex {
			if id, ok := findMalgoDevice(ctx, malgo.Capture, cfg.DeviceName); ok {
				deviceConfig.Capture.DeviceID = id.Pointer()
			}
		}
	}

	g := newGate(process)
	onSamples := func(pOutputSample, pInputSamples []byte, frameCount uint32) {
		g.run(asFloat32(pInputSamples), asFloat32(pOutputSample))
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSamples,
	})
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("%w: failed to initialize duplex device: %v", ErrStreamOpenFailed, err)
	}

	m.malgoCtx = ctx
	m.device = device
	m.gate = g
	m.cfg = cfg

	log.Printf("Audio device opened: %dHz, %d in / %d out channels, %d frames/period (malgo/F32)",
		cfg.SampleRate, cfg.InputChannels, cfg.OutputChannels, cfg.PeriodFrames)
	return nil
}

// Start begins callbacks
func (m *Malgo) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return fmt.Errorf("device not open")
	}
	if m.running {
		return nil
	}
	if err := m.device.Start(); err != nil {
		return fmt.Errorf("failed to start device: %w", err)
	}
	m.running = true
	return nil
}

// Stop halts callbacks
func (m *Malgo) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil || !m.running {
		return nil
	}
	m.running = false
	if err := m.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop device: %w", err)
	}
	return nil
}

// Close releases device resources
func (m *Malgo) Close() error {
	if err := m.Stop(); err != nil {
		log.Printf("Warning: device stop error: %v", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		m.device.Uninit()
		m.device = nil
	}
	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}

// Done is closed once a callback has returned Stop
func (m *Malgo) Done() <-chan struct{} {
	return m.gate.doneChan()
}

func findMalgoDevice(ctx *malgo.AllocatedContext, kind malgo.DeviceType, name string) (malgo.DeviceID, bool) {
	infos, err := ctx.Devices(kind)
	if err != nil {
		return malgo.DeviceID{}, false
	}
	for _, info := range infos {
		if strings.Contains(strings.ToLower(info.Name()), strings.ToLower(name)) {
			return info.ID, true
		}
	}
	return malgo.DeviceID{}, false
}

// asFloat32 reinterprets a native-endian F32 byte buffer without copying
func asFloat32(b []byte) []float32 {
	if len(b) < 4 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/4)
}
