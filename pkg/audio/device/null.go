// ABOUTME: Headless clock-driven device with no audio hardware
// ABOUTME: Calls the process function on a ticker at the period rate
package device

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Null drives callbacks from a ticker. Input is silence unless Source is set.
type Null struct {
	// Source fills each input period before the callback runs
	Source func(in []float32)

	cfg    Config
	gate   *gate
	in     []float32
	out    []float32
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewNull creates a headless device
func NewNull() *Null {
	return &Null{}
}

// Open allocates period buffers
func (n *Null) Open(cfg Config, process ProcessFunc) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.gate != nil {
		return fmt.Errorf("%w: device already open", ErrStreamOpenFailed)
	}

	n.cfg = cfg
	n.gate = newGate(process)
	n.in = make([]float32, cfg.PeriodFrames*cfg.InputChannels)
	n.out = make([]float32, cfg.PeriodFrames*cfg.OutputChannels)

	log.Printf("Audio device opened: null %dHz, %d frames/period", cfg.SampleRate, cfg.PeriodFrames)
	return nil
}

// Start launches the period ticker
func (n *Null) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.gate == nil {
		return fmt.Errorf("device not open")
	}
	if n.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel

	period := time.Duration(n.cfg.PeriodFrames) * time.Second / time.Duration(n.cfg.SampleRate)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n.Tick()
			}
		}
	}()
	return nil
}

// Tick runs a single period synchronously
func (n *Null) Tick() {
	if n.gate == nil {
		return
	}
	if n.Source != nil {
		n.Source(n.in)
	}
	n.gate.run(n.in, n.out)
}

// Output returns the most recent output period
func (n *Null) Output() []float32 {
	return n.out
}

// Stop waits for the running period to finish
func (n *Null) Stop() error {
	n.mu.Lock()
	cancel := n.cancel
	n.cancel = nil
	n.mu.Unlock()

	if cancel != nil {
		cancel()
		n.wg.Wait()
	}
	return nil
}

// Close stops the device; it may be opened again afterwards
func (n *Null) Close() error {
	if err := n.Stop(); err != nil {
		return err
	}
	n.mu.Lock()
	n.gate = nil
	n.mu.Unlock()
	return nil
}

// Done is closed once a callback has returned Stop
func (n *Null) Done() <-chan struct{} {
	return n.gate.doneChan()
}
