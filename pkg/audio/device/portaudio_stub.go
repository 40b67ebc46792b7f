//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package device

import (
	"fmt"
)

// PortAudio device implementation (stub)
type PortAudio struct{}

// NewPortAudio creates a new PortAudio device
func NewPortAudio() *PortAudio {
	return &PortAudio{}
}

// Open reports that the backend is not compiled in
func (p *PortAudio) Open(cfg Config, process ProcessFunc) error {
	return fmt.Errorf("%w: PortAudio support not enabled (build with -tags portaudio)", ErrDeviceUnavailable)
}

// Start is unreachable without Open
func (p *PortAudio) Start() error {
	return fmt.Errorf("PortAudio support not enabled (build with -tags portaudio)")
}

// Stop is a no-op
func (p *PortAudio) Stop() error { return nil }

// Close is a no-op
func (p *PortAudio) Close() error { return nil }

// Done is always closed
func (p *PortAudio) Done() <-chan struct{} { return closedChan }
