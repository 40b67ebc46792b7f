//go:build !oto

// ABOUTME: Oto stub when the output-only backend is not compiled in
// ABOUTME: Keeps backend selection working without ALSA development headers
package device

import (
	"fmt"
)

// Oto device implementation (stub)
type Oto struct{}

// NewOto creates a new Oto device
func NewOto() *Oto {
	return &Oto{}
}

// Open reports that the backend is not compiled in
func (o *Oto) Open(cfg Config, process ProcessFunc) error {
	return fmt.Errorf("%w: oto support not enabled (build with -tags oto)", ErrDeviceUnavailable)
}

// Start is unreachable without Open
func (o *Oto) Start() error {
	return fmt.Errorf("oto support not enabled (build with -tags oto)")
}

// Stop is a no-op
func (o *Oto) Stop() error { return nil }

// Close is a no-op
func (o *Oto) Close() error { return nil }

// Done is always closed
func (o *Oto) Done() <-chan struct{} { return closedChan }
