// ABOUTME: Ordered list of WAV files for the playback controls
// ABOUTME: Manual next wraps around; automatic advance honors the loop flag
package console

import (
	"fmt"
	"slices"
	"sync"

	"github.com/harperreed/sdrconsole/internal/radio"
)

// Playlist tracks files and the current position
type Playlist struct {
	mu      sync.Mutex
	items   []string
	current int
	loop    bool
}

// NewPlaylist creates an empty playlist
func NewPlaylist() *Playlist {
	return &Playlist{current: -1}
}

// Add appends paths and selects the first item if nothing is selected
func (p *Playlist) Add(paths ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = append(p.items, paths...)
	if p.current < 0 && len(p.items) > 0 {
		p.current = 0
	}
}

// Remove deletes the item at index i
func (p *Playlist) Remove(i int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.items) {
		return fmt.Errorf("%w: playlist index %d", radio.ErrInvalidParameter, i)
	}
	p.items = slices.Delete(p.items, i, i+1)
	switch {
	case len(p.items) == 0:
		p.current = -1
	case p.current > i || p.current >= len(p.items):
		p.current--
	}
	return nil
}

// Items returns a copy of the list
func (p *Playlist) Items() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.items)
}

// Len returns the number of items
func (p *Playlist) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

// Current returns the selected index and path
func (p *Playlist) Current() (int, string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current < 0 {
		return -1, "", false
	}
	return p.current, p.items[p.current], true
}

// Select makes index i current
func (p *Playlist) Select(i int) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.items) {
		return "", fmt.Errorf("%w: playlist index %d", radio.ErrInvalidParameter, i)
	}
	p.current = i
	return p.items[i], nil
}

// SetLoop enables wrapping on automatic advance
func (p *Playlist) SetLoop(loop bool) {
	p.mu.Lock()
	p.loop = loop
	p.mu.Unlock()
}

// Loop reports the loop flag
func (p *Playlist) Loop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loop
}

// Next moves forward, wrapping from the last item to the first
func (p *Playlist) Next() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.next()
}

func (p *Playlist) next() (string, bool) {
	if len(p.items) == 0 {
		return "", false
	}
	p.current++
	if p.current >= len(p.items) {
		p.current = 0
	}
	return p.items[p.current], true
}

// Prev moves back; it does not wrap
func (p *Playlist) Prev() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current <= 0 {
		return "", false
	}
	p.current--
	return p.items[p.current], true
}

// Advance is called when the current item finished playing. It returns the
// next item to play, or false when playback should stop.
func (p *Playlist) Advance() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current < 0 {
		return "", false
	}
	if !p.loop && p.current >= len(p.items)-1 {
		return "", false
	}
	return p.next()
}
