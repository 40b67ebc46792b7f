// ABOUTME: Turns a stream of I/Q datagrams into windowed FFT spectra
// ABOUTME: Non-overlapping N-pair windows, Hann weighted, published latest-wins
package spectrum

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"math"
	"math/cmplx"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"github.com/smallnest/ringbuffer"
)

var ErrMalformedDatagram = errors.New("malformed datagram")

const (
	DefaultSize = 1024

	// MaxSize keeps the bin count within the uint16 of a spectrum message
	MaxSize = 32768

	// Bytes per interleaved float32 (I,Q) pair
	pairBytes = 8

	// Window storage holds this many analysis blocks
	windowBlocks = 16

	// Malformed datagrams are logged at most once per interval
	dropLogInterval = 10 * time.Second

	// 20*log10 floor for a zero magnitude
	magnitudeFloor = 1e-10
)

// Frame is one completed spectrum. Bins[Size/2] is the center frequency.
type Frame struct {
	Seq         uint64
	Time        time.Time
	Size        int
	Bins        []float32 // dB
	CenterHz    int64
	BandwidthHz int
	BinWidthHz  float64
}

// Peak returns the index and level of the strongest bin
func (f *Frame) Peak() (int, float32) {
	if len(f.Bins) == 0 {
		return 0, 0
	}
	best := 0
	for i, v := range f.Bins {
		if v > f.Bins[best] {
			best = i
		}
	}
	return best, f.Bins[best]
}

// Config holds analyzer settings
type Config struct {
	Size        int // pairs per analysis, power of two
	Gain        float64
	CenterHz    int64
	BandwidthHz int
	Debug       bool
}

// Stats counts analyzer activity
type Stats struct {
	Accepted uint64
	Dropped  uint64
	Frames   uint64
	Pending  int // pairs waiting in the window
}

// Analyzer consumes datagrams on the receiver goroutine
type Analyzer struct {
	size  int
	debug bool

	mu      sync.Mutex // guards window and scratch
	window  *ringbuffer.RingBuffer
	block   []byte
	samples []complex128
	hann    []float64

	gain      atomic.Uint64 // float64 bits
	center    atomic.Int64
	bandwidth atomic.Int64

	latest atomic.Pointer[Frame]
	seq    atomic.Uint64

	subMu sync.Mutex
	subs  map[chan struct{}]struct{}

	accepted atomic.Uint64
	dropped  atomic.Uint64

	lastDropLog atomic.Int64 // unix nanoseconds
	now         func() time.Time
}

// New creates an analyzer
func New(cfg Config) (*Analyzer, error) {
	if cfg.Size == 0 {
		cfg.Size = DefaultSize
	}
	if cfg.Size < 2 || cfg.Size&(cfg.Size-1) != 0 {
		return nil, fmt.Errorf("fft size %d is not a power of two", cfg.Size)
	}
	if cfg.Size > MaxSize {
		return nil, fmt.Errorf("fft size %d exceeds %d", cfg.Size, MaxSize)
	}
	if cfg.Gain == 0 {
		cfg.Gain = 1
	}

	a := &Analyzer{
		size:    cfg.Size,
		debug:   cfg.Debug,
		window:  ringbuffer.New(windowBlocks * cfg.Size * pairBytes),
		block:   make([]byte, cfg.Size*pairBytes),
		samples: make([]complex128, cfg.Size),
		hann:    window.Hann(cfg.Size),
		subs:    make(map[chan struct{}]struct{}),
		now:     time.Now,
	}
	if err := a.SetGain(cfg.Gain); err != nil {
		return nil, err
	}
	a.center.Store(cfg.CenterHz)
	a.bandwidth.Store(int64(cfg.BandwidthHz))
	return a, nil
}

// Size returns the number of pairs per frame
func (a *Analyzer) Size() int {
	return a.size
}

// SetGain sets the linear scaling applied before windowing
func (a *Analyzer) SetGain(g float64) error {
	if math.IsNaN(g) || math.IsInf(g, 0) || g <= 0 {
		return fmt.Errorf("invalid analyzer gain %v", g)
	}
	a.gain.Store(math.Float64bits(g))
	return nil
}

// shouldLogDrop reports whether dropLogInterval has passed since the last drop log
func (a *Analyzer) shouldLogDrop() bool {
	now := a.now().UnixNano()
	last := a.lastDropLog.Load()
	if last != 0 && now-last < int64(dropLogInterval) {
		return false
	}
	return a.lastDropLog.CompareAndSwap(last, now)
}

// SetCenter sets the frequency reported with new frames
func (a *Analyzer) SetCenter(hz int64) {
	a.center.Store(hz)
}

// SetBandwidth sets the bandwidth reported with new frames
func (a *Analyzer) SetBandwidth(hz int) {
	a.bandwidth.Store(int64(hz))
}

// Ingest appends the pairs in b and analyzes every complete window.
// Malformed datagrams leave the window untouched.
func (a *Analyzer) Ingest(b []byte) error {
	if len(b) < pairBytes || len(b)%pairBytes != 0 {
		dropped := a.dropped.Add(1)
		if a.debug {
			log.Printf("[DEBUG] Spectrum: dropped %d byte datagram", len(b))
		} else if a.shouldLogDrop() {
			log.Printf("Spectrum: dropping malformed datagrams (%d bytes, %d dropped so far)", len(b), dropped)
		}
		return fmt.Errorf("%w: %d bytes", ErrMalformedDatagram, len(b))
	}
	a.accepted.Add(1)

	a.mu.Lock()
	defer a.mu.Unlock()

	for len(b) > 0 {
		// Free space is always a whole number of pairs
		n := min(len(b), a.window.Free())
		if _, err := a.window.Write(b[:n]); err != nil {
			return fmt.Errorf("failed to buffer datagram: %w", err)
		}
		b = b[n:]

		for a.window.Length() >= len(a.block) {
			if _, err := a.window.Read(a.block); err != nil {
				return fmt.Errorf("failed to read analysis window: %w", err)
			}
			a.analyze()
		}
	}
	return nil
}

// analyze transforms a.block and publishes the frame
func (a *Analyzer) analyze() {
	gain := math.Float64frombits(a.gain.Load())
	for k := 0; k < a.size; k++ {
		i := math.Float32frombits(binary.LittleEndian.Uint32(a.block[k*pairBytes:]))
		q := math.Float32frombits(binary.LittleEndian.Uint32(a.block[k*pairBytes+4:]))
		w := gain * a.hann[k]
		a.samples[k] = complex(float64(i)*w, float64(q)*w)
	}

	spectrum := fft.FFT(a.samples)

	bins := make([]float32, a.size)
	half := a.size / 2
	for k := 0; k < a.size; k++ {
		mag := cmplx.Abs(spectrum[(k+half)%a.size])
		bins[k] = float32(20 * math.Log10(math.Max(mag, magnitudeFloor)))
	}

	bw := int(a.bandwidth.Load())
	frame := &Frame{
		Seq:         a.seq.Add(1),
		Time:        time.Now(),
		Size:        a.size,
		Bins:        bins,
		CenterHz:    a.center.Load(),
		BandwidthHz: bw,
		BinWidthHz:  float64(bw) / float64(a.size),
	}
	a.latest.Store(frame)

	if a.debug {
		idx, level := frame.Peak()
		log.Printf("[DEBUG] Spectrum: frame %d peak bin %d at %.1f dB", frame.Seq, idx, level)
	}

	a.notify()
}

// Latest returns the most recent frame, or nil before the first
func (a *Analyzer) Latest() *Frame {
	return a.latest.Load()
}

// Subscribe returns a channel that receives a token whenever a new frame is
// ready. Notifications coalesce; read Latest after each token.
func (a *Analyzer) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	a.subMu.Lock()
	a.subs[ch] = struct{}{}
	a.subMu.Unlock()

	return ch, func() {
		a.subMu.Lock()
		delete(a.subs, ch)
		a.subMu.Unlock()
	}
}

func (a *Analyzer) notify() {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	for ch := range a.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Stats returns counters
func (a *Analyzer) Stats() Stats {
	a.mu.Lock()
	pending := a.window.Length() / pairBytes
	a.mu.Unlock()

	return Stats{
		Accepted: a.accepted.Load(),
		Dropped:  a.dropped.Load(),
		Frames:   a.seq.Load(),
		Pending:  pending,
	}
}

// Reset discards buffered pairs
func (a *Analyzer) Reset() {
	a.mu.Lock()
	a.window.Reset()
	a.mu.Unlock()
}
