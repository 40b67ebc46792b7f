// ABOUTME: Tuner and console state with validated setters
// ABOUTME: Rejected values leave state unchanged and notify no observers
package radio

import (
	"errors"
	"fmt"
	"log"
	"math"
	"slices"
	"sync"
)

var ErrInvalidParameter = errors.New("invalid parameter")

const (
	MinFrequency = 100_000
	MaxFrequency = 30_000_000

	MinBandwidth  = 100
	MaxBandwidth  = 10_000
	MaxFilterEdge = 10_000

	MinPreampDB = -70
	MaxPreampDB = 70

	DefaultFrequency  = 7_000_000
	DefaultBandwidth  = 3000
	DefaultSampleRate = 48000
	DefaultStepSize   = 100
)

// SampleRates are the receiver rates the console accepts
var SampleRates = []int{6000, 12000, 24000, 48000, 96000, 192000, 384000}

// RecordSampleRates are the rates offered for recordings
var RecordSampleRates = []int{8000, 11025, 12000, 16000, 22050, 24000, 44100, 48000, 96000, 192000}

// State is a snapshot of the console settings
type State struct {
	Frequency  int64
	FrequencyB int64
	VFO        VFO
	StepSize   int
	Mode       Mode
	FilterLow  int
	FilterHigh int
	Bandwidth  int
	SampleRate int
	PreampDB   float64
}

// ActiveFrequency returns the frequency of the VFO being received.
// Split receives on VFO A.
func (s State) ActiveFrequency() int64 {
	if s.VFO == VFOB {
		return s.FrequencyB
	}
	return s.Frequency
}

// PreampGain returns the linear preamp gain
func (s State) PreampGain() float32 {
	return DBToGain(s.PreampDB)
}

// Observer is notified with the new state after every accepted change
type Observer func(State)

// Radio holds the console state
type Radio struct {
	state     State
	observers []Observer
	mu        sync.RWMutex
}

// New creates a radio with the console defaults
func New() *Radio {
	return &Radio{
		state: State{
			Frequency:  DefaultFrequency,
			FrequencyB: DefaultFrequency,
			VFO:        VFOA,
			StepSize:   DefaultStepSize,
			Mode:       USB,
			FilterLow:  100,
			FilterHigh: 100 + DefaultBandwidth,
			Bandwidth:  DefaultBandwidth,
			SampleRate: DefaultSampleRate,
		},
	}
}

// Subscribe registers an observer
func (r *Radio) Subscribe(o Observer) {
	r.mu.Lock()
	r.observers = append(r.observers, o)
	r.mu.Unlock()
}

// State returns the current snapshot
func (r *Radio) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// update applies fn under the lock and notifies observers if it succeeds
func (r *Radio) update(fn func(s *State) error) error {
	r.mu.Lock()
	next := r.state
	if err := fn(&next); err != nil {
		r.mu.Unlock()
		log.Printf("Radio: %v", err)
		return err
	}
	r.state = next
	observers := slices.Clone(r.observers)
	r.mu.Unlock()

	for _, o := range observers {
		o(next)
	}
	return nil
}

// SetFrequency tunes the active VFO
func (r *Radio) SetFrequency(hz int64) error {
	return r.update(func(s *State) error {
		if hz < MinFrequency || hz > MaxFrequency {
			return fmt.Errorf("%w: frequency %d Hz outside %d-%d", ErrInvalidParameter, hz, MinFrequency, MaxFrequency)
		}
		if s.VFO == VFOB {
			s.FrequencyB = hz
		} else {
			s.Frequency = hz
		}
		return nil
	})
}

// SetFrequencyA tunes VFO A whichever VFO is selected
func (r *Radio) SetFrequencyA(hz int64) error {
	return r.update(func(s *State) error {
		if hz < MinFrequency || hz > MaxFrequency {
			return fmt.Errorf("%w: frequency %d Hz outside %d-%d", ErrInvalidParameter, hz, MinFrequency, MaxFrequency)
		}
		s.Frequency = hz
		return nil
	})
}

// SetFrequencyB tunes VFO B
func (r *Radio) SetFrequencyB(hz int64) error {
	return r.update(func(s *State) error {
		if hz < MinFrequency || hz > MaxFrequency {
			return fmt.Errorf("%w: frequency %d Hz outside %d-%d", ErrInvalidParameter, hz, MinFrequency, MaxFrequency)
		}
		s.FrequencyB = hz
		return nil
	})
}

// Step moves the active VFO by n steps
func (r *Radio) Step(n int) error {
	st := r.State()
	return r.SetFrequency(st.ActiveFrequency() + int64(n*st.StepSize))
}

// SetStepSize sets the tuning step
func (r *Radio) SetStepSize(hz int) error {
	return r.update(func(s *State) error {
		if hz <= 0 || hz > 1_000_000 {
			return fmt.Errorf("%w: step size %d Hz", ErrInvalidParameter, hz)
		}
		s.StepSize = hz
		return nil
	})
}

// SetVFO selects VFO A, VFO B or split operation
func (r *Radio) SetVFO(v VFO) error {
	return r.update(func(s *State) error {
		if v < VFOA || v > Split {
			return fmt.Errorf("%w: vfo %d", ErrInvalidParameter, v)
		}
		s.VFO = v
		return nil
	})
}

// SetMode sets the demodulation mode
func (r *Radio) SetMode(m Mode) error {
	return r.update(func(s *State) error {
		if !m.Valid() {
			return fmt.Errorf("%w: mode %d", ErrInvalidParameter, m)
		}
		s.Mode = m
		return nil
	})
}

// SetBandwidth sets the filter width, keeping the low edge where possible
func (r *Radio) SetBandwidth(hz int) error {
	return r.update(func(s *State) error {
		if hz < MinBandwidth || hz > MaxBandwidth {
			return fmt.Errorf("%w: bandwidth %d Hz outside %d-%d", ErrInvalidParameter, hz, MinBandwidth, MaxBandwidth)
		}
		s.Bandwidth = hz
		low := s.FilterLow
		if low+hz > MaxFilterEdge {
			low = MaxFilterEdge - hz
		}
		s.FilterLow = low
		s.FilterHigh = low + hz
		return nil
	})
}

// SetFilter sets the passband edges in Hz relative to the carrier
func (r *Radio) SetFilter(low, high int) error {
	return r.update(func(s *State) error {
		if low >= high || low < -MaxFilterEdge || high > MaxFilterEdge {
			return fmt.Errorf("%w: filter %d..%d Hz", ErrInvalidParameter, low, high)
		}
		s.FilterLow = low
		s.FilterHigh = high
		s.Bandwidth = high - low
		return nil
	})
}

// SetSampleRate sets the receiver sample rate
func (r *Radio) SetSampleRate(rate int) error {
	return r.update(func(s *State) error {
		if !slices.Contains(SampleRates, rate) {
			return fmt.Errorf("%w: sample rate %d", ErrInvalidParameter, rate)
		}
		s.SampleRate = rate
		return nil
	})
}

// SetPreampDB sets the playback preamp in dB
func (r *Radio) SetPreampDB(db float64) error {
	return r.update(func(s *State) error {
		if err := ValidatePreampDB(db); err != nil {
			return err
		}
		s.PreampDB = db
		return nil
	})
}

// ValidatePreampDB checks the preamp range
func ValidatePreampDB(db float64) error {
	if math.IsNaN(db) || db < MinPreampDB || db > MaxPreampDB {
		return fmt.Errorf("%w: preamp %.1f dB outside %d..%d", ErrInvalidParameter, db, MinPreampDB, MaxPreampDB)
	}
	return nil
}

// DBToGain converts decibels to a linear amplitude factor
func DBToGain(db float64) float32 {
	return float32(math.Pow(10, db/20))
}

// ValidRecordFormat checks recording channels and sample rate
func ValidRecordFormat(channels, sampleRate int) error {
	if channels != 1 && channels != 2 {
		return fmt.Errorf("%w: %d recording channels", ErrInvalidParameter, channels)
	}
	if !slices.Contains(RecordSampleRates, sampleRate) {
		return fmt.Errorf("%w: recording sample rate %d", ErrInvalidParameter, sampleRate)
	}
	return nil
}
