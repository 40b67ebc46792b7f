// ABOUTME: Demodulation modes and VFO selection
// ABOUTME: Maps between mode names and Kenwood CAT mode digits
package radio

import (
	"fmt"
	"strings"
)

// Mode is a demodulation mode
type Mode int

const (
	LSB Mode = iota + 1
	USB
	AM
	CW
)

var modeNames = map[Mode]string{
	LSB: "LSB",
	USB: "USB",
	AM:  "AM",
	CW:  "CW",
}

// CAT mode digits
var modeDigits = map[Mode]string{
	LSB: "1",
	USB: "2",
	AM:  "3",
	CW:  "6",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Valid reports whether m is a supported mode
func (m Mode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

// Digit returns the CAT mode digit
func (m Mode) Digit() string {
	return modeDigits[m]
}

// ParseMode accepts a mode name (case-insensitive) or a CAT mode digit
func ParseMode(s string) (Mode, error) {
	s = strings.TrimSpace(s)
	for m, name := range modeNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	for m, digit := range modeDigits {
		if s == digit {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: mode %q", ErrInvalidParameter, s)
}

// VFO selects the active oscillator
type VFO int

const (
	VFOA VFO = iota
	VFOB
	Split
)

func (v VFO) String() string {
	switch v {
	case VFOA:
		return "VFO A"
	case VFOB:
		return "VFO B"
	case Split:
		return "Split"
	default:
		return fmt.Sprintf("VFO(%d)", int(v))
	}
}

// ParseVFO accepts "A", "B", "split" or the display names
func ParseVFO(s string) (VFO, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a", "vfo a", "vfoa", "0":
		return VFOA, nil
	case "b", "vfo b", "vfob", "1":
		return VFOB, nil
	case "split":
		return Split, nil
	}
	return 0, fmt.Errorf("%w: vfo %q", ErrInvalidParameter, s)
}
