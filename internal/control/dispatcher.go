// ABOUTME: Parses CAT and TCI text commands and applies them to the console
// ABOUTME: Commands are ';' terminated; replies are concatenated in order
package control

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/harperreed/sdrconsole/internal/console"
	"github.com/harperreed/sdrconsole/internal/radio"
)

// Controller is the console surface reachable from the control plane
type Controller interface {
	SetFrequency(hz int64) error
	SetFrequencyA(hz int64) error
	SetFrequencyB(hz int64) error
	SetVFO(v radio.VFO) error
	SetMode(m radio.Mode) error
	SetBandwidth(hz int) error
	SetFilter(low, high int) error
	SetSampleRate(rate int) error
	SetPreampDB(db float64) error
	SetLoop(loop bool)
	Play(index int) (int, error)
	PlayFile(path string) (int, error)
	Next() (int, error)
	Prev() (int, error)
	StopPlayback()
	StartRecording(channels, sampleRate int) (string, error)
	StopRecording() error
	QuickRecord() (string, error)
	QuickPlay() (int, error)
	Status() console.Status
}

// catError is the Kenwood reply for a rejected command
const catError = "?;"

// Dispatcher executes command strings
type Dispatcher struct {
	ctl   Controller
	debug bool
}

// NewDispatcher creates a dispatcher for ctl
func NewDispatcher(ctl Controller, debug bool) *Dispatcher {
	return &Dispatcher{ctl: ctl, debug: debug}
}

// Execute runs every ';' separated command in input and returns the replies
func (d *Dispatcher) Execute(input string) string {
	var out strings.Builder
	for _, cmd := range strings.Split(input, ";") {
		cmd = strings.TrimSpace(cmd)
		if cmd == "" {
			continue
		}
		if d.debug {
			log.Printf("[DEBUG] Control: %q", cmd)
		}
		if isCAT(cmd) {
			out.WriteString(d.cat(cmd))
		} else {
			out.WriteString(d.tci(cmd))
		}
	}
	return out.String()
}

// isCAT matches two upper-case letters followed by an optional argument
func isCAT(cmd string) bool {
	if len(cmd) < 2 || strings.ContainsRune(cmd, ':') {
		return false
	}
	return isUpper(cmd[0]) && isUpper(cmd[1])
}

func isUpper(b byte) bool {
	return b >= 'A' && b <= 'Z'
}

func (d *Dispatcher) cat(cmd string) string {
	op, arg := cmd[:2], cmd[2:]
	st := d.ctl.Status().Radio

	switch op {
	case "FA", "FB":
		if arg == "" {
			hz := st.Frequency
			if op == "FB" {
				hz = st.FrequencyB
			}
			return fmt.Sprintf("%s%011d;", op, hz)
		}
		if len(arg) > 11 {
			arg = arg[:11]
		}
		hz, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return catError
		}
		set := d.ctl.SetFrequencyA
		if op == "FB" {
			set = d.ctl.SetFrequencyB
		}
		if err := set(hz); err != nil {
			return catError
		}
		return fmt.Sprintf("%s%011d;", op, hz)

	case "MD":
		if arg == "" {
			return "MD" + st.Mode.Digit() + ";"
		}
		m, err := radio.ParseMode(arg[:1])
		if err != nil {
			return catError
		}
		if err := d.ctl.SetMode(m); err != nil {
			return catError
		}
		return "MD" + m.Digit() + ";"

	case "IF":
		return fmt.Sprintf("IF%011d     +0000 0000000000000;", st.ActiveFrequency())
	}

	log.Printf("Control: unsupported CAT command %q", cmd)
	return catError
}

func (d *Dispatcher) tci(cmd string) string {
	name, rest, _ := strings.Cut(cmd, ":")
	name = strings.ToLower(strings.TrimSpace(name))

	var args []string
	if rest = strings.TrimSpace(rest); rest != "" {
		for _, a := range strings.Split(rest, ",") {
			args = append(args, strings.TrimSpace(a))
		}
	}

	reply, err := d.apply(name, args)
	if err != nil {
		log.Printf("Control: %s failed: %v", cmd, err)
		return "ERR:" + Reason(err) + ";"
	}
	if reply != "" {
		return reply
	}
	return "OK;" + cmd + ";"
}

// apply runs one TCI command. A non-empty reply replaces the default OK.
func (d *Dispatcher) apply(name string, args []string) (string, error) {
	switch name {
	case "frequency":
		if len(args) == 0 {
			return fmt.Sprintf("frequency:%d;", d.ctl.Status().Radio.ActiveFrequency()), nil
		}
		hz, err := parseInt(args[0])
		if err != nil {
			return "", err
		}
		return "", d.ctl.SetFrequency(int64(hz))

	case "vfo":
		if len(args) == 0 {
			return fmt.Sprintf("vfo:%s;", d.ctl.Status().Radio.VFO), nil
		}
		v, err := radio.ParseVFO(args[0])
		if err != nil {
			return "", err
		}
		return "", d.ctl.SetVFO(v)

	case "mode":
		if len(args) == 0 {
			return fmt.Sprintf("mode:%s;", d.ctl.Status().Radio.Mode), nil
		}
		m, err := radio.ParseMode(args[0])
		if err != nil {
			return "", err
		}
		return "", d.ctl.SetMode(m)

	case "filter":
		if len(args) == 0 {
			st := d.ctl.Status().Radio
			return fmt.Sprintf("filter:%d,%d;", st.FilterLow, st.FilterHigh), nil
		}
		if len(args) != 2 {
			return "", fmt.Errorf("%w: filter needs low,high", radio.ErrInvalidParameter)
		}
		low, err := parseInt(args[0])
		if err != nil {
			return "", err
		}
		high, err := parseInt(args[1])
		if err != nil {
			return "", err
		}
		return "", d.ctl.SetFilter(low, high)

	case "bandwidth":
		hz, err := requireInt(args)
		if err != nil {
			return "", err
		}
		return "", d.ctl.SetBandwidth(hz)

	case "sample_rate":
		rate, err := requireInt(args)
		if err != nil {
			return "", err
		}
		return "", d.ctl.SetSampleRate(rate)

	case "preamp":
		if len(args) != 1 {
			return "", fmt.Errorf("%w: preamp needs a dB value", radio.ErrInvalidParameter)
		}
		db, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return "", fmt.Errorf("%w: preamp %q", radio.ErrInvalidParameter, args[0])
		}
		return "", d.ctl.SetPreampDB(db)

	case "play":
		var id int
		var err error
		switch {
		case len(args) == 0:
			id, err = d.ctl.Play(-1)
		case isNumber(args[0]):
			idx, _ := strconv.Atoi(args[0])
			id, err = d.ctl.Play(idx)
		default:
			id, err = d.ctl.PlayFile(strings.Join(args, ","))
		}
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("play:%d;", id), nil

	case "next", "prev":
		step := d.ctl.Next
		if name == "prev" {
			step = d.ctl.Prev
		}
		id, err := step()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("play:%d;", id), nil

	case "stop_play":
		d.ctl.StopPlayback()
		return "", nil

	case "loop":
		loop, err := requireBool(args)
		if err != nil {
			return "", err
		}
		d.ctl.SetLoop(loop)
		return "", nil

	case "record":
		channels, rate := 0, 0
		var err error
		if len(args) > 0 {
			if channels, err = parseInt(args[0]); err != nil {
				return "", err
			}
		}
		if len(args) > 1 {
			if rate, err = parseInt(args[1]); err != nil {
				return "", err
			}
		}
		path, err := d.ctl.StartRecording(channels, rate)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("record:%s;", path), nil

	case "stop_record":
		return "", d.ctl.StopRecording()

	case "quick_record":
		path, err := d.ctl.QuickRecord()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("record:%s;", path), nil

	case "quick_play":
		id, err := d.ctl.QuickPlay()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("play:%d;", id), nil

	case "status":
		s := d.ctl.Status()
		return fmt.Sprintf("status:%d,%s,%d,%d,%.1f,%t,%t;",
			s.Radio.Frequency, s.Radio.Mode, s.Radio.Bandwidth, s.Radio.SampleRate,
			s.Radio.PreampDB, s.Playing, s.Recording), nil
	}

	return "", fmt.Errorf("%w: unknown command %q", radio.ErrInvalidParameter, name)
}

func parseInt(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", radio.ErrInvalidParameter, s)
	}
	return v, nil
}

func requireInt(args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: expected one value", radio.ErrInvalidParameter)
	}
	return parseInt(args[0])
}

func requireBool(args []string) (bool, error) {
	if len(args) != 1 {
		return false, fmt.Errorf("%w: expected true or false", radio.ErrInvalidParameter)
	}
	v, err := strconv.ParseBool(args[0])
	if err != nil {
		return false, fmt.Errorf("%w: %q is not a boolean", radio.ErrInvalidParameter, args[0])
	}
	return v, nil
}

func isNumber(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}
