// ABOUTME: Bubbletea model for the console TUI
// ABOUTME: Renders tuning, audio and feed state and turns keys into control commands
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/harperreed/sdrconsole/internal/console"
	"github.com/harperreed/sdrconsole/internal/engine"
	"github.com/harperreed/sdrconsole/internal/radio"
	"github.com/harperreed/sdrconsole/internal/spectrum"
)

const (
	// Frequency step for left/right
	coarseStep = 1000

	sparkWidth = 64
)

var modeCycle = []radio.Mode{radio.LSB, radio.USB, radio.AM, radio.CW}

// Model represents the TUI state
type Model struct {
	name string

	// Console
	status console.Status

	// Audio and analyzer
	engine   engine.Stats
	analyzer spectrum.Stats
	bins     []float32
	peakHz   float64
	peakDB   float32

	// Feed
	clients     int
	feedSent    uint64
	feedDropped uint64

	lastCommand string
	lastReply   string

	showDebug bool
	quitting  bool
	startTime time.Time

	controls *Controls

	width  int
	height int
}

// StatusMsg carries a fresh snapshot into the TUI
type StatusMsg struct {
	Console     console.Status
	Engine      engine.Stats
	Analyzer    spectrum.Stats
	Frame       *spectrum.Frame
	Clients     int
	FeedSent    uint64
	FeedDropped uint64
}

// ReplyMsg is the dispatcher reply to the last key command
type ReplyMsg string

type tickMsg time.Time

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	case ReplyMsg:
		m.lastReply = string(msg)
	case tickMsg:
		return m, tickEvery()
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	m.status = msg.Console
	m.engine = msg.Engine
	m.analyzer = msg.Analyzer
	m.clients = msg.Clients
	m.feedSent = msg.FeedSent
	m.feedDropped = msg.FeedDropped

	if msg.Frame != nil {
		m.bins = msg.Frame.Bins
		idx, level := msg.Frame.Peak()
		m.peakDB = level
		m.peakHz = float64(msg.Frame.CenterHz) + float64(idx-msg.Frame.Size/2)*msg.Frame.BinWidthHz
	}
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	st := m.status.Radio

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		m.controls.quit()
		return m, tea.Quit
	case "up":
		m.send(fmt.Sprintf("frequency:%d;", st.ActiveFrequency()+int64(st.StepSize)))
	case "down":
		m.send(fmt.Sprintf("frequency:%d;", st.ActiveFrequency()-int64(st.StepSize)))
	case "right":
		m.send(fmt.Sprintf("frequency:%d;", st.ActiveFrequency()+coarseStep))
	case "left":
		m.send(fmt.Sprintf("frequency:%d;", st.ActiveFrequency()-coarseStep))
	case "m":
		m.send(fmt.Sprintf("mode:%s;", nextMode(st.Mode)))
	case "+", "=":
		m.send(fmt.Sprintf("preamp:%.1f;", st.PreampDB+1))
	case "-":
		m.send(fmt.Sprintf("preamp:%.1f;", st.PreampDB-1))
	case "p":
		m.send("play;")
	case "s":
		m.send("stop_play;")
	case "n":
		m.send("next;")
	case "b":
		m.send("prev;")
	case "l":
		m.send(fmt.Sprintf("loop:%t;", !m.status.Loop))
	case "r":
		if m.status.Recording {
			m.send("stop_record;")
		} else {
			m.send("record;")
		}
	case "R":
		m.send("quick_record;")
	case "P":
		m.send("quick_play;")
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

func (m *Model) send(cmd string) {
	m.lastCommand = cmd
	m.controls.send(cmd)
}

func nextMode(cur radio.Mode) radio.Mode {
	for i, mode := range modeCycle {
		if mode == cur {
			return modeCycle[(i+1)%len(modeCycle)]
		}
	}
	return modeCycle[0]
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Shutting down console...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		MarginBottom(1)

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250"))

	spectrumStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("220"))

	field := func(b *strings.Builder, label, value string) {
		b.WriteString(headerStyle.Render(label + ": "))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}

	st := m.status.Radio
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.name))
	b.WriteString("\n\n")

	field(&b, "Frequency", fmt.Sprintf("%s  %s  step %d Hz", formatFrequency(st.ActiveFrequency()), st.VFO, st.StepSize))
	field(&b, "Mode", fmt.Sprintf("%s  filter %d..%d Hz  bw %d Hz", st.Mode, st.FilterLow, st.FilterHigh, st.Bandwidth))
	field(&b, "Receiver", fmt.Sprintf("%d Hz  preamp %+.1f dB", st.SampleRate, st.PreampDB))
	b.WriteString("\n")

	field(&b, "Playback", m.playbackLine())
	field(&b, "Recording", m.recordingLine())
	field(&b, "Playlist", fmt.Sprintf("%d items  loop %t", len(m.status.Playlist), m.status.Loop))
	b.WriteString("\n")

	field(&b, "Spectrum", fmt.Sprintf("peak %s at %.1f dB  frames %d  dropped %d",
		formatFrequency(int64(m.peakHz)), m.peakDB, m.analyzer.Frames, m.analyzer.Dropped))
	b.WriteString(spectrumStyle.Render(sparkline(m.bins, sparkWidth)))
	b.WriteString("\n\n")

	field(&b, "Feed", fmt.Sprintf("%d clients  sent %d  dropped %d", m.clients, m.feedSent, m.feedDropped))
	if m.lastCommand != "" {
		field(&b, "Last", fmt.Sprintf("%s -> %s", m.lastCommand, m.lastReply))
	}

	if m.showDebug {
		b.WriteString("\n")
		b.WriteString(m.renderDebug())
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render(
		"↑/↓:Step  ←/→:1kHz  m:Mode  +/-:Preamp  p/s:Play/Stop  n/b:Next/Prev  l:Loop  r:Record  R/P:Quick  d:Debug  q:Quit"))

	return b.String()
}

func (m Model) playbackLine() string {
	if !m.status.Playing {
		return "idle"
	}
	return fmt.Sprintf("#%d %s", m.status.PlaybackID, truncate(m.status.PlayingPath, 48))
}

func (m Model) recordingLine() string {
	if !m.status.Recording {
		return "idle"
	}
	return fmt.Sprintf("%s (%d KB)", truncate(m.status.RecordingPath, 48), m.status.RecordedBytes/1024)
}

// renderDebug renders engine counters
func (m Model) renderDebug() string {
	e := m.engine
	return fmt.Sprintf("DEBUG: running=%t rate=%d period=%d periods=%d gain=%.3f events dropped=%d analyzer pending=%d uptime=%s\n",
		e.Running, e.SampleRate, e.PeriodFrames, e.Periods, e.Gain, e.DroppedEvents,
		m.analyzer.Pending, time.Since(m.startTime).Round(time.Second))
}

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// sparkline renders bins as width block characters, each column the max of
// its bins, scaled between the lowest and highest column
func sparkline(bins []float32, width int) string {
	if len(bins) == 0 || width <= 0 {
		return ""
	}
	width = min(width, len(bins))

	cols := make([]float32, width)
	for c := range cols {
		start, end := c*len(bins)/width, (c+1)*len(bins)/width
		cols[c] = bins[start]
		for _, v := range bins[start:end] {
			cols[c] = max(cols[c], v)
		}
	}

	lo, hi := cols[0], cols[0]
	for _, v := range cols {
		lo, hi = min(lo, v), max(hi, v)
	}

	var b strings.Builder
	top := float32(len(sparkLevels) - 1)
	for _, v := range cols {
		idx := 0
		if hi > lo {
			idx = int((v-lo)/(hi-lo)*top + 0.5)
		}
		b.WriteRune(sparkLevels[idx])
	}
	return b.String()
}

// formatFrequency renders hz as MHz with kHz grouping, e.g. 7.074.000
func formatFrequency(hz int64) string {
	sign := ""
	if hz < 0 {
		sign, hz = "-", -hz
	}
	return fmt.Sprintf("%s%d.%03d.%03d", sign, hz/1_000_000, hz/1000%1000, hz%1000)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return "..." + s[len(s)-length+3:]
}
