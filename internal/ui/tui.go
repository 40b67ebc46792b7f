// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and the key command channel
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Controls carries key commands out of the TUI
type Controls struct {
	Commands chan string
	Quit     chan struct{}
}

// NewControls creates a control handler
func NewControls() *Controls {
	return &Controls{
		Commands: make(chan string, 10),
		Quit:     make(chan struct{}, 1),
	}
}

func (c *Controls) send(cmd string) {
	if c == nil {
		return
	}
	select {
	case c.Commands <- cmd:
	default:
		// Don't block the UI if nobody is draining
	}
}

func (c *Controls) quit() {
	if c == nil {
		return
	}
	select {
	case c.Quit <- struct{}{}:
	default:
	}
}

// NewModel creates a new TUI model. controls may be nil.
func NewModel(name string, controls *Controls) Model {
	return Model{
		name:      name,
		controls:  controls,
		startTime: time.Now(),
	}
}

// ConsoleTUI manages the bubbletea program
type ConsoleTUI struct {
	program  *tea.Program
	controls *Controls
	updates  chan tea.Msg
}

// New creates a console TUI
func New(name string, controls *Controls) *ConsoleTUI {
	t := &ConsoleTUI{
		controls: controls,
		updates:  make(chan tea.Msg, 10),
	}
	t.program = tea.NewProgram(NewModel(name, controls), tea.WithAltScreen())
	return t
}

// Run blocks until the user quits or Stop is called
func (t *ConsoleTUI) Run() error {
	go func() {
		for msg := range t.updates {
			t.program.Send(msg)
		}
	}()

	_, err := t.program.Run()
	return err
}

// Update sends a status snapshot to the TUI
func (t *ConsoleTUI) Update(status StatusMsg) {
	t.post(status)
}

// Reply shows a command reply
func (t *ConsoleTUI) Reply(reply string) {
	t.post(ReplyMsg(reply))
}

func (t *ConsoleTUI) post(msg tea.Msg) {
	select {
	case t.updates <- msg:
	default:
		// Don't block if channel is full
	}
}

// Stop stops the TUI. Quit blocks until the program has started, so it is
// sent from its own goroutine.
func (t *ConsoleTUI) Stop() {
	go t.program.Quit()
}
