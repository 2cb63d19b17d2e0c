// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and the key control channels
package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// MuteMsg requests a mute change
type MuteMsg struct {
	Muted bool
}

// RegionMsg requests a core region change
type RegionMsg struct {
	Region string
}

// QuitMsg requests shutdown
type QuitMsg struct{}

// Controls holds channels the TUI reports key actions on
type Controls struct {
	Mute   chan MuteMsg
	Region chan RegionMsg
	Quit   chan QuitMsg
}

// NewControls creates a new control handler
func NewControls() *Controls {
	return &Controls{
		Mute:   make(chan MuteMsg, 10),
		Region: make(chan RegionMsg, 10),
		Quit:   make(chan QuitMsg, 1),
	}
}

func (c *Controls) quit() {
	if c == nil {
		return
	}
	select {
	case c.Quit <- QuitMsg{}:
	default:
	}
}

func (c *Controls) mute(muted bool) {
	if c == nil {
		return
	}
	select {
	case c.Mute <- MuteMsg{Muted: muted}:
	default:
	}
}

func (c *Controls) region(region string) {
	if c == nil {
		return
	}
	select {
	case c.Region <- RegionMsg{Region: region}:
	default:
	}
}

// TUI runs the status display
type TUI struct {
	program *tea.Program
	updates chan Status

	mu      sync.Mutex
	stopped bool
}

// New creates a TUI reporting key actions on controls
func New(controls *Controls) *TUI {
	return &TUI{
		program: tea.NewProgram(NewModel(controls), tea.WithAltScreen()),
		updates: make(chan Status, 10),
	}
}

// Start runs the TUI until the user quits or Stop is called
func (t *TUI) Start() error {
	go func() {
		for status := range t.updates {
			t.program.Send(StatusMsg(status))
		}
	}()

	_, err := t.program.Run()
	return err
}

// Update sends a status update to the TUI
func (t *TUI) Update(status Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}

	select {
	case t.updates <- status:
	default:
		// Don't block if channel is full
	}
}

// Stop stops the TUI
func (t *TUI) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true

	t.program.Quit()
	close(t.updates)
}
