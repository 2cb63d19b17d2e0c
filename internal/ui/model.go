// ABOUTME: Bubbletea model for the engine status TUI
// ABOUTME: Defines display state, key handling and rendering
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/retroaudio/retroaudio/pkg/engine"
)

// Status is a snapshot of everything the TUI shows
type Status struct {
	Core   string
	Output string
	Region string

	Engine engine.Stats

	CoreRate    float64
	Frames      uint64
	EmptyFrames uint64
	Dropped     uint64
}

// StatusMsg updates TUI state
type StatusMsg Status

type tickMsg time.Time

// Model represents the TUI state
type Model struct {
	status    Status
	controls  *Controls
	startTime time.Time
	showDebug bool
	quitting  bool
	width     int
}

// NewModel creates a new TUI model
func NewModel(controls *Controls) Model {
	return Model{
		controls:  controls,
		startTime: time.Now(),
	}
}

// Init starts the refresh tick
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
	case tickMsg:
		return m, tickEvery()
	case StatusMsg:
		m.status = Status(msg)
	}

	return m, nil
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		m.controls.quit()
		return m, tea.Quit
	case "m":
		m.status.Engine.Muted = !m.status.Engine.Muted
		m.controls.mute(m.status.Engine.Muted)
	case "r":
		next := "pal"
		if strings.EqualFold(m.status.Region, "pal") {
			next = "ntsc"
		}
		m.controls.region(next)
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220"))
)

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	st := m.status.Engine
	var b strings.Builder

	b.WriteString(titleStyle.Render("retroaudio"))
	b.WriteString("\n\n")

	field := func(name, value string) {
		b.WriteString(headerStyle.Render(fmt.Sprintf("%-10s", name+":")))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}

	field("Core", fmt.Sprintf("%s (%s)", orDash(m.status.Core), orDash(m.status.Region)))
	field("Output", orDash(m.status.Output))
	field("State", stateText(st))

	conv := "bypass"
	if !st.Bypassed {
		conv = "linear"
	}
	field("Rate", fmt.Sprintf("%.1fHz -> %dHz (%s)", st.SourceRate, st.TargetRate, conv))

	fill := 0
	if st.Capacity > 0 {
		fill = st.Occupied * 100 / st.Capacity
	}
	field("Buffer", fmt.Sprintf("[%s] %d/%d bytes", renderBar(fill, 100, 20), st.Occupied, st.Capacity))

	underruns := fmt.Sprintf("%d underruns, %d silent bytes", st.Underruns, st.SilenceBytes)
	if st.Underruns > 0 {
		underruns = warnStyle.Render(underruns)
	}
	field("Device", underruns)
	field("Producer", fmt.Sprintf("%d blocks, %d stalls (%v)", st.SubmittedBlocks, st.Stalls, st.StallTime.Round(time.Millisecond)))

	if m.showDebug {
		b.WriteString("\n")
		field("Session", orDash(st.SessionID))
		field("Core rate", fmt.Sprintf("%.2fHz", m.status.CoreRate))
		field("Frames", fmt.Sprintf("%d (%d silent, %d dropped)", m.status.Frames, m.status.EmptyFrames, m.status.Dropped))
		field("Uptime", time.Since(m.startTime).Round(time.Second).String())
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("m:Mute  r:Region  d:Debug  q:Quit"))
	return b.String()
}

func stateText(st engine.Stats) string {
	s := st.State.String()
	if st.Reconfiguring {
		s += ", reconfiguring"
	}
	if st.Muted {
		s += ", muted"
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func renderBar(value, max, width int) string {
	if max <= 0 {
		return strings.Repeat("░", width)
	}
	filled := min((value*width)/max, width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
