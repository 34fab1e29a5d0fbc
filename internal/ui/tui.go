// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and the channels it drives the player through
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Controls carries user input from the TUI to the player
type Controls struct {
	Changes chan VolumeChangeMsg
	Rewind  chan time.Duration
	Target  chan time.Duration
	Quit    chan QuitMsg
}

// VolumeChangeMsg is sent when the user changes volume or mute
type VolumeChangeMsg struct {
	Volume int
	Muted  bool
}

// QuitMsg is sent when the user quits
type QuitMsg struct{}

// NewControls creates a new control handler
func NewControls() *Controls {
	return &Controls{
		Changes: make(chan VolumeChangeMsg, 10),
		Rewind:  make(chan time.Duration, 1),
		Target:  make(chan time.Duration, 1),
		Quit:    make(chan QuitMsg, 1),
	}
}

// NewModel creates a new TUI model
func NewModel(ctrl *Controls) Model {
	return Model{
		volume:   100,
		controls: ctrl,
	}
}

// Run creates the TUI program; the caller runs it
func Run(ctrl *Controls) *tea.Program {
	return tea.NewProgram(NewModel(ctrl), tea.WithAltScreen())
}
