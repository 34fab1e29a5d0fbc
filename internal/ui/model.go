// ABOUTME: Bubbletea model for the player TUI
// ABOUTME: Renders connection, queue fill and flow control state from player status snapshots
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Resonate-Protocol/blockq/pkg/stream"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	volumeStep   = 5
	rewindStep   = 2 * time.Second
	targetStep   = 250 * time.Millisecond
	boxWidth     = 54
	queueBarSize = 40
)

// Model represents the TUI state
type Model struct {
	status   stream.Status
	controls *Controls

	volume int
	muted  bool

	// Runtime
	goroutines int
	memAlloc   uint64

	showDebug bool

	width  int
	height int
}

// StatusMsg carries a player status snapshot
type StatusMsg struct {
	Status stream.Status
}

// RuntimeMsg carries process statistics for the debug view
type RuntimeMsg struct {
	Goroutines int
	MemAlloc   uint64
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
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
		m.status = msg.Status
		m.volume = msg.Status.Volume
		m.muted = msg.Status.Muted
	case RuntimeMsg:
		m.goroutines = msg.Goroutines
		m.memAlloc = msg.MemAlloc
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString(m.renderQueue())
	b.WriteString(m.renderControls())
	b.WriteString(m.renderStats())
	if m.showDebug {
		b.WriteString(m.renderDebug())
	}
	b.WriteString(m.renderHelp())
	return b.String()
}

// line pads s into one row of the box
func line(format string, args ...interface{}) string {
	return fmt.Sprintf("│ %-*s │\n", boxWidth-4, truncate(fmt.Sprintf(format, args...), boxWidth-4))
}

func (m Model) renderHeader() string {
	conn := "Disconnected"
	if m.status.Connected {
		conn = "Connected to " + m.status.Server
	}
	format := m.status.Format
	if format == "" {
		format = "no stream"
	}

	return "┌─ blockq player " + strings.Repeat("─", boxWidth-19) + "┐\n" +
		line("Status: %s", conn) +
		line("Stream: %s (%s)", format, m.status.State) +
		"├" + strings.Repeat("─", boxWidth-2) + "┤\n"
}

// renderQueue draws the readable span against maxlength with the target marked
func (m Model) renderQueue() string {
	s := m.status
	if s.Attr.MaxLength == 0 {
		return line("Queue: waiting for stream")
	}

	return line("Queue: [%s]", queueBar(s.Length, s.Attr.TLength, s.Attr.MaxLength, queueBarSize)) +
		line("  %v buffered of %v target, %d blocks", s.Buffered.Round(time.Millisecond), s.Target, s.Blocks) +
		line("  read %d  write %d", s.ReadIndex, s.WriteIndex) +
		line("  missing %d  requested %d", s.Missing, s.Requested)
}

func (m Model) renderControls() string {
	mute := ""
	if m.muted {
		mute = " (muted)"
	}
	return line("") + line("Volume: [%s] %d%%%s", renderBar(m.volume, 100, 10), m.volume, mute)
}

func (m Model) renderStats() string {
	q := m.status.Queue
	return "├" + strings.Repeat("─", boxWidth-2) + "┤\n" +
		line("Frames: %d  Late: %d  Played: %d", m.status.Frames, m.status.Late, m.status.Played) +
		line("Underruns: %d  Overruns: %d  Starved ticks: %d", q.Underruns, q.Overruns, m.status.Starved)
}

func (m Model) renderDebug() string {
	q := m.status.Queue
	return line("DEBUG:") +
		line("  Pushes: %d  Merges: %d  Rewound: %d", q.Pushes, q.Merges, q.BytesRewound) +
		line("  Trimmed frames: %d", m.status.Trimmed) +
		line("  Attr: max %d tlen %d pre %d minreq %d", m.status.Attr.MaxLength, m.status.Attr.TLength, m.status.Attr.Prebuf, m.status.Attr.MinReq) +
		line("  Goroutines: %d  Heap: %.1f MiB", m.goroutines, float64(m.memAlloc)/(1<<20))
}

func (m Model) renderHelp() string {
	return line("↑/↓:Volume  [/]:Target  m:Mute  r:Rewind  d:Debug  q:Quit") +
		"└" + strings.Repeat("─", boxWidth-2) + "┘\n"
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.controls != nil {
			select {
			case m.controls.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case "up":
		m.volume = min(m.volume+volumeStep, 100)
		m.sendVolume()
	case "down":
		m.volume = max(m.volume-volumeStep, 0)
		m.sendVolume()
	case "m":
		m.muted = !m.muted
		m.sendVolume()
	case "r":
		if m.controls != nil {
			select {
			case m.controls.Rewind <- rewindStep:
			default:
			}
		}
	case "[":
		m.sendTarget(m.status.Target - targetStep)
	case "]":
		m.sendTarget(m.status.Target + targetStep)
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// sendVolume forwards the volume state without blocking the UI
func (m Model) sendVolume() {
	if m.controls == nil {
		return
	}
	select {
	case m.controls.Changes <- VolumeChangeMsg{Volume: m.volume, Muted: m.muted}:
	default:
	}
}

// sendTarget asks for a new target length, never below one step
func (m Model) sendTarget(target time.Duration) {
	if m.controls == nil {
		return
	}
	select {
	case m.controls.Target <- max(target, targetStep):
	default:
	}
}

// queueBar fills the readable part of the queue and marks the target length
func queueBar(length, target, maxLength, width int) string {
	filled := min(length*width/maxLength, width)
	mark := min(target*width/maxLength, width-1)

	var b strings.Builder
	for i := 0; i < width; i++ {
		switch {
		case i == mark:
			b.WriteString("|")
		case i < filled:
			b.WriteString("█")
		default:
			b.WriteString("░")
		}
	}
	return b.String()
}

func renderBar(value, max, width int) string {
	filled := (value * width) / max
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len([]rune(s)) <= length {
		return s
	}
	return string([]rune(s)[:length-3]) + "..."
}
