// ABOUTME: Bubbletea model for the Talkwire client TUI
// ABOUTME: Renders room roster, live speaker, queue, and keyboard controls
package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// Model represents the TUI state
type Model struct {
	// Connection
	connected  bool
	serverName string
	roomID     string
	userName   string

	// Room
	speakers []string
	users    []string

	// Playback
	liveSpeaker string
	nowPlaying  string
	queued      int
	backlog     []Entry
	replaying   int64

	// Local state
	talking  bool
	deafened bool
	skipping bool
	volume   int
	muted    bool

	// Selection in the backlog list
	selected int

	// Last download result
	lastExport string

	controls *Controls

	width  int
	height int
}

// Entry is one backlog row
type Entry struct {
	ID     int64
	User   string
	Status string
	Chunks int
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
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderRoom()
	s += m.renderQueue()
	s += m.renderControls()
	s += m.renderHelp()

	return s
}

func (m Model) renderHeader() string {
	connStatus := "Disconnected"
	if m.connected {
		connStatus = fmt.Sprintf("Connected to %s", m.serverName)
	}

	return fmt.Sprintf(`┌─ Talkwire ───────────────────────────────────────────┐
│ Status: %-45s│
│ Room:   %-45s│
│ You:    %-45s│
├──────────────────────────────────────────────────────┤
`, truncate(connStatus, 45), truncate(m.roomID, 45), truncate(m.userName, 45))
}

func (m Model) renderRoom() string {
	live := "(nobody)"
	if m.liveSpeaker != "" {
		live = m.liveSpeaker
	}
	if m.skipping {
		live += " [skipped]"
	}

	s := fmt.Sprintf("│ Live:     %-43s│\n", truncate(live, 43))
	s += fmt.Sprintf("│ Speaking: %-43s│\n", truncate(strings.Join(m.speakers, ", "), 43))
	s += fmt.Sprintf("│ In room:  %-43s│\n", truncate(strings.Join(m.users, ", "), 43))
	return s
}

func (m Model) renderQueue() string {
	s := fmt.Sprintf("├─ Queue (%d waiting) ─────────────────────────────────┤\n", m.queued)

	if len(m.backlog) == 0 {
		s += "│   (no segments yet)                                  │\n"
		return s
	}

	// Show the tail of the backlog, keeping the selection visible
	const visible = 6
	start := 0
	if len(m.backlog) > visible {
		start = len(m.backlog) - visible
		if m.selected < start {
			start = m.selected
		}
	}
	for i := start; i < len(m.backlog) && i < start+visible; i++ {
		e := m.backlog[i]
		cursor := " "
		if i == m.selected {
			cursor = ">"
		}
		marker := ""
		if e.ID == m.replaying {
			marker = " ♪"
		}
		line := fmt.Sprintf("%s #%d %s [%s] %d chunks%s", cursor, e.ID, e.User, e.Status, e.Chunks, marker)
		s += fmt.Sprintf("│ %-52s │\n", truncate(line, 52))
	}
	return s
}

func (m Model) renderControls() string {
	talkStatus := "idle"
	if m.talking {
		talkStatus = "TALKING"
	}
	flags := ""
	if m.muted {
		flags += " muted"
	}
	if m.deafened {
		flags += " deafened"
	}

	s := "├──────────────────────────────────────────────────────┤\n"
	s += fmt.Sprintf("│ Mic: %-8s Volume: [%s] %3d%%%-13s│\n",
		talkStatus, renderBar(m.volume, 100, 10), m.volume, flags)
	if m.lastExport != "" {
		s += fmt.Sprintf("│ Saved: %-46s│\n", truncate(m.lastExport, 46))
	}
	return s
}

func (m Model) renderHelp() string {
	return `│ space:Talk s:Skip l:Live r:Replay c:Chain x:Stop     │
│ d:Save ↑/↓:Select +/-:Volume m:Mute f:Deafen q:Quit  │
└──────────────────────────────────────────────────────┘
`
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.controls.quit()
		return m, tea.Quit
	case " ":
		m.controls.send(Action{Kind: ActionToggleTalk})
	case "s":
		m.skipping = true
		m.controls.send(Action{Kind: ActionSkipLive})
	case "l":
		m.skipping = false
		m.controls.send(Action{Kind: ActionResumeLive})
	case "r":
		if id := m.selectedID(); id != 0 {
			m.controls.send(Action{Kind: ActionReplay, SegmentID: id})
		}
	case "c":
		if id := m.selectedID(); id != 0 {
			m.controls.send(Action{Kind: ActionReplayContinuous, SegmentID: id})
		}
	case "x":
		m.controls.send(Action{Kind: ActionStopReplay})
	case "d":
		if id := m.selectedID(); id != 0 {
			m.controls.send(Action{Kind: ActionDownload, SegmentID: id})
		}
	case "up":
		if m.selected > 0 {
			m.selected--
		}
	case "down":
		if m.selected < len(m.backlog)-1 {
			m.selected++
		}
	case "+", "=":
		m.volume = clampVolume(m.volume + 5)
		m.controls.send(Action{Kind: ActionSetVolume, Volume: m.volume})
	case "-":
		m.volume = clampVolume(m.volume - 5)
		m.controls.send(Action{Kind: ActionSetVolume, Volume: m.volume})
	case "m":
		m.muted = !m.muted
		m.controls.send(Action{Kind: ActionSetMuted, On: m.muted})
	case "f":
		m.deafened = !m.deafened
		m.controls.send(Action{Kind: ActionSetDeafened, On: m.deafened})
	}

	return m, nil
}

func (m Model) selectedID() int64 {
	if m.selected < 0 || m.selected >= len(m.backlog) {
		return 0
	}
	return m.backlog[m.selected].ID
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Connected != nil {
		m.connected = *msg.Connected
	}
	if msg.ServerName != "" {
		m.serverName = msg.ServerName
	}
	if msg.RoomID != "" {
		m.roomID = msg.RoomID
	}
	if msg.UserName != "" {
		m.userName = msg.UserName
	}
	if msg.Talking != nil {
		m.talking = *msg.Talking
	}
	if msg.Playback != nil {
		m.liveSpeaker = msg.Playback.LiveSpeaker
		m.queued = msg.Playback.Queued
		m.backlog = msg.Playback.Backlog
		m.replaying = msg.Playback.Replaying
		m.speakers = msg.Playback.Speakers
		if m.selected >= len(m.backlog) {
			m.selected = len(m.backlog) - 1
		}
		if m.selected < 0 {
			m.selected = 0
		}
	}
	if msg.Users != nil {
		m.users = msg.Users
	}
	if msg.ExportPath != "" {
		m.lastExport = msg.ExportPath
	}
}

// StatusMsg updates TUI state
type StatusMsg struct {
	Connected  *bool
	ServerName string
	RoomID     string
	UserName   string
	Talking    *bool
	Users      []string
	Playback   *PlaybackStatus
	ExportPath string
}

// PlaybackStatus mirrors the playback side for display
type PlaybackStatus struct {
	LiveSpeaker string
	Queued      int
	Backlog     []Entry
	Replaying   int64
	Speakers    []string
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
