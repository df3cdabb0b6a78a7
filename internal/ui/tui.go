// ABOUTME: TUI initialization and control
// ABOUTME: Wraps bubbletea program and carries user intents to the app
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// ActionKind identifies a user intent
type ActionKind int

const (
	ActionToggleTalk ActionKind = iota
	ActionSkipLive
	ActionResumeLive
	ActionReplay
	ActionReplayContinuous
	ActionStopReplay
	ActionDownload
	ActionSetVolume
	ActionSetMuted
	ActionSetDeafened
)

// Action is one user intent from the TUI
type Action struct {
	Kind      ActionKind
	SegmentID int64
	Volume    int
	On        bool
}

// Controls holds channels for TUI to app communication
type Controls struct {
	Actions chan Action
	Quit    chan struct{}
}

// NewControls creates the control channels
func NewControls() *Controls {
	return &Controls{
		Actions: make(chan Action, 10),
		Quit:    make(chan struct{}, 1),
	}
}

func (c *Controls) send(a Action) {
	select {
	case c.Actions <- a:
	default:
	}
}

func (c *Controls) quit() {
	select {
	case c.Quit <- struct{}{}:
	default:
	}
}

// NewModel creates a new TUI model
func NewModel(controls *Controls) Model {
	return Model{
		volume:   100,
		controls: controls,
	}
}

// Run starts the TUI
func Run(controls *Controls) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(controls), tea.WithAltScreen())
	return p, nil
}
