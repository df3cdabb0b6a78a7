// ABOUTME: Main client application orchestration
// ABOUTME: Coordinates connection, playback, push-to-talk, and UI
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/Talkwire-Project/talkwire-go/internal/audio"
	"github.com/Talkwire-Project/talkwire-go/internal/client"
	"github.com/Talkwire-Project/talkwire-go/internal/codec"
	"github.com/Talkwire-Project/talkwire-go/internal/protocol"
	"github.com/Talkwire-Project/talkwire-go/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

// Config holds client application configuration
type Config struct {
	ServerAddr     string
	RoomID         string
	Name           string
	Token          string // explicit auth token
	FetchToken     bool   // fetch a short-lived credential from the relay
	VoiceActivated bool
	MicFile        string // WAV file standing in for the microphone
	ExportDir      string
	Codec          string // "opus" or "pcm"
	NoTUI          bool
}

// App is the Talkwire client application
type App struct {
	config Config
	format audio.Format

	engine     *client.Engine
	mainOut    *client.Output
	replayOut  *client.Output
	scheduler  *client.Scheduler
	conn       *client.Client
	controller *client.Controller
	exporter   *client.Exporter
	mic        client.FrameSource

	controls *ui.Controls
	tuiProg  *tea.Program

	userID string

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates the client application
func New(config Config) *App {
	ctx, cancel := context.WithCancel(context.Background())

	return &App{
		config: config,
		format: audio.DefaultFormat(config.Codec),
		userID: uuid.New().String(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start runs the application until Stop or quit from the UI
func (a *App) Start() error {
	// Playback. An output failure degrades to silent operation: segments
	// still record and export.
	a.engine = client.NewEngine()
	if err := a.engine.Initialize(a.format); err != nil {
		log.Printf("Audio output unavailable: %v", err)
	}
	a.mainOut = a.engine.NewSink()
	a.replayOut = a.engine.NewSink()

	factory := codec.FactoryFor(a.format)
	a.scheduler = client.NewScheduler(client.NewSegmentStore(), factory,
		a.mainOut, a.replayOut, a.format, client.DefaultLead)
	go a.scheduler.Run()

	a.exporter = client.NewExporter(a.config.ExportDir, a.format, factory)

	// Connection
	token := a.config.Token
	if token == "" && a.config.FetchToken {
		fetched, err := FetchVoiceToken(a.config.ServerAddr, a.config.RoomID)
		if err != nil {
			log.Printf("Credential fetch failed, connecting anonymously: %v", err)
		} else {
			token = fetched
		}
	}
	a.conn = client.NewClient(client.Config{
		ServerAddr: a.config.ServerAddr,
		Token:      token,
		RoomID:     a.config.RoomID,
	})

	// Capture. A missing source leaves the controller armed but silent.
	enc, err := codec.NewEncoder(a.format)
	if err != nil {
		log.Printf("Capture unavailable: %v", err)
		enc = nil
	}
	mode := client.ModeManual
	if a.config.VoiceActivated {
		mode = client.ModeVoice
	}
	a.controller = client.NewController(mode, enc, a.conn, a.scheduler, a.userID, a.config.Name)

	if a.config.MicFile != "" {
		mic, err := client.NewWAVSource(a.config.MicFile, a.format)
		if err != nil {
			log.Printf("Failed to open mic source: %v", err)
		} else {
			a.mic = mic
			if err := a.mic.Start(); err != nil {
				log.Printf("Failed to start mic source: %v", err)
			} else {
				go a.pumpFrames()
			}
		}
	}

	// UI
	a.controls = ui.NewControls()
	if !a.config.NoTUI {
		prog, err := ui.Run(a.controls)
		if err != nil {
			return fmt.Errorf("failed to start TUI: %w", err)
		}
		a.tuiProg = prog
		go func() {
			if _, err := a.tuiProg.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()
		a.updateTUI(ui.StatusMsg{
			ServerName: a.config.ServerAddr,
			RoomID:     a.config.RoomID,
			UserName:   a.config.Name,
		})
	}

	go a.conn.Run()
	go a.handleEvents()
	go a.handleControls()
	go a.statusLoop()

	select {
	case <-a.controls.Quit:
		log.Printf("Quit requested from UI")
	case <-a.ctx.Done():
	}
	return nil
}

// Stop shuts the application down
func (a *App) Stop() {
	a.cancel()

	if a.mic != nil {
		a.mic.Stop()
	}
	if a.controller != nil {
		a.controller.Stop()
	}
	if a.conn != nil {
		a.conn.Close()
	}
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.engine != nil {
		a.engine.Close()
	}
	if a.tuiProg != nil {
		a.tuiProg.Quit()
	}
}

// pumpFrames feeds captured frames to the push-to-talk controller
func (a *App) pumpFrames() {
	for {
		select {
		case frame := <-a.mic.Frames():
			a.controller.ProcessFrame(frame)
		case <-a.ctx.Done():
			return
		}
	}
}

// handleEvents routes decoded relay messages to playback and the roster
func (a *App) handleEvents() {
	users := make(map[string]string)

	roster := func() []string {
		names := make([]string, 0, len(users))
		for _, name := range users {
			names = append(names, name)
		}
		return names
	}

	for {
		select {
		case ev := <-a.conn.Events:
			switch msg := ev.(type) {
			case *protocol.RoomJoined:
				users = make(map[string]string)
				for _, u := range msg.CurrentUsers {
					users[u.UserID] = u.Name
				}
				log.Printf("Joined room %s with %d others", msg.RoomID, len(msg.CurrentUsers))
				a.updateTUI(ui.StatusMsg{RoomID: msg.RoomID, Users: roster()})

			case *protocol.UserJoined:
				users[msg.UserID] = msg.Name
				a.updateTUI(ui.StatusMsg{Users: roster()})

			case *protocol.UserLeft:
				delete(users, msg.UserID)
				a.updateTUI(ui.StatusMsg{Users: roster()})

			case *protocol.SpeakerJoined:
				a.scheduler.SpeakerJoined(msg.UserID, msg.Name)

			case *protocol.SpeakerLeft:
				a.scheduler.SpeakerLeft(msg.UserID)

			case *protocol.AudioData:
				a.scheduler.AudioChunk(msg.UserID, msg.Data)

			case *protocol.VideoData:
				a.scheduler.VideoChunk(msg.UserID, msg.Data)
			}

		case connected := <-a.conn.ConnState:
			a.updateTUI(ui.StatusMsg{Connected: &connected})

		case <-a.ctx.Done():
			return
		}
	}
}

// handleControls applies user intents from the TUI
func (a *App) handleControls() {
	for {
		select {
		case action := <-a.controls.Actions:
			a.applyAction(action)
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) applyAction(action ui.Action) {
	switch action.Kind {
	case ui.ActionToggleTalk:
		if a.controller.Talking() {
			a.controller.ReleaseTalk()
		} else {
			a.controller.PressTalk()
		}

	case ui.ActionSkipLive:
		a.scheduler.SkipLive()

	case ui.ActionResumeLive:
		a.scheduler.ResumeLive()

	case ui.ActionReplay:
		a.scheduler.Replay(action.SegmentID, false)

	case ui.ActionReplayContinuous:
		a.scheduler.Replay(action.SegmentID, true)

	case ui.ActionStopReplay:
		a.scheduler.StopReplay()

	case ui.ActionDownload:
		seg := a.scheduler.Segment(action.SegmentID)
		if seg == nil {
			log.Printf("Segment %d not available for export", action.SegmentID)
			return
		}
		audioPath, _, err := a.exporter.Export(seg)
		if err != nil {
			log.Printf("Export failed: %v", err)
			return
		}
		a.updateTUI(ui.StatusMsg{ExportPath: audioPath})

	case ui.ActionSetVolume:
		a.mainOut.SetVolume(action.Volume)
		a.replayOut.SetVolume(action.Volume)

	case ui.ActionSetMuted:
		a.mainOut.SetMuted(action.On)
		a.replayOut.SetMuted(action.On)

	case ui.ActionSetDeafened:
		a.scheduler.SetDeafened(action.On)
	}
}

// statusLoop pushes playback state into the TUI
func (a *App) statusLoop() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			snap := a.scheduler.Snapshot()
			playback := &ui.PlaybackStatus{
				LiveSpeaker: snap.LiveUser,
				Queued:      snap.Queued,
				Replaying:   snap.Replaying,
				Speakers:    snap.Speakers,
			}
			for _, seg := range snap.Backlog {
				playback.Backlog = append(playback.Backlog, ui.Entry{
					ID:     seg.ID,
					User:   seg.UserName,
					Status: seg.Status,
					Chunks: seg.Chunks,
				})
			}
			talking := a.controller.Talking()
			a.updateTUI(ui.StatusMsg{Playback: playback, Talking: &talking})

		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) updateTUI(msg ui.StatusMsg) {
	if a.tuiProg != nil {
		a.tuiProg.Send(msg)
	}
}

// FetchVoiceToken asks the relay for a short-lived transport credential
func FetchVoiceToken(serverAddr, roomID string) (string, error) {
	url := fmt.Sprintf("http://%s/voice/token?room=%s", serverAddr, roomID)

	httpClient := &http.Client{Timeout: 5 * time.Second}
	resp, err := httpClient.Get(url)
	if err != nil {
		return "", fmt.Errorf("credential request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("credential endpoint returned %s", resp.Status)
	}

	var cred struct {
		Token     string `json:"token"`
		ExpiresAt int64  `json:"expiresAt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&cred); err != nil {
		return "", fmt.Errorf("bad credential response: %w", err)
	}
	if cred.Token == "" {
		return "", fmt.Errorf("credential response missing token")
	}
	return cred.Token, nil
}
