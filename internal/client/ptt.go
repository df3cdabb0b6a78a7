// ABOUTME: Push-to-talk controller with optional voice-activity triggering
// ABOUTME: Turns mic frames into encoded chunks bracketed by start/end events
package client

import (
	"log"
	"sync"
	"time"

	"github.com/Talkwire-Project/talkwire-go/internal/audio"
	"github.com/Talkwire-Project/talkwire-go/internal/codec"
)

// Voice-activity tuning. A frame at or above the threshold starts or sustains
// a turn; the turn ends once energy stays below it for the full debounce.
const (
	DefaultVoiceThreshold = 0.15
	DefaultVoiceDebounce  = 1500 * time.Millisecond
)

// Mode selects how speaking turns are triggered
type Mode int

const (
	ModeManual Mode = iota // hold-to-talk
	ModeVoice              // energy-gated
)

// Sender carries turn events to the relay
type Sender interface {
	SendAudioStart() error
	SendAudioChunk(data []byte) error
	SendAudioEnd() error
}

// Controller owns the local speaking state. Mic frames arrive on
// ProcessFrame from the capture goroutine; manual press/release arrives from
// the UI. While talking, frames are encoded and sent, and playback of others
// is suspended through the scheduler.
type Controller struct {
	mode      Mode
	threshold float64
	debounce  time.Duration

	enc    codec.Encoder
	sender Sender
	sched  *Scheduler

	userID   string
	userName string

	mu            sync.Mutex
	talking       bool
	debounceTimer *time.Timer
}

// NewController creates a push-to-talk controller. A nil encoder marks
// capture as unavailable: the controller stays silent and never starts a
// turn.
func NewController(mode Mode, enc codec.Encoder, sender Sender, sched *Scheduler, userID, userName string) *Controller {
	return &Controller{
		mode:      mode,
		threshold: DefaultVoiceThreshold,
		debounce:  DefaultVoiceDebounce,
		enc:       enc,
		sender:    sender,
		sched:     sched,
		userID:    userID,
		userName:  userName,
	}
}

// SetVoiceActivity tunes the energy gate
func (c *Controller) SetVoiceActivity(threshold float64, debounce time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threshold = threshold
	c.debounce = debounce
}

// Talking reports whether a local turn is open
func (c *Controller) Talking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.talking
}

// PressTalk starts a manual turn
func (c *Controller) PressTalk() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != ModeManual {
		return
	}
	c.startTurnLocked()
}

// ReleaseTalk ends a manual turn
func (c *Controller) ReleaseTalk() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != ModeManual {
		return
	}
	c.endTurnLocked()
}

// ProcessFrame consumes one captured PCM frame. In voice mode it drives the
// energy gate; in either mode it encodes and sends while a turn is open.
func (c *Controller) ProcessFrame(pcm []int16) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode == ModeVoice {
		c.gateLocked(audio.Energy(pcm))
	}

	if !c.talking {
		return
	}

	chunk, err := c.enc.Encode(pcm)
	if err != nil {
		log.Printf("Encode failed, dropping frame: %v", err)
		return
	}
	if len(chunk) == 0 {
		return
	}

	if err := c.sender.SendAudioChunk(chunk); err != nil {
		log.Printf("Failed to send audio chunk: %v", err)
	}
	c.sched.LocalAudioChunk(c.userID, chunk)
}

// SendVideoFrame forwards one captured video chunk while talking
func (c *Controller) SendVideoFrame(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.talking {
		return
	}
	c.sched.LocalVideoChunk(c.userID, data)
}

// Stop ends any open turn and releases the encoder
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endTurnLocked()
	if c.enc != nil {
		c.enc.Close()
	}
}

// gateLocked applies the energy gate to one frame. Crossing the threshold
// opens a turn and cancels any pending stop; every quiet frame while talking
// re-arms the debounce so the turn ends debounce after the last loud frame.
func (c *Controller) gateLocked(energy float64) {
	if energy >= c.threshold {
		if c.debounceTimer != nil {
			c.debounceTimer.Stop()
			c.debounceTimer = nil
		}
		if !c.talking {
			c.startTurnLocked()
		}
		return
	}

	if !c.talking {
		return
	}
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
	}
	c.debounceTimer = time.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.debounceTimer = nil
		c.endTurnLocked()
	})
}

func (c *Controller) startTurnLocked() {
	if c.talking {
		return
	}
	if c.enc == nil {
		log.Printf("Capture unavailable, cannot start speaking")
		return
	}

	if err := c.enc.Reset(); err != nil {
		log.Printf("Encoder reset failed: %v", err)
		return
	}

	c.talking = true
	c.sched.BeginLocalTurn(c.userID, c.userName)
	if err := c.sender.SendAudioStart(); err != nil {
		log.Printf("Failed to send audio start: %v", err)
	}
	log.Printf("Speaking turn started")
}

func (c *Controller) endTurnLocked() {
	if !c.talking {
		return
	}
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
		c.debounceTimer = nil
	}

	c.talking = false
	if err := c.sender.SendAudioEnd(); err != nil {
		log.Printf("Failed to send audio end: %v", err)
	}
	c.sched.EndLocalTurn(c.userID)
	log.Printf("Speaking turn ended")
}
