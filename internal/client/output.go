// ABOUTME: Audio output using oto library
// ABOUTME: One shared device context, per-path sinks with software volume
package client

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log"

	"github.com/Talkwire-Project/talkwire-go/internal/audio"
	"github.com/ebitengine/oto/v3"
)

// Sink accepts decoded PCM for immediate playback
type Sink interface {
	Play(samples []int16) error
}

// Engine owns the oto context. The process gets exactly one context; sinks
// for the main and replay paths share it.
type Engine struct {
	otoCtx *oto.Context
	format audio.Format
	ready  bool
}

// NewEngine creates an uninitialized audio engine
func NewEngine() *Engine {
	return &Engine{}
}

// Initialize sets up oto with the specified format
func (e *Engine) Initialize(format audio.Format) error {
	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	e.otoCtx = ctx
	e.format = format
	e.ready = true

	log.Printf("Audio output initialized: %dHz, %d channels",
		format.SampleRate, format.Channels)

	return nil
}

// NewSink creates a playback sink with its own volume control
func (e *Engine) NewSink() *Output {
	return &Output{engine: e, volume: 100}
}

// Close suspends the device context
func (e *Engine) Close() {
	if e.otoCtx != nil {
		e.otoCtx.Suspend()
		e.ready = false
	}
}

// Output is one playback path on the shared engine
type Output struct {
	engine *Engine
	volume int
	muted  bool
}

// Play plays decoded samples immediately
func (o *Output) Play(samples []int16) error {
	if o.engine == nil || !o.engine.ready {
		return fmt.Errorf("output not initialized")
	}

	adjusted := applyVolume(samples, o.volume, o.muted)

	data := make([]byte, len(adjusted)*2)
	for i, sample := range adjusted {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(sample))
	}

	player := o.engine.otoCtx.NewPlayer(bytes.NewReader(data))
	player.Play()

	return nil
}

// SetVolume sets the volume (0-100)
func (o *Output) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	o.volume = volume
}

// SetMuted sets mute state
func (o *Output) SetMuted(muted bool) {
	o.muted = muted
}

// GetVolume returns current volume
func (o *Output) GetVolume() int {
	return o.volume
}

// IsMuted returns mute state
func (o *Output) IsMuted() bool {
	return o.muted
}

// applyVolume applies volume and mute to samples
func applyVolume(samples []int16, volume int, muted bool) []int16 {
	multiplier := getVolumeMultiplier(volume, muted)

	result := make([]int16, len(samples))
	for i, sample := range samples {
		result[i] = int16(float64(sample) * multiplier)
	}

	return result
}

// getVolumeMultiplier calculates volume multiplier
func getVolumeMultiplier(volume int, muted bool) float64 {
	if muted {
		return 0.0
	}
	return float64(volume) / 100.0
}
