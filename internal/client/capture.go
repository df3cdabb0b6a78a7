// ABOUTME: Microphone frame source abstraction
// ABOUTME: WAV-backed source paces file audio like a live capture device
package client

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Talkwire-Project/talkwire-go/internal/audio"
)

// FrameSamples is the capture frame size: 20ms at the wire sample rate
const FrameSamples = 960

// FrameSource produces fixed-size PCM frames at capture pace
type FrameSource interface {
	Frames() <-chan []int16
	Start() error
	Stop()
}

// WAVSource feeds frames from a WAV file in real time, looping at the end.
// It stands in for a microphone where no capture device is available.
type WAVSource struct {
	samples []int16
	format  audio.Format
	frames  chan []int16
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewWAVSource loads a WAV file as a capture source. The file must match the
// wire format.
func NewWAVSource(path string, format audio.Format) (*WAVSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	samples, fileFormat, err := audio.DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if fileFormat.SampleRate != format.SampleRate || fileFormat.Channels != format.Channels {
		return nil, fmt.Errorf("%s is %dHz/%dch, need %dHz/%dch",
			path, fileFormat.SampleRate, fileFormat.Channels, format.SampleRate, format.Channels)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WAVSource{
		samples: samples,
		format:  format,
		frames:  make(chan []int16, 4),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Frames returns the capture frame channel
func (w *WAVSource) Frames() <-chan []int16 {
	return w.frames
}

// Start begins emitting frames at the wire frame rate
func (w *WAVSource) Start() error {
	frame := FrameSamples * w.format.Channels
	if len(w.samples) < frame {
		return fmt.Errorf("source shorter than one frame")
	}

	interval := audio.SamplesDuration(frame, w.format)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		pos := 0
		for {
			select {
			case <-w.ctx.Done():
				return
			case <-ticker.C:
				if pos+frame > len(w.samples) {
					pos = 0
				}
				out := make([]int16, frame)
				copy(out, w.samples[pos:pos+frame])
				pos += frame

				select {
				case w.frames <- out:
				default:
					// Consumer is behind; drop the frame like a real device
				}
			}
		}
	}()
	return nil
}

// Stop ends frame emission
func (w *WAVSource) Stop() {
	w.cancel()
}
