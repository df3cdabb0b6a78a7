// ABOUTME: Audio type definitions
// ABOUTME: Formats, decoded buffers, and duration math shared by both sides
package audio

import (
	"math"
	"time"
)

// DefaultSampleRate is the wire sample rate for all Talkwire audio.
const DefaultSampleRate = 48000

// DefaultChannels is the wire channel count (push-to-talk is mono).
const DefaultChannels = 1

// Format describes an audio stream format
type Format struct {
	Codec      string // "opus" or "pcm"
	SampleRate int
	Channels   int
}

// DefaultFormat returns the standard Talkwire wire format
func DefaultFormat(codec string) Format {
	return Format{Codec: codec, SampleRate: DefaultSampleRate, Channels: DefaultChannels}
}

// Buffer represents decoded PCM audio scheduled for playback
type Buffer struct {
	Samples []int16 // Interleaved PCM
	StartAt time.Time
	Format  Format
}

// Duration returns the playback duration of the buffer
func (b Buffer) Duration() time.Duration {
	return SamplesDuration(len(b.Samples), b.Format)
}

// SamplesDuration converts an interleaved sample count to wall time
func SamplesDuration(n int, f Format) time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	frames := n / f.Channels
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// Energy returns the normalized RMS energy of a PCM window in [0, 1].
// Used by the voice-activity detector.
func Energy(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
