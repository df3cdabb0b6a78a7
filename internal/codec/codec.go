// ABOUTME: Codec adapter interfaces and factory
// ABOUTME: Wraps external encoders/decoders behind PCM chunk conversion
package codec

import (
	"fmt"

	"github.com/Talkwire-Project/talkwire-go/internal/audio"
)

// Encoder converts PCM frames to compressed chunks.
// One encoder serves one speaking turn at a time; Reset prepares it for the
// next turn.
type Encoder interface {
	// Encode compresses one frame of interleaved PCM samples
	Encode(pcm []int16) ([]byte, error)

	// Reset clears encoder state between speaking turns
	Reset() error

	// Close releases encoder resources
	Close() error
}

// Decoder converts compressed chunks back to PCM samples.
// Decoders are stateful per stream: use one per segment.
type Decoder interface {
	// Decode converts one compressed chunk to interleaved PCM samples
	Decode(data []byte) ([]int16, error)

	// Close releases decoder resources
	Close() error
}

// NewEncoder creates an encoder for the given format
func NewEncoder(format audio.Format) (Encoder, error) {
	switch format.Codec {
	case "opus":
		return NewOpusEncoder(format)
	case "pcm":
		return NewPCMEncoder(format)
	default:
		return nil, fmt.Errorf("unsupported codec: %s", format.Codec)
	}
}

// NewDecoder creates a decoder for the given format
func NewDecoder(format audio.Format) (Decoder, error) {
	switch format.Codec {
	case "opus":
		return NewOpusDecoder(format)
	case "pcm":
		return NewPCMDecoder(format)
	default:
		return nil, fmt.Errorf("unsupported codec: %s", format.Codec)
	}
}

// DecoderFactory builds a fresh decoder per segment so per-stream codec state
// never leaks between speakers.
type DecoderFactory func() (Decoder, error)

// FactoryFor returns a DecoderFactory bound to a format
func FactoryFor(format audio.Format) DecoderFactory {
	return func() (Decoder, error) {
		return NewDecoder(format)
	}
}
