// ABOUTME: PCM passthrough codec
// ABOUTME: Little-endian int16 chunks with no compression
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/Talkwire-Project/talkwire-go/internal/audio"
)

// PCMEncoder packs samples as little-endian bytes
type PCMEncoder struct {
	format audio.Format
}

// NewPCMEncoder creates a passthrough encoder
func NewPCMEncoder(format audio.Format) (*PCMEncoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM encoder: %s", format.Codec)
	}
	return &PCMEncoder{format: format}, nil
}

// Encode packs one PCM frame as bytes
func (e *PCMEncoder) Encode(pcm []int16) ([]byte, error) {
	out := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out, nil
}

// Reset is a no-op for stateless PCM
func (e *PCMEncoder) Reset() error { return nil }

// Close releases encoder resources
func (e *PCMEncoder) Close() error { return nil }

// PCMDecoder unpacks little-endian bytes to samples
type PCMDecoder struct {
	format audio.Format
}

// NewPCMDecoder creates a passthrough decoder
func NewPCMDecoder(format audio.Format) (*PCMDecoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM decoder: %s", format.Codec)
	}
	return &PCMDecoder{format: format}, nil
}

// Decode unpacks one chunk to PCM samples
func (d *PCMDecoder) Decode(data []byte) ([]int16, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("pcm chunk length %d is not sample aligned", len(data))
	}
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples, nil
}

// Close releases decoder resources
func (d *PCMDecoder) Close() error { return nil }
