// ABOUTME: Opus codec adapter
// ABOUTME: Wraps libopus for voice-tuned encode and decode
package codec

import (
	"fmt"
	"log"

	"github.com/Talkwire-Project/talkwire-go/internal/audio"
	"gopkg.in/hraban/opus.v2"
)

const (
	// 20ms at 48kHz
	opusFrameSize = 960

	// Opus packets never exceed 4000 bytes
	maxOpusPacket = 4000

	// Max decoded frame: 120ms at 48kHz
	maxOpusFrame = 5760
)

// OpusEncoder wraps the Opus encoder
type OpusEncoder struct {
	encoder *opus.Encoder
	format  audio.Format
}

// NewOpusEncoder creates a voice-mode Opus encoder
func NewOpusEncoder(format audio.Format) (*OpusEncoder, error) {
	if format.Codec != "opus" {
		return nil, fmt.Errorf("invalid codec for Opus encoder: %s", format.Codec)
	}

	enc, err := opus.NewEncoder(format.SampleRate, format.Channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}

	bitrate := 32000 * format.Channels
	if err := enc.SetBitrate(bitrate); err != nil {
		log.Printf("Warning: failed to set Opus bitrate: %v", err)
	}

	return &OpusEncoder{encoder: enc, format: format}, nil
}

// Encode compresses one PCM frame to an Opus packet
func (e *OpusEncoder) Encode(pcm []int16) ([]byte, error) {
	output := make([]byte, maxOpusPacket)
	n, err := e.encoder.Encode(pcm, output)
	if err != nil {
		return nil, fmt.Errorf("opus encode failed: %w", err)
	}
	return output[:n], nil
}

// Reset clears encoder state between speaking turns
func (e *OpusEncoder) Reset() error {
	// Recreate the encoder; libopus carries prediction state across frames
	// and a fresh turn should not inherit the previous turn's tail.
	enc, err := opus.NewEncoder(e.format.SampleRate, e.format.Channels, opus.AppVoIP)
	if err != nil {
		return fmt.Errorf("failed to reset opus encoder: %w", err)
	}
	if err := enc.SetBitrate(32000 * e.format.Channels); err != nil {
		log.Printf("Warning: failed to set Opus bitrate: %v", err)
	}
	e.encoder = enc
	return nil
}

// Close releases encoder resources
func (e *OpusEncoder) Close() error {
	return nil
}

// FrameSize returns the PCM samples per channel the encoder expects
func (e *OpusEncoder) FrameSize() int {
	return opusFrameSize
}

// OpusDecoder wraps the Opus decoder
type OpusDecoder struct {
	decoder *opus.Decoder
	format  audio.Format
}

// NewOpusDecoder creates a new Opus decoder
func NewOpusDecoder(format audio.Format) (*OpusDecoder, error) {
	if format.Codec != "opus" {
		return nil, fmt.Errorf("invalid codec for Opus decoder: %s", format.Codec)
	}

	dec, err := opus.NewDecoder(format.SampleRate, format.Channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	return &OpusDecoder{decoder: dec, format: format}, nil
}

// Decode converts one Opus packet to PCM samples
func (d *OpusDecoder) Decode(data []byte) ([]int16, error) {
	pcm := make([]int16, maxOpusFrame*d.format.Channels)
	n, err := d.decoder.Decode(data, pcm)
	if err != nil {
		return nil, fmt.Errorf("opus decode failed: %w", err)
	}
	return pcm[:n*d.format.Channels], nil
}

// Close releases decoder resources
func (d *OpusDecoder) Close() error {
	return nil
}
