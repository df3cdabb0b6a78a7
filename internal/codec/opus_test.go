// ABOUTME: Tests for the Opus codec adapter
// ABOUTME: Encoder creation, compression, decode, and turn reset
package codec

import (
	"testing"

	"github.com/Talkwire-Project/talkwire-go/internal/audio"
)

func TestNewOpusEncoder(t *testing.T) {
	enc, err := NewOpusEncoder(audio.DefaultFormat("opus"))
	if err != nil {
		t.Fatalf("failed to create encoder: %v", err)
	}
	if enc == nil {
		t.Fatal("expected encoder to be created")
	}
	if enc.FrameSize() != 960 {
		t.Errorf("expected frame size 960, got %d", enc.FrameSize())
	}
}

func TestOpusEncoderInvalidSampleRate(t *testing.T) {
	// Opus only supports 8, 12, 16, 24, 48 kHz
	_, err := NewOpusEncoder(audio.Format{Codec: "opus", SampleRate: 44100, Channels: 1})
	if err == nil {
		t.Fatal("expected error for invalid sample rate 44100")
	}
}

func TestOpusEncoderWrongCodec(t *testing.T) {
	if _, err := NewOpusEncoder(audio.DefaultFormat("pcm")); err == nil {
		t.Fatal("expected error for non-opus format")
	}
	if _, err := NewOpusDecoder(audio.DefaultFormat("pcm")); err == nil {
		t.Fatal("expected error for non-opus format")
	}
}

func TestOpusEncodeDecodeFrame(t *testing.T) {
	format := audio.DefaultFormat("opus")
	enc, err := NewOpusEncoder(format)
	if err != nil {
		t.Fatalf("failed to create encoder: %v", err)
	}
	dec, err := NewOpusDecoder(format)
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	// 20ms at 48kHz mono
	pcm := make([]int16, 960)
	for i := range pcm {
		pcm[i] = int16(i * 10)
	}

	chunk, err := enc.Encode(pcm)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(chunk) == 0 {
		t.Fatal("expected non-empty encoded output")
	}
	if len(chunk) >= len(pcm)*2 {
		t.Errorf("expected compression, encoded %d >= pcm %d bytes", len(chunk), len(pcm)*2)
	}

	out, err := dec.Decode(chunk)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(out) != len(pcm) {
		t.Errorf("expected %d decoded samples, got %d", len(pcm), len(out))
	}
}

func TestOpusDecodeGarbage(t *testing.T) {
	dec, err := NewOpusDecoder(audio.DefaultFormat("opus"))
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	// A corrupted chunk must fail in isolation, not panic
	if _, err := dec.Decode([]byte{0xde, 0xad, 0xbe, 0xef}); err == nil {
		t.Log("decoder tolerated garbage packet")
	}
}

func TestOpusEncoderReset(t *testing.T) {
	enc, err := NewOpusEncoder(audio.DefaultFormat("opus"))
	if err != nil {
		t.Fatalf("failed to create encoder: %v", err)
	}

	pcm := make([]int16, 960)
	if _, err := enc.Encode(pcm); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if err := enc.Reset(); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if _, err := enc.Encode(pcm); err != nil {
		t.Fatalf("encode after reset failed: %v", err)
	}
}
