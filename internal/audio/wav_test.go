// ABOUTME: Tests for WAV encode and decode
// ABOUTME: Round trips, header layout, and rejection of bad input
package audio

import (
	"encoding/binary"
	"testing"
)

func TestEncodeWAVHeader(t *testing.T) {
	samples := []int16{0, 100, -100, 32767}
	data, err := EncodeWAV(samples, DefaultFormat("pcm"))
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	if len(data) != 44+len(samples)*2 {
		t.Errorf("expected %d bytes, got %d", 44+len(samples)*2, len(data))
	}
	if string(data[0:4]) != "RIFF" {
		t.Error("missing RIFF tag")
	}
	if string(data[8:12]) != "WAVE" {
		t.Error("missing WAVE tag")
	}
	if string(data[36:40]) != "data" {
		t.Error("missing data tag")
	}

	sampleRate := binary.LittleEndian.Uint32(data[24:28])
	if sampleRate != DefaultSampleRate {
		t.Errorf("expected sample rate %d, got %d", DefaultSampleRate, sampleRate)
	}

	// Samples are little-endian int16 after the header
	first := int16(binary.LittleEndian.Uint16(data[44:46]))
	second := int16(binary.LittleEndian.Uint16(data[46:48]))
	if first != 0 || second != 100 {
		t.Errorf("sample payload wrong: %d %d", first, second)
	}
}

func TestWAVRoundTrip(t *testing.T) {
	samples := make([]int16, 4800)
	for i := range samples {
		samples[i] = int16(i % 1000)
	}

	data, err := EncodeWAV(samples, DefaultFormat("pcm"))
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	decoded, format, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(decoded))
	}
	if format.SampleRate != DefaultSampleRate || format.Channels != DefaultChannels {
		t.Errorf("format mismatch: %+v", format)
	}
	for i := range samples {
		if decoded[i] != samples[i] {
			t.Fatalf("sample %d mismatch: %d != %d", i, decoded[i], samples[i])
		}
	}
}

func TestEncodeWAVEmpty(t *testing.T) {
	if _, err := EncodeWAV(nil, DefaultFormat("pcm")); err == nil {
		t.Error("expected error for empty samples")
	}
}

func TestDecodeWAVTruncated(t *testing.T) {
	if _, _, err := DecodeWAV([]byte("RIFF")); err == nil {
		t.Error("expected error for truncated data")
	}
}

func TestSamplesDuration(t *testing.T) {
	f := DefaultFormat("pcm")
	// 48000 mono samples at 48kHz is exactly one second
	if d := SamplesDuration(48000, f); d.Seconds() != 1.0 {
		t.Errorf("expected 1s, got %v", d)
	}

	stereo := Format{Codec: "pcm", SampleRate: 48000, Channels: 2}
	if d := SamplesDuration(96000, stereo); d.Seconds() != 1.0 {
		t.Errorf("expected 1s for stereo, got %v", d)
	}
}

func TestEnergy(t *testing.T) {
	if e := Energy(nil); e != 0 {
		t.Errorf("expected zero energy for empty window, got %f", e)
	}

	silence := make([]int16, 480)
	if e := Energy(silence); e != 0 {
		t.Errorf("expected zero energy for silence, got %f", e)
	}

	loud := make([]int16, 480)
	for i := range loud {
		loud[i] = 16384 // half scale
	}
	e := Energy(loud)
	if e < 0.49 || e > 0.51 {
		t.Errorf("expected ~0.5 energy for half-scale square, got %f", e)
	}
}
