// ABOUTME: Tests for segment export
// ABOUTME: WAV output, video sidecar, and rejection of unfinished segments
package client

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Talkwire-Project/talkwire-go/internal/audio"
	"github.com/Talkwire-Project/talkwire-go/internal/codec"
)

func newTestExporter(t *testing.T) *Exporter {
	t.Helper()
	return NewExporter(t.TempDir(), testFormat, codec.FactoryFor(testFormat))
}

func completedSegment(chunks ...[]byte) *Segment {
	seg := &Segment{ID: 7, UserID: "u1", UserName: "Ann", Status: StatusPlayed}
	seg.Audio = chunks
	return seg
}

func TestExportWritesWAV(t *testing.T) {
	e := newTestExporter(t)
	seg := completedSegment(chunk10ms(1), chunk10ms(2))

	audioPath, videoPath, err := e.Export(seg)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if videoPath != "" {
		t.Errorf("expected no video sidecar, got %s", videoPath)
	}
	if filepath.Base(audioPath) != "talkwire_Ann_7.wav" {
		t.Errorf("unexpected file name: %s", audioPath)
	}

	data, err := os.ReadFile(audioPath)
	if err != nil {
		t.Fatalf("failed to read export: %v", err)
	}
	samples, format, err := audio.DecodeWAV(data)
	if err != nil {
		t.Fatalf("exported file is not valid WAV: %v", err)
	}
	if len(samples) != 960 {
		t.Errorf("expected 960 samples, got %d", len(samples))
	}
	if format.SampleRate != testFormat.SampleRate || format.Channels != testFormat.Channels {
		t.Errorf("format mismatch: %+v", format)
	}
	if samples[0] != 1 || samples[480] != 2 {
		t.Error("chunks exported out of order")
	}
}

func TestExportWritesVideoSidecar(t *testing.T) {
	e := newTestExporter(t)
	seg := completedSegment(chunk10ms(1))
	seg.Video = [][]byte{{0xde, 0xad}, {0xbe, 0xef}}

	_, videoPath, err := e.Export(seg)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	data, err := os.ReadFile(videoPath)
	if err != nil {
		t.Fatalf("failed to read sidecar: %v", err)
	}
	if !bytes.Equal(data, []byte{0xde, 0xad, 0xbe, 0xef}) {
		t.Errorf("sidecar must concatenate chunks in order, got %x", data)
	}
}

func TestExportSkipsUndecodableChunks(t *testing.T) {
	e := newTestExporter(t)
	// Odd-length chunk cannot be PCM; it is skipped, the rest survives
	seg := completedSegment(chunk10ms(1), []byte{0x01}, chunk10ms(2))

	audioPath, _, err := e.Export(seg)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	data, _ := os.ReadFile(audioPath)
	samples, _, err := audio.DecodeWAV(data)
	if err != nil {
		t.Fatalf("exported file is not valid WAV: %v", err)
	}
	if len(samples) != 960 {
		t.Errorf("expected 960 samples after skipping bad chunk, got %d", len(samples))
	}
}

func TestExportRejectsRecordingSegment(t *testing.T) {
	e := newTestExporter(t)
	seg := completedSegment(chunk10ms(1))
	seg.Status = StatusRecording

	if _, _, err := e.Export(seg); err == nil {
		t.Error("expected error for a segment still recording")
	}
}

func TestExportRejectsEmptySegment(t *testing.T) {
	e := newTestExporter(t)

	if _, _, err := e.Export(&Segment{ID: 1, Status: StatusPlayed}); err == nil {
		t.Error("expected error for an empty segment")
	}
	if _, _, err := e.Export(nil); err == nil {
		t.Error("expected error for nil segment")
	}
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"Ann":        "Ann",
		"a b/c":      "a_b_c",
		"":           "unknown",
		"user-1_x":   "user-1_x",
		"Tokyo駅前":    "Tokyo__",
		"..\\evil..": "___evil__",
	}
	for in, want := range cases {
		if got := sanitizeName(in); got != want {
			t.Errorf("sanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
