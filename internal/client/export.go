// ABOUTME: Segment download support
// ABOUTME: Decodes a segment to a WAV file plus a raw video sidecar
package client

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/Talkwire-Project/talkwire-go/internal/audio"
	"github.com/Talkwire-Project/talkwire-go/internal/codec"
)

// Exporter writes completed segments to disk
type Exporter struct {
	dir        string
	format     audio.Format
	newDecoder codec.DecoderFactory
}

// NewExporter creates an exporter writing into dir
func NewExporter(dir string, format audio.Format, factory codec.DecoderFactory) *Exporter {
	return &Exporter{dir: dir, format: format, newDecoder: factory}
}

// Export writes the segment's audio as WAV and, when video chunks exist, a
// concatenated video sidecar next to it. A segment still recording cannot be
// exported. Undecodable chunks are skipped, matching playback.
// Returns the audio path and the video path (empty when no video).
func (e *Exporter) Export(seg *Segment) (string, string, error) {
	if seg == nil {
		return "", "", fmt.Errorf("no such segment")
	}
	if seg.Status == StatusRecording {
		return "", "", fmt.Errorf("segment %d is still recording", seg.ID)
	}
	if !seg.HasMedia() {
		return "", "", fmt.Errorf("segment %d has no media", seg.ID)
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create export dir: %w", err)
	}

	base := fmt.Sprintf("talkwire_%s_%d", sanitizeName(seg.UserName), seg.ID)

	var audioPath string
	if len(seg.Audio) > 0 {
		samples, err := e.decodeAll(seg)
		if err != nil {
			return "", "", err
		}
		wav, err := audio.EncodeWAV(samples, e.format)
		if err != nil {
			return "", "", fmt.Errorf("failed to encode WAV: %w", err)
		}
		audioPath = filepath.Join(e.dir, base+".wav")
		if err := os.WriteFile(audioPath, wav, 0o644); err != nil {
			return "", "", fmt.Errorf("failed to write %s: %w", audioPath, err)
		}
	}

	var videoPath string
	if len(seg.Video) > 0 {
		var blob []byte
		for _, chunk := range seg.Video {
			blob = append(blob, chunk...)
		}
		videoPath = filepath.Join(e.dir, base+".webm")
		if err := os.WriteFile(videoPath, blob, 0o644); err != nil {
			return audioPath, "", fmt.Errorf("failed to write %s: %w", videoPath, err)
		}
	}

	log.Printf("Exported segment %d to %s", seg.ID, e.dir)
	return audioPath, videoPath, nil
}

// decodeAll runs the segment's chunks through a fresh decoder
func (e *Exporter) decodeAll(seg *Segment) ([]int16, error) {
	dec, err := e.newDecoder()
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	defer dec.Close()

	var samples []int16
	for i, chunk := range seg.Audio {
		pcm, err := dec.Decode(chunk)
		if err != nil {
			log.Printf("Skipping undecodable chunk %d of segment %d: %v", i, seg.ID, err)
			continue
		}
		samples = append(samples, pcm...)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("segment %d has no decodable audio", seg.ID)
	}
	return samples, nil
}

// sanitizeName keeps file names portable
func sanitizeName(name string) string {
	if name == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
