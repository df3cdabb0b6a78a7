// ABOUTME: Tests for the push-to-talk controller
// ABOUTME: Manual hold, voice-activity gate, debounce, and capture failure
package client

import (
	"sync"
	"testing"
	"time"

	"github.com/Talkwire-Project/talkwire-go/internal/codec"
)

type fakeSender struct {
	mu     sync.Mutex
	starts int
	ends   int
	chunks [][]byte
}

func (f *fakeSender) SendAudioStart() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return nil
}

func (f *fakeSender) SendAudioChunk(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks = append(f.chunks, data)
	return nil
}

func (f *fakeSender) SendAudioEnd() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ends++
	return nil
}

func (f *fakeSender) counts() (int, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, len(f.chunks), f.ends
}

func newTestController(t *testing.T, mode Mode) (*Controller, *fakeSender, *Scheduler) {
	t.Helper()
	enc, err := codec.NewEncoder(testFormat)
	if err != nil {
		t.Fatalf("failed to create encoder: %v", err)
	}
	sender := &fakeSender{}
	sched, _, _ := newTestScheduler(t)
	ctrl := NewController(mode, enc, sender, sched, "me", "Me")
	t.Cleanup(ctrl.Stop)
	return ctrl, sender, sched
}

// frames at known energy levels: loud is well above the default threshold,
// quiet well below
func loudFrame() []int16 {
	return make16(480, 16000)
}

func quietFrame() []int16 {
	return make16(480, 50)
}

func make16(n int, val int16) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = val
	}
	return s
}

func TestManualTurnLifecycle(t *testing.T) {
	ctrl, sender, sched := newTestController(t, ModeManual)

	ctrl.PressTalk()
	if !ctrl.Talking() {
		t.Fatal("expected talking after press")
	}
	ctrl.ProcessFrame(loudFrame())
	ctrl.ProcessFrame(quietFrame()) // manual mode ignores energy
	ctrl.ReleaseTalk()
	if ctrl.Talking() {
		t.Fatal("expected silence after release")
	}

	starts, chunks, ends := sender.counts()
	if starts != 1 || ends != 1 {
		t.Errorf("expected one start and one end, got %d/%d", starts, ends)
	}
	if chunks != 2 {
		t.Errorf("expected 2 chunks sent, got %d", chunks)
	}

	// The local turn lands in the backlog as played
	waitFor(t, func() bool {
		snap := sched.Snapshot()
		return len(snap.Backlog) == 1 && snap.Backlog[0].Status == "played"
	}, "expected own segment in backlog")
}

func TestManualPressIsIdempotent(t *testing.T) {
	ctrl, sender, _ := newTestController(t, ModeManual)

	ctrl.PressTalk()
	ctrl.PressTalk()
	ctrl.ReleaseTalk()
	ctrl.ReleaseTalk()

	starts, _, ends := sender.counts()
	if starts != 1 || ends != 1 {
		t.Errorf("expected one start and one end, got %d/%d", starts, ends)
	}
}

func TestVoiceGateStartsOnLoudFrame(t *testing.T) {
	ctrl, sender, _ := newTestController(t, ModeVoice)

	ctrl.ProcessFrame(quietFrame())
	if ctrl.Talking() {
		t.Fatal("quiet frame must not start a turn")
	}
	ctrl.ProcessFrame(loudFrame())
	if !ctrl.Talking() {
		t.Fatal("loud frame must start a turn")
	}

	starts, chunks, _ := sender.counts()
	if starts != 1 {
		t.Errorf("expected one start, got %d", starts)
	}
	if chunks != 1 {
		t.Errorf("the triggering frame must be sent, got %d chunks", chunks)
	}
}

func TestVoiceGateDebounceEndsTurn(t *testing.T) {
	ctrl, sender, _ := newTestController(t, ModeVoice)
	ctrl.SetVoiceActivity(DefaultVoiceThreshold, 30*time.Millisecond)

	ctrl.ProcessFrame(loudFrame())
	ctrl.ProcessFrame(quietFrame())

	waitFor(t, func() bool { return !ctrl.Talking() }, "expected turn to end after debounce")
	_, _, ends := sender.counts()
	if ends != 1 {
		t.Errorf("expected one end, got %d", ends)
	}
}

func TestVoiceGateLoudFrameCancelsDebounce(t *testing.T) {
	ctrl, _, _ := newTestController(t, ModeVoice)
	ctrl.SetVoiceActivity(DefaultVoiceThreshold, 40*time.Millisecond)

	ctrl.ProcessFrame(loudFrame())
	ctrl.ProcessFrame(quietFrame())
	time.Sleep(20 * time.Millisecond)
	ctrl.ProcessFrame(loudFrame()) // speech resumes inside the debounce window

	time.Sleep(60 * time.Millisecond)
	if !ctrl.Talking() {
		t.Error("resumed speech must keep the turn open")
	}
	// Quiet again: the turn ends one debounce after the last loud frame
	ctrl.ProcessFrame(quietFrame())
	waitFor(t, func() bool { return !ctrl.Talking() }, "expected turn to end after renewed debounce")
}

func TestManualControlsIgnoredInVoiceMode(t *testing.T) {
	ctrl, sender, _ := newTestController(t, ModeVoice)

	ctrl.PressTalk()
	if ctrl.Talking() {
		t.Error("press must be ignored in voice mode")
	}
	starts, _, _ := sender.counts()
	if starts != 0 {
		t.Errorf("expected no start, got %d", starts)
	}
}

func TestUnavailableCaptureNeverStarts(t *testing.T) {
	sender := &fakeSender{}
	sched, _, _ := newTestScheduler(t)
	ctrl := NewController(ModeManual, nil, sender, sched, "me", "Me")
	t.Cleanup(ctrl.Stop)

	ctrl.PressTalk()
	if ctrl.Talking() {
		t.Error("turn must not start without capture")
	}
	starts, _, _ := sender.counts()
	if starts != 0 {
		t.Errorf("expected no start, got %d", starts)
	}
}
