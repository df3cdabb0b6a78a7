// ABOUTME: Playback scheduler arbitrating live audio against the catch-up queue
// ABOUTME: Single goroutine owns all playback state; timers post back into it
package client

import (
	"log"
	"sync"
	"time"

	"github.com/Talkwire-Project/talkwire-go/internal/audio"
	"github.com/Talkwire-Project/talkwire-go/internal/codec"
)

// DefaultLead is how far ahead of the device the first buffer of a playback
// is scheduled, absorbing decode and dispatch jitter.
const DefaultLead = 50 * time.Millisecond

// Scheduler decides what plays when: at most one live speaker or one queued
// segment on the main path at a time, plus an independent replay path.
//
// All state is owned by the Run goroutine. Public methods post closures into
// it; expired timers do the same, carrying a generation number so a stale
// timer from a torn-down playback can never touch a newer one.
type Scheduler struct {
	segs       *SegmentStore
	newDecoder codec.DecoderFactory
	main       Sink
	replayOut  Sink
	format     audio.Format
	lead       time.Duration

	calls    chan func()
	done     chan struct{}
	stopOnce sync.Once

	// Everything below is touched only from the Run goroutine.
	liveEnabled bool
	liveUserID  string
	liveDecoder codec.Decoder
	liveGen     int
	liveEnd     time.Time

	current    *Segment
	playGen    int
	playPos    int  // chunks of current already delivered to the sink
	playHalted bool // current was suspended mid-flight and awaits resume

	paused   bool // local user is speaking
	deafened bool

	speakers map[string]string // remote users mid-turn, id -> name

	replaySeg        *Segment
	replayGen        int
	replayContinuous bool
}

// NewScheduler creates a scheduler over the given segment store and sinks.
// The replay sink is a separate gain path so replays can be leveled
// independently of live audio.
func NewScheduler(segs *SegmentStore, factory codec.DecoderFactory, main, replayOut Sink, format audio.Format, lead time.Duration) *Scheduler {
	return &Scheduler{
		segs:        segs,
		newDecoder:  factory,
		main:        main,
		replayOut:   replayOut,
		format:      format,
		lead:        lead,
		calls:       make(chan func(), 64),
		done:        make(chan struct{}),
		liveEnabled: true,
		speakers:    make(map[string]string),
	}
}

// Run processes posted calls until Stop
func (s *Scheduler) Run() {
	for {
		select {
		case fn := <-s.calls:
			fn()
		case <-s.done:
			if s.liveDecoder != nil {
				s.liveDecoder.Close()
			}
			return
		}
	}
}

// Stop ends the scheduler loop
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *Scheduler) post(fn func()) {
	select {
	case s.calls <- fn:
	case <-s.done:
	}
}

// SpeakerJoined opens a recording segment for a remote speaker
func (s *Scheduler) SpeakerJoined(userID, name string) {
	s.post(func() {
		s.speakers[userID] = name
		s.segs.AddSegment(userID, name, false)
		s.evaluate()
	})
}

// AudioChunk records a remote chunk and, for the live speaker, plays it
func (s *Scheduler) AudioChunk(userID string, data []byte) {
	s.post(func() { s.onAudioChunk(userID, data) })
}

// VideoChunk records a remote video chunk on the speaker's open segment
func (s *Scheduler) VideoChunk(userID string, data []byte) {
	s.post(func() { s.segs.AddVideoChunk(userID, data) })
}

// SpeakerLeft completes the speaker's segment and re-arbitrates
func (s *Scheduler) SpeakerLeft(userID string) {
	s.post(func() { s.onSpeakerLeft(userID) })
}

// BeginLocalTurn suspends playback and opens the local recording segment.
// Own audio is never played back; the segment exists for replay and export.
func (s *Scheduler) BeginLocalTurn(userID, name string) {
	s.post(func() {
		s.paused = true
		s.suspendPlayback()
		s.segs.AddSegment(userID, name, true)
	})
}

// LocalAudioChunk records one encoded chunk of the local turn
func (s *Scheduler) LocalAudioChunk(userID string, data []byte) {
	s.post(func() { s.segs.AddChunk(userID, data) })
}

// LocalVideoChunk records one video chunk of the local turn
func (s *Scheduler) LocalVideoChunk(userID string, data []byte) {
	s.post(func() { s.segs.AddVideoChunk(userID, data) })
}

// EndLocalTurn completes the local segment and resumes playback
func (s *Scheduler) EndLocalTurn(userID string) {
	s.post(func() {
		s.segs.CompleteSegment(userID)
		s.paused = false
		s.evaluate()
	})
}

// SkipLive tears down live playback and disables live arbitration. The
// speaker's turn keeps recording and will arrive through the queue instead.
// Calling it with no live playback is a no-op apart from the disable.
func (s *Scheduler) SkipLive() {
	s.post(func() {
		s.liveEnabled = false
		if s.liveUserID != "" {
			s.clearLive()
			s.requeueOpenTurns()
		}
		s.evaluate()
	})
}

// ResumeLive re-enables live arbitration
func (s *Scheduler) ResumeLive() {
	s.post(func() {
		s.liveEnabled = true
		s.evaluate()
	})
}

// SetDeafened gates live playback. Deafening tears down the current live
// designation; the turn completes into the queue.
func (s *Scheduler) SetDeafened(deafened bool) {
	s.post(func() {
		s.deafened = deafened
		if deafened && s.liveUserID != "" {
			s.clearLive()
			s.requeueOpenTurns()
		}
		if !deafened {
			s.evaluate()
		}
	})
}

// Replay plays a completed segment on the replay path. In continuous mode it
// chains into the following backlog entries.
func (s *Scheduler) Replay(segmentID int64, continuous bool) {
	s.post(func() {
		seg := s.segs.Get(segmentID)
		if seg == nil || seg.Status == StatusRecording || seg.Status == StatusPlaying {
			return
		}
		s.replayContinuous = continuous
		s.startReplay(seg)
	})
}

// StopReplay cancels any in-flight replay
func (s *Scheduler) StopReplay() {
	s.post(func() {
		if s.replaySeg == nil {
			return
		}
		s.replayGen++
		s.replaySeg = nil
		s.evaluate()
	})
}

// SegmentView is a read-only projection of a segment for display
type SegmentView struct {
	ID        int64
	UserName  string
	Status    string
	Chunks    int
	CreatedAt time.Time
}

// Snapshot describes playback state at one instant
type Snapshot struct {
	LiveUser    string
	Playing     int64 // segment id on the main path, 0 if idle
	Replaying   int64 // segment id on the replay path, 0 if idle
	Queued      int
	Backlog     []SegmentView
	Speakers    []string
	Paused      bool
	Deafened    bool
	LiveEnabled bool
}

// Snapshot returns the current playback state. It round-trips through the
// scheduler goroutine, so state observed here is consistent.
func (s *Scheduler) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	s.post(func() {
		snap := Snapshot{
			Queued:      s.segs.QueuedCount(),
			Paused:      s.paused,
			Deafened:    s.deafened,
			LiveEnabled: s.liveEnabled,
		}
		if s.liveUserID != "" {
			snap.LiveUser = s.speakers[s.liveUserID]
		}
		if s.current != nil {
			snap.Playing = s.current.ID
		}
		if s.replaySeg != nil {
			snap.Replaying = s.replaySeg.ID
		}
		for _, seg := range s.segs.Backlog() {
			snap.Backlog = append(snap.Backlog, SegmentView{
				ID:        seg.ID,
				UserName:  seg.UserName,
				Status:    seg.Status.String(),
				Chunks:    len(seg.Audio),
				CreatedAt: seg.CreatedAt,
			})
		}
		for _, name := range s.speakers {
			snap.Speakers = append(snap.Speakers, name)
		}
		reply <- snap
	})
	select {
	case snap := <-reply:
		return snap
	case <-s.done:
		return Snapshot{}
	}
}

// Segment returns a completed segment by id for export. The result is a
// detached copy: the scheduler may still move the original's status, but the
// chunk slices are never written again once recording ends, so sharing them
// is safe.
func (s *Scheduler) Segment(id int64) *Segment {
	reply := make(chan *Segment, 1)
	s.post(func() {
		var out *Segment
		if seg := s.segs.Get(id); seg != nil && seg.Status != StatusRecording {
			c := *seg
			out = &c
		}
		reply <- out
	})
	select {
	case seg := <-reply:
		return seg
	case <-s.done:
		return nil
	}
}

// evaluate picks the next thing to play. Nothing starts while the main path
// is busy, a replay is running, or the local user is speaking.
func (s *Scheduler) evaluate() {
	if s.paused || s.deafened {
		return
	}
	if s.replaySeg != nil || s.liveUserID != "" {
		return
	}
	if s.current != nil {
		if s.playHalted {
			s.playHalted = false
			s.schedulePlayback()
		}
		return
	}

	if seg := s.segs.Dequeue(); seg != nil {
		s.startPlayback(seg)
		return
	}

	if !s.liveEnabled {
		return
	}
	for userID := range s.speakers {
		s.designateLive(userID)
		return
	}
}

func (s *Scheduler) designateLive(userID string) {
	dec, err := s.newDecoder()
	if err != nil {
		log.Printf("Cannot create live decoder: %v", err)
		return
	}
	s.liveUserID = userID
	s.liveDecoder = dec
	s.liveGen++
	s.liveEnd = time.Time{}
	log.Printf("Live speaker: %s", s.speakers[userID])
}

func (s *Scheduler) clearLive() {
	if s.liveDecoder != nil {
		s.liveDecoder.Close()
		s.liveDecoder = nil
	}
	s.liveUserID = ""
	s.liveGen++
	s.liveEnd = time.Time{}
}

// requeueOpenTurns drops the played-live mark on open remote turns so they
// complete into the queue instead of being counted as heard.
func (s *Scheduler) requeueOpenTurns() {
	for _, seg := range s.segs.OpenSegments() {
		if !seg.IsOwn {
			seg.PlayedLive = false
		}
	}
}

// suspendPlayback halts the main path without losing audio. A mid-flight
// segment keeps the main path and its playing status; its pending buffers are
// cancelled and playback resumes from the last delivered chunk. The live turn
// loses its designation and completes into the queue.
func (s *Scheduler) suspendPlayback() {
	if s.current != nil && !s.playHalted {
		s.playGen++
		s.playHalted = true
	}
	if s.liveUserID != "" {
		s.clearLive()
		s.requeueOpenTurns()
	}
}

func (s *Scheduler) onAudioChunk(userID string, data []byte) {
	seg := s.segs.AddChunk(userID, data)
	if seg == nil {
		// Chunk without a running turn; nothing to attach it to
		return
	}
	if userID != s.liveUserID {
		return
	}

	samples, err := s.liveDecoder.Decode(data)
	if err != nil {
		log.Printf("Skipping undecodable live chunk from %s: %v", userID, err)
		return
	}
	if len(samples) == 0 {
		return
	}

	seg.PlayedLive = true

	start := time.Now().Add(s.lead)
	if s.liveEnd.After(start) {
		start = s.liveEnd
	}
	s.liveEnd = start.Add(audio.SamplesDuration(len(samples), s.format))

	gen := s.liveGen
	time.AfterFunc(time.Until(start), func() {
		s.post(func() {
			if gen != s.liveGen {
				return
			}
			if err := s.main.Play(samples); err != nil {
				log.Printf("Live playback failed: %v", err)
			}
		})
	})
}

func (s *Scheduler) onSpeakerLeft(userID string) {
	delete(s.speakers, userID)
	s.segs.CompleteSegment(userID)

	if userID != s.liveUserID {
		s.evaluate()
		return
	}

	// Hold the live designation until the scheduled tail has played, then
	// release the main path.
	gen := s.liveGen
	wait := time.Until(s.liveEnd)
	if wait < 0 {
		wait = 0
	}
	time.AfterFunc(wait, func() {
		s.post(func() {
			if gen != s.liveGen {
				return
			}
			s.clearLive()
			s.evaluate()
		})
	})
}

// startPlayback takes a queued segment onto the main path and schedules it
// from its first chunk.
func (s *Scheduler) startPlayback(seg *Segment) {
	seg.Advance(StatusPlaying)
	s.current = seg
	s.playPos = 0
	s.playHalted = false
	s.schedulePlayback()
}

// schedulePlayback schedules the current segment's buffers from playPos
// onward. Used both for a fresh start and for resuming after a suspension.
func (s *Scheduler) schedulePlayback() {
	seg := s.current
	s.playGen++
	gen := s.playGen

	s.scheduleChunks(seg, s.playPos, s.main, func() bool {
		return gen == s.playGen && s.current == seg
	}, func(i int) {
		s.playPos = i + 1
	}, func() {
		s.finishPlayback(gen)
	})
}

// scheduleChunks is shared by queue playback and replay. It decodes the
// segment's chunks from index from, schedules the buffers consecutively on
// the sink starting one lead time from now, and arranges for done to run when
// the last buffer ends. played, if non-nil, observes each delivered chunk's
// index. Undecodable chunks are skipped. Returns the scheduled duration.
func (s *Scheduler) scheduleChunks(seg *Segment, from int, sink Sink, valid func() bool, played func(i int), done func()) time.Duration {
	dec, err := s.newDecoder()
	if err != nil {
		log.Printf("Cannot create decoder for segment %d: %v", seg.ID, err)
		done()
		return 0
	}
	defer dec.Close()

	start := time.Now().Add(s.lead)
	var total time.Duration

	for i := from; i < len(seg.Audio); i++ {
		samples, err := dec.Decode(seg.Audio[i])
		if err != nil {
			log.Printf("Skipping undecodable chunk %d of segment %d: %v", i, seg.ID, err)
			continue
		}
		if len(samples) == 0 {
			continue
		}

		idx := i
		buf := samples
		at := start.Add(total)
		total += audio.SamplesDuration(len(buf), s.format)

		time.AfterFunc(time.Until(at), func() {
			s.post(func() {
				if !valid() {
					return
				}
				if err := sink.Play(buf); err != nil {
					log.Printf("Playback failed for segment %d: %v", seg.ID, err)
				}
				if played != nil {
					played(idx)
				}
			})
		})
	}

	if total == 0 {
		done()
		return 0
	}

	end := start.Add(total)
	time.AfterFunc(time.Until(end), func() {
		s.post(done)
	})
	return total
}

func (s *Scheduler) finishPlayback(gen int) {
	if gen != s.playGen || s.current == nil {
		return
	}
	s.current.Advance(StatusPlayed)
	s.current = nil
	s.evaluate()
}

func (s *Scheduler) startReplay(seg *Segment) {
	s.replayGen++
	gen := s.replayGen
	s.replaySeg = seg

	s.scheduleChunks(seg, 0, s.replayOut, func() bool {
		return gen == s.replayGen
	}, nil, func() {
		s.finishReplay(gen, seg)
	})
}

func (s *Scheduler) finishReplay(gen int, seg *Segment) {
	if gen != s.replayGen {
		return
	}
	if seg.Status == StatusQueued {
		// A chained replay of a waiting segment counts as its playback. Both
		// lifecycle steps land in this one loop turn, so no snapshot ever sees
		// a second playing segment.
		seg.Advance(StatusPlaying)
		seg.Advance(StatusPlayed)
	}
	s.replaySeg = nil

	if s.replayContinuous {
		if next := s.segs.NextAfter(seg.ID); next != nil {
			s.startReplay(next)
			return
		}
	}
	s.evaluate()
}
