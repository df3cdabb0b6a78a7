// ABOUTME: Client-side segment model
// ABOUTME: One segment per speaking turn, with status lifecycle and backlog
package client

import (
	"time"
)

// Status is the lifecycle state of a segment. Transitions only move forward:
// recording -> {queued, played} -> playing -> played.
type Status int

const (
	StatusRecording Status = iota
	StatusQueued
	StatusPlaying
	StatusPlayed
)

func (s Status) String() string {
	switch s {
	case StatusRecording:
		return "recording"
	case StatusQueued:
		return "queued"
	case StatusPlaying:
		return "playing"
	case StatusPlayed:
		return "played"
	default:
		return "unknown"
	}
}

// Segment accumulates one speaking turn's chunks. Once it leaves recording
// its chunk slices are never written again, so decode paths read them without
// locking.
type Segment struct {
	ID        int64
	UserID    string
	UserName  string
	CreatedAt time.Time

	Audio [][]byte
	Video [][]byte

	IsOwn      bool
	PlayedLive bool
	Status     Status
}

// HasMedia reports whether the segment accumulated anything worth keeping
func (s *Segment) HasMedia() bool {
	return len(s.Audio) > 0 || len(s.Video) > 0
}

// Advance moves the segment to a later lifecycle status. A move that would go
// backward is ignored, so the lifecycle only ever runs forward.
func (s *Segment) Advance(to Status) {
	if to > s.Status {
		s.Status = to
	}
}

// SegmentStore tracks the open segment per speaker and the completed backlog.
// It is owned by the scheduler goroutine and needs no locking of its own.
type SegmentStore struct {
	nextID  int64
	open    map[string]*Segment
	backlog []*Segment // completed segments in insertion order
}

// NewSegmentStore creates an empty store
func NewSegmentStore() *SegmentStore {
	return &SegmentStore{open: make(map[string]*Segment)}
}

// AddSegment opens a new recording segment for a user. If the user still has
// an open segment, that one is finalized first under the normal completion
// rules — restart never silently drops a tracked turn.
func (s *SegmentStore) AddSegment(userID, name string, isOwn bool) *Segment {
	if _, ok := s.open[userID]; ok {
		s.CompleteSegment(userID)
	}

	s.nextID++
	seg := &Segment{
		ID:        s.nextID,
		UserID:    userID,
		UserName:  name,
		CreatedAt: time.Now(),
		IsOwn:     isOwn,
		Status:    StatusRecording,
	}
	s.open[userID] = seg
	return seg
}

// AddChunk appends an audio chunk to the user's open segment.
// Returns the segment, or nil if the user has no open segment.
func (s *SegmentStore) AddChunk(userID string, data []byte) *Segment {
	seg, ok := s.open[userID]
	if !ok {
		return nil
	}
	seg.Audio = append(seg.Audio, data)
	return seg
}

// AddVideoChunk appends a video chunk to the user's open segment
func (s *SegmentStore) AddVideoChunk(userID string, data []byte) *Segment {
	seg, ok := s.open[userID]
	if !ok {
		return nil
	}
	seg.Video = append(seg.Video, data)
	return seg
}

// CompleteSegment closes the user's open segment. Zero-chunk segments are
// discarded. Own audio and segments that played live complete as played;
// everything else becomes queued in the backlog.
// Returns the segment (nil if discarded) and whether it was enqueued.
func (s *SegmentStore) CompleteSegment(userID string) (*Segment, bool) {
	seg, ok := s.open[userID]
	if !ok {
		return nil, false
	}
	delete(s.open, userID)

	if !seg.HasMedia() {
		return nil, false
	}

	enqueued := false
	if seg.IsOwn || seg.PlayedLive {
		seg.Advance(StatusPlayed)
	} else {
		seg.Advance(StatusQueued)
		enqueued = true
	}
	s.backlog = append(s.backlog, seg)
	return seg, enqueued
}

// OpenSegment returns the user's open segment, if any
func (s *SegmentStore) OpenSegment(userID string) (*Segment, bool) {
	seg, ok := s.open[userID]
	return seg, ok
}

// OpenSegments returns every currently open segment
func (s *SegmentStore) OpenSegments() []*Segment {
	segs := make([]*Segment, 0, len(s.open))
	for _, seg := range s.open {
		segs = append(segs, seg)
	}
	return segs
}

// Dequeue returns the oldest segment still waiting in the queue, or nil
func (s *SegmentStore) Dequeue() *Segment {
	for _, seg := range s.backlog {
		if seg.Status == StatusQueued {
			return seg
		}
	}
	return nil
}

// NextAfter returns the backlog entry following the given segment id, for
// continuous replay chaining. Nil at the end of the backlog.
func (s *SegmentStore) NextAfter(id int64) *Segment {
	for i, seg := range s.backlog {
		if seg.ID == id && i+1 < len(s.backlog) {
			return s.backlog[i+1]
		}
	}
	return nil
}

// Get returns a completed or open segment by id
func (s *SegmentStore) Get(id int64) *Segment {
	for _, seg := range s.backlog {
		if seg.ID == id {
			return seg
		}
	}
	for _, seg := range s.open {
		if seg.ID == id {
			return seg
		}
	}
	return nil
}

// QueuedCount returns how many segments are waiting for playback
func (s *SegmentStore) QueuedCount() int {
	n := 0
	for _, seg := range s.backlog {
		if seg.Status == StatusQueued {
			n++
		}
	}
	return n
}

// Backlog returns all completed segments in insertion order
func (s *SegmentStore) Backlog() []*Segment {
	return s.backlog
}
