// ABOUTME: In-memory store used by tests and single-process deployments
// ABOUTME: Mirrors the Redis layout without external state
package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemorySession is one recorded speaking turn held in memory
type MemorySession struct {
	ID        string
	RoomID    string
	OwnerID   string
	StartedAt time.Time
	EndedAt   time.Time // zero until closed
	Audio     []byte
	Video     []byte
}

// MemoryStore keeps sessions and room counts in process memory
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*MemorySession
	rooms    map[string]int
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*MemorySession),
		rooms:    make(map[string]int),
	}
}

// CreateSession opens a durable record for one speaking turn
func (s *MemoryStore) CreateSession(ctx context.Context, sessionID, roomID, ownerID string, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = &MemorySession{
		ID:        sessionID,
		RoomID:    roomID,
		OwnerID:   ownerID,
		StartedAt: startedAt,
	}
	return nil
}

// AppendChunk appends media bytes to an open session
func (s *MemoryStore) AppendChunk(ctx context.Context, sessionID, kind string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}
	switch kind {
	case KindAudio:
		sess.Audio = append(sess.Audio, data...)
	case KindVideo:
		sess.Video = append(sess.Video, data...)
	default:
		return fmt.Errorf("unknown media kind: %s", kind)
	}
	return nil
}

// EndSession closes a session record
func (s *MemoryStore) EndSession(ctx context.Context, sessionID string, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}
	sess.EndedAt = endedAt
	return nil
}

// SetRoomCount persists the live membership count for a room
func (s *MemoryStore) SetRoomCount(ctx context.Context, roomID string, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[roomID] = count
	return nil
}

// DeleteRoom removes a room's durable state
func (s *MemoryStore) DeleteRoom(ctx context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
	return nil
}

// Session returns a copy of a recorded session, for assertions
func (s *MemoryStore) Session(sessionID string) (MemorySession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return MemorySession{}, false
	}
	return *sess, true
}

// RoomCount returns the persisted count for a room, for assertions
func (s *MemoryStore) RoomCount(roomID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.rooms[roomID]
	return n, ok
}
