// ABOUTME: Recording session tracker
// ABOUTME: Opens and closes durable records of speaking turns, one per owner
package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Talkwire-Project/talkwire-go/internal/store"
	"github.com/google/uuid"
)

// SessionTracker keeps at most one open recording session per owner.
// Every store failure is a logged side effect; the caller's relay path never
// depends on the outcome.
type SessionTracker struct {
	mu    sync.Mutex
	open  map[string]string // ownerID -> sessionID
	store store.Store
}

// NewSessionTracker creates a tracker persisting to st
func NewSessionTracker(st store.Store) *SessionTracker {
	return &SessionTracker{
		open:  make(map[string]string),
		store: st,
	}
}

// CreateSession opens a session for a speaking turn and returns its id.
// An owner with a session still open gets that one closed first, so the
// one-open-per-owner invariant holds even across a missed audio_end.
func (t *SessionTracker) CreateSession(ctx context.Context, roomID, ownerID string) string {
	t.mu.Lock()
	prev, hadPrev := t.open[ownerID]
	sessionID := uuid.New().String()
	t.open[ownerID] = sessionID
	t.mu.Unlock()

	if hadPrev {
		log.Printf("Owner %s started a turn with session %s still open; closing it", ownerID, prev)
		if err := t.store.EndSession(ctx, prev, time.Now()); err != nil {
			log.Printf("Failed to end stale session %s: %v", prev, err)
		}
	}

	if err := t.store.CreateSession(ctx, sessionID, roomID, ownerID, time.Now()); err != nil {
		log.Printf("Failed to create session %s: %v", sessionID, err)
	}
	return sessionID
}

// AppendChunk appends media bytes to the owner's open session, if any
func (t *SessionTracker) AppendChunk(ctx context.Context, ownerID, kind string, data []byte) {
	t.mu.Lock()
	sessionID, ok := t.open[ownerID]
	t.mu.Unlock()
	if !ok {
		return
	}

	if err := t.store.AppendChunk(ctx, sessionID, kind, data); err != nil {
		log.Printf("Failed to append %s chunk to session %s: %v", kind, sessionID, err)
	}
}

// EndSession closes the owner's open session, if any
func (t *SessionTracker) EndSession(ctx context.Context, ownerID string) {
	t.mu.Lock()
	sessionID, ok := t.open[ownerID]
	if ok {
		delete(t.open, ownerID)
	}
	t.mu.Unlock()
	if !ok {
		return
	}

	if err := t.store.EndSession(ctx, sessionID, time.Now()); err != nil {
		log.Printf("Failed to end session %s: %v", sessionID, err)
	}
}

// OpenSession returns the owner's open session id, if any
func (t *SessionTracker) OpenSession(ownerID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.open[ownerID]
	return id, ok
}
