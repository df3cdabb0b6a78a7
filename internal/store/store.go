// ABOUTME: Durable storage interface for rooms and recording sessions
// ABOUTME: Backed by Redis in production, by memory in tests
package store

import (
	"context"
	"time"
)

// Store persists room membership counts and recording session media.
// All failures are treated as non-fatal by callers: live relay never waits on
// durable writes.
type Store interface {
	// CreateSession opens a durable record for one speaking turn
	CreateSession(ctx context.Context, sessionID, roomID, ownerID string, startedAt time.Time) error

	// AppendChunk appends media bytes to an open session. kind is "audio" or
	// "video".
	AppendChunk(ctx context.Context, sessionID, kind string, data []byte) error

	// EndSession closes a session record
	EndSession(ctx context.Context, sessionID string, endedAt time.Time) error

	// SetRoomCount persists the live membership count for a room
	SetRoomCount(ctx context.Context, roomID string, count int) error

	// DeleteRoom removes a room's durable state after the cleanup grace period
	DeleteRoom(ctx context.Context, roomID string) error
}

// Media kinds accepted by AppendChunk
const (
	KindAudio = "audio"
	KindVideo = "video"
)
