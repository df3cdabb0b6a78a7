// ABOUTME: Redis-backed durable store
// ABOUTME: Session hashes plus appended media blobs and room counters
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists sessions and room counts in Redis
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a store on an existing Redis client
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

func sessionMediaKey(sessionID, kind string) string {
	return fmt.Sprintf("session:%s:%s", sessionID, kind)
}

func roomCountKey(roomID string) string {
	return fmt.Sprintf("room:%s:members", roomID)
}

// CreateSession opens a durable record for one speaking turn
func (s *RedisStore) CreateSession(ctx context.Context, sessionID, roomID, ownerID string, startedAt time.Time) error {
	return s.rdb.HSet(ctx, sessionKey(sessionID),
		"owner", ownerID,
		"room", roomID,
		"started", startedAt.UnixMilli(),
		"ended", 0,
	).Err()
}

// AppendChunk appends media bytes to an open session
func (s *RedisStore) AppendChunk(ctx context.Context, sessionID, kind string, data []byte) error {
	if kind != KindAudio && kind != KindVideo {
		return fmt.Errorf("unknown media kind: %s", kind)
	}
	return s.rdb.Append(ctx, sessionMediaKey(sessionID, kind), string(data)).Err()
}

// EndSession closes a session record
func (s *RedisStore) EndSession(ctx context.Context, sessionID string, endedAt time.Time) error {
	return s.rdb.HSet(ctx, sessionKey(sessionID), "ended", endedAt.UnixMilli()).Err()
}

// SetRoomCount persists the live membership count for a room
func (s *RedisStore) SetRoomCount(ctx context.Context, roomID string, count int) error {
	return s.rdb.Set(ctx, roomCountKey(roomID), count, 0).Err()
}

// DeleteRoom removes a room's durable state
func (s *RedisStore) DeleteRoom(ctx context.Context, roomID string) error {
	return s.rdb.Del(ctx, roomCountKey(roomID)).Err()
}
