// ABOUTME: Connection registry and room broadcast router
// ABOUTME: Tracks membership, fans out messages, schedules empty-room cleanup
package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Talkwire-Project/talkwire-go/internal/protocol"
	"github.com/Talkwire-Project/talkwire-go/internal/store"
)

// DefaultCleanupGrace is how long an empty room's durable state survives
// before deletion, cancelled if anyone rejoins first.
const DefaultCleanupGrace = 10 * time.Minute

// Router owns the connection registry and room membership maps.
// All maps share one mutex; broadcast fan-out happens outside it.
type Router struct {
	mu      sync.Mutex
	conns   map[string]*Conn
	rooms   map[string]map[string]*Conn
	cleanup map[string]*time.Timer

	store store.Store
	grace time.Duration
}

// NewRouter creates a router persisting membership counts to st
func NewRouter(st store.Store, grace time.Duration) *Router {
	if grace <= 0 {
		grace = DefaultCleanupGrace
	}
	return &Router{
		conns:   make(map[string]*Conn),
		rooms:   make(map[string]map[string]*Conn),
		cleanup: make(map[string]*time.Timer),
		store:   st,
		grace:   grace,
	}
}

// Register adds a connection to the registry
func (r *Router) Register(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID] = c
}

// Deregister removes a connection, leaving its room first
func (r *Router) Deregister(c *Conn) {
	r.LeaveRoom(c)
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, c.ID)
}

// JoinRoom moves a connection into roomID, leaving any prior room.
// A pending cleanup timer on the new room is cancelled; the prior room is
// scheduled for cleanup if now empty.
func (r *Router) JoinRoom(c *Conn, roomID string) {
	r.LeaveRoom(c)

	r.mu.Lock()
	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]*Conn)
		r.rooms[roomID] = members
	}
	members[c.ID] = c
	if timer, ok := r.cleanup[roomID]; ok {
		timer.Stop()
		delete(r.cleanup, roomID)
	}
	count := len(members)
	r.mu.Unlock()

	c.setRoomID(roomID)
	r.persistCount(roomID, count)
}

// LeaveRoom removes a connection from its current room, if any
func (r *Router) LeaveRoom(c *Conn) {
	roomID := c.RoomID()
	if roomID == "" {
		return
	}

	r.mu.Lock()
	members, ok := r.rooms[roomID]
	var count int
	if ok {
		delete(members, c.ID)
		count = len(members)
		if count == 0 {
			delete(r.rooms, roomID)
			r.scheduleCleanupLocked(roomID)
		}
	}
	r.mu.Unlock()

	c.setRoomID("")
	if ok {
		r.persistCount(roomID, count)
	}
}

// scheduleCleanupLocked arms the grace timer for an empty room. Caller holds mu.
func (r *Router) scheduleCleanupLocked(roomID string) {
	if timer, ok := r.cleanup[roomID]; ok {
		timer.Stop()
	}
	r.cleanup[roomID] = time.AfterFunc(r.grace, func() {
		r.mu.Lock()
		// A rejoin recreates the room entry; only reap if still empty.
		if _, alive := r.rooms[roomID]; alive {
			r.mu.Unlock()
			return
		}
		delete(r.cleanup, roomID)
		r.mu.Unlock()

		if err := r.store.DeleteRoom(context.Background(), roomID); err != nil {
			log.Printf("Failed to delete room %s state: %v", roomID, err)
		}
		log.Printf("Reaped empty room %s", roomID)
	})
}

// Broadcast serializes the payload once and enqueues it to every connection
// in roomID except excludeID. Empty roomID targets no one; delivery order per
// room follows invocation order here.
func (r *Router) Broadcast(msgType string, payload interface{}, excludeID, roomID string) {
	if roomID == "" {
		return
	}

	data, err := protocol.Marshal(msgType, payload)
	if err != nil {
		log.Printf("Failed to marshal %s broadcast: %v", msgType, err)
		return
	}

	r.mu.Lock()
	members := r.rooms[roomID]
	targets := make([]*Conn, 0, len(members))
	for id, c := range members {
		if id == excludeID {
			continue
		}
		targets = append(targets, c)
	}
	r.mu.Unlock()

	for _, c := range targets {
		if !c.Enqueue(data) {
			log.Printf("Dropped %s for %s: send buffer full or closed", msgType, c.ID)
		}
	}
}

// RoomMembers snapshots the membership of a room for room_joined replies
func (r *Router) RoomMembers(roomID, excludeID string) []protocol.UserInfo {
	r.mu.Lock()
	members := r.rooms[roomID]
	conns := make([]*Conn, 0, len(members))
	for id, c := range members {
		if id == excludeID {
			continue
		}
		conns = append(conns, c)
	}
	r.mu.Unlock()

	users := make([]protocol.UserInfo, 0, len(conns))
	for _, c := range conns {
		users = append(users, protocol.UserInfo{
			UserID:   c.ID,
			Name:     c.Name,
			Speaking: c.Speaking(),
		})
	}
	return users
}

// MemberCount returns the live connection count for a room
func (r *Router) MemberCount(roomID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms[roomID])
}

// ConnCount returns the registry size
func (r *Router) ConnCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// persistCount mirrors the live count into durable storage. Failures are
// logged and ignored; relay never waits on the store.
func (r *Router) persistCount(roomID string, count int) {
	if err := r.store.SetRoomCount(context.Background(), roomID, count); err != nil {
		log.Printf("Failed to persist count for room %s: %v", roomID, err)
	}
}

// StopCleanupTimers cancels all pending room reapers, for shutdown
func (r *Router) StopCleanupTimers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, timer := range r.cleanup {
		timer.Stop()
		delete(r.cleanup, id)
	}
}
