// ABOUTME: Server-side connection representation
// ABOUTME: Identity, room membership, speaking flag, and a non-blocking outbox
package server

import "sync"

// sendBuffer is sized so a briefly stalled peer absorbs a burst of chunks
// without blocking the room.
const sendBuffer = 128

// Conn is one live client connection. It exists for the socket lifetime and
// owns its outbox; the writer goroutine is the only reader of send.
type Conn struct {
	ID     string
	Name   string
	Authed bool

	mu       sync.Mutex
	roomID   string
	speaking bool
	closed   bool

	send chan []byte
}

// NewConn creates a connection record for a resolved identity
func NewConn(id, name string, authed bool) *Conn {
	return &Conn{
		ID:     id,
		Name:   name,
		Authed: authed,
		send:   make(chan []byte, sendBuffer),
	}
}

// RoomID returns the connection's current room ("" if none)
func (c *Conn) RoomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

func (c *Conn) setRoomID(roomID string) {
	c.mu.Lock()
	c.roomID = roomID
	c.mu.Unlock()
}

// Speaking reports whether the connection holds the floor
func (c *Conn) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}

// SetSpeaking updates the speaking flag
func (c *Conn) SetSpeaking(speaking bool) {
	c.mu.Lock()
	c.speaking = speaking
	c.mu.Unlock()
}

// Enqueue offers a serialized message to the outbox without blocking.
// Returns false if the connection is closed or its buffer is full; a slow
// peer loses its own messages, never the room's.
func (c *Conn) Enqueue(data []byte) bool {
	// The lock is held across the non-blocking send so Enqueue can never race
	// a concurrent CloseSend into a closed channel.
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// CloseSend marks the connection closed and releases the writer goroutine
func (c *Conn) CloseSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Outbox exposes the send channel to the writer goroutine
func (c *Conn) Outbox() <-chan []byte {
	return c.send
}
