// ABOUTME: Tests for the connection registry and room router
// ABOUTME: Membership invariants, broadcast scoping, and empty-room cleanup
package server

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/Talkwire-Project/talkwire-go/internal/protocol"
	"github.com/Talkwire-Project/talkwire-go/internal/store"
)

func drainOne(t *testing.T, c *Conn) *protocol.Message {
	t.Helper()
	select {
	case data := <-c.send:
		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("bad message on outbox: %v", err)
		}
		return &msg
	default:
		return nil
	}
}

func TestJoinLeaveMembershipCounts(t *testing.T) {
	st := store.NewMemoryStore()
	r := NewRouter(st, time.Minute)

	a := NewConn("a", "Alice", false)
	b := NewConn("b", "Bob", false)
	r.Register(a)
	r.Register(b)

	r.JoinRoom(a, "lobby")
	r.JoinRoom(b, "lobby")

	if n := r.MemberCount("lobby"); n != 2 {
		t.Errorf("expected 2 members, got %d", n)
	}
	if n, _ := st.RoomCount("lobby"); n != 2 {
		t.Errorf("expected persisted count 2, got %d", n)
	}

	// Moving rooms updates both sides
	r.JoinRoom(b, "den")
	if n := r.MemberCount("lobby"); n != 1 {
		t.Errorf("expected 1 member after move, got %d", n)
	}
	if n, _ := st.RoomCount("lobby"); n != 1 {
		t.Errorf("expected persisted count 1, got %d", n)
	}
	if n, _ := st.RoomCount("den"); n != 1 {
		t.Errorf("expected persisted count 1 in den, got %d", n)
	}

	r.Deregister(a)
	r.Deregister(b)
	if r.ConnCount() != 0 {
		t.Errorf("expected empty registry, got %d", r.ConnCount())
	}
}

func TestJoinBurstAcrossRooms(t *testing.T) {
	st := store.NewMemoryStore()
	r := NewRouter(st, time.Minute)

	// 10 connections across 5 rooms, 2 per room
	for i := 0; i < 10; i++ {
		c := NewConn(fmt.Sprintf("c%d", i), fmt.Sprintf("User%d", i), false)
		r.Register(c)
		r.JoinRoom(c, fmt.Sprintf("room%d", i%5))
	}

	for i := 0; i < 5; i++ {
		roomID := fmt.Sprintf("room%d", i)
		if n := r.MemberCount(roomID); n != 2 {
			t.Errorf("room %s: expected 2 live members, got %d", roomID, n)
		}
		if n, _ := st.RoomCount(roomID); n != 2 {
			t.Errorf("room %s: expected persisted count 2, got %d", roomID, n)
		}
	}
}

func TestBroadcastScopeAndExclusion(t *testing.T) {
	st := store.NewMemoryStore()
	r := NewRouter(st, time.Minute)

	a := NewConn("a", "Alice", false)
	b := NewConn("b", "Bob", false)
	c := NewConn("c", "Carol", false)
	for _, conn := range []*Conn{a, b, c} {
		r.Register(conn)
	}
	r.JoinRoom(a, "lobby")
	r.JoinRoom(b, "lobby")
	r.JoinRoom(c, "elsewhere")

	r.Broadcast(protocol.TypeUserJoined, protocol.UserJoined{UserID: "a", Name: "Alice"}, "a", "lobby")

	if msg := drainOne(t, a); msg != nil {
		t.Errorf("excluded sender received broadcast: %s", msg.Type)
	}
	if msg := drainOne(t, b); msg == nil || msg.Type != protocol.TypeUserJoined {
		t.Error("room member missed broadcast")
	}
	if msg := drainOne(t, c); msg != nil {
		t.Errorf("connection outside room received broadcast: %s", msg.Type)
	}
}

func TestBroadcastSkipsStalledPeer(t *testing.T) {
	st := store.NewMemoryStore()
	r := NewRouter(st, time.Minute)

	stalled := NewConn("s", "Stalled", false)
	healthy := NewConn("h", "Healthy", false)
	r.Register(stalled)
	r.Register(healthy)
	r.JoinRoom(stalled, "lobby")
	r.JoinRoom(healthy, "lobby")

	// Fill the stalled peer's outbox
	for i := 0; i < sendBuffer; i++ {
		stalled.Enqueue([]byte("x"))
	}

	r.Broadcast(protocol.TypeUserLeft, protocol.UserLeft{UserID: "z"}, "", "lobby")

	// Healthy peer still got it
	if msg := drainOne(t, healthy); msg == nil || msg.Type != protocol.TypeUserLeft {
		t.Error("healthy peer missed broadcast behind a stalled one")
	}
}

func TestEmptyRoomCleanupAfterGrace(t *testing.T) {
	st := store.NewMemoryStore()
	r := NewRouter(st, 20*time.Millisecond)

	a := NewConn("a", "Alice", false)
	r.Register(a)
	r.JoinRoom(a, "lobby")
	r.LeaveRoom(a)

	if _, ok := st.RoomCount("lobby"); !ok {
		t.Fatal("expected room state to survive until grace expires")
	}

	time.Sleep(60 * time.Millisecond)
	if _, ok := st.RoomCount("lobby"); ok {
		t.Error("expected room state reaped after grace period")
	}
}

func TestRejoinCancelsCleanup(t *testing.T) {
	st := store.NewMemoryStore()
	r := NewRouter(st, 30*time.Millisecond)

	a := NewConn("a", "Alice", false)
	r.Register(a)
	r.JoinRoom(a, "lobby")
	r.LeaveRoom(a)
	r.JoinRoom(a, "lobby") // rejoin before the grace timer fires

	time.Sleep(80 * time.Millisecond)
	if n, ok := st.RoomCount("lobby"); !ok || n != 1 {
		t.Errorf("expected room state kept after rejoin, got count=%d ok=%v", n, ok)
	}
}

func TestRoomMembersSnapshot(t *testing.T) {
	st := store.NewMemoryStore()
	r := NewRouter(st, time.Minute)

	a := NewConn("a", "Alice", false)
	b := NewConn("b", "Bob", false)
	r.Register(a)
	r.Register(b)
	r.JoinRoom(a, "lobby")
	r.JoinRoom(b, "lobby")
	b.SetSpeaking(true)

	users := r.RoomMembers("lobby", "a")
	if len(users) != 1 {
		t.Fatalf("expected 1 member excluding self, got %d", len(users))
	}
	if users[0].UserID != "b" || !users[0].Speaking {
		t.Errorf("unexpected snapshot: %+v", users[0])
	}
}
