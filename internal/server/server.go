// ABOUTME: Main server implementation for the Talkwire relay
// ABOUTME: Manages WebSocket connections, room fan-out, and recording sessions
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Talkwire-Project/talkwire-go/internal/discovery"
	"github.com/Talkwire-Project/talkwire-go/internal/protocol"
	"github.com/Talkwire-Project/talkwire-go/internal/store"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

// Config holds server configuration
type Config struct {
	Port         int
	Name         string
	EnableMDNS   bool
	Debug        bool
	AuthSecret   string
	RedisAddr    string // Empty = in-memory store
	CleanupGrace time.Duration
}

// Server is the Talkwire relay server
type Server struct {
	config Config

	upgrader websocket.Upgrader

	httpServer *http.Server
	mux        *http.ServeMux

	router   *Router
	sessions *SessionTracker

	mdnsManager *discovery.Manager

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup

	// Live upgraded sockets. http.Server.Shutdown ignores hijacked
	// connections, so shutdown closes these directly to unblock their readers.
	connMu sync.Mutex
	active map[*websocket.Conn]struct{}

	listenMu sync.Mutex
	listener net.Listener
}

// New creates a new server instance
func New(config Config) *Server {
	var st store.Store
	if config.RedisAddr != "" {
		st = store.NewRedisStore(redis.NewClient(&redis.Options{Addr: config.RedisAddr}))
		log.Printf("Using Redis store at %s", config.RedisAddr)
	} else {
		st = store.NewMemoryStore()
		log.Printf("No Redis configured, using in-memory store")
	}

	return &Server{
		config: config,
		mux:    http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Trusted local/LAN deployments; browser clients connect from
				// arbitrary origins.
				return true
			},
		},
		router:   NewRouter(st, config.CleanupGrace),
		sessions: NewSessionTracker(st),
		stopChan: make(chan struct{}),
		active:   make(map[*websocket.Conn]struct{}),
	}
}

// Start runs the server until Stop is called or the listener fails
func (s *Server) Start() error {
	log.Printf("Server starting: %s", s.config.Name)

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			ServerMode:  true,
		})
		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		} else {
			log.Printf("mDNS advertisement started")
		}
	}

	s.mux.HandleFunc("/talkwire", s.handleWebSocket)
	s.mux.HandleFunc("/voice/token", s.handleVoiceToken)

	addr := fmt.Sprintf(":%d", s.config.Port)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listenMu.Lock()
	s.listener = ln
	s.listenMu.Unlock()
	log.Printf("WebSocket server listening on %s", ln.Addr())

	s.httpServer = &http.Server{Handler: s.mux}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case <-s.stopChan:
		log.Printf("Server shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serverErr = err
	}

	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}
	s.router.StopCleanupTimers()

	// Upgraded sockets outlive Shutdown; closing them ends their read loops,
	// which run the per-connection cleanup and release the writer goroutines.
	s.closeActiveConns()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	s.wg.Wait()
	log.Printf("Server stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// Addr returns the bound listen address, or "" before Start has one
func (s *Server) Addr() string {
	s.listenMu.Lock()
	defer s.listenMu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// closeActiveConns closes every live websocket, sending a going-away frame
// first so well-behaved clients know not to reconnect here.
func (s *Server) closeActiveConns() {
	s.connMu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.active))
	for ws := range s.active {
		conns = append(conns, ws)
	}
	s.connMu.Unlock()

	for _, ws := range conns {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		ws.Close()
	}
}

func (s *Server) trackConn(ws *websocket.Conn) {
	s.connMu.Lock()
	s.active[ws] = struct{}{}
	s.connMu.Unlock()
}

func (s *Server) untrackConn(ws *websocket.Conn) {
	s.connMu.Lock()
	delete(s.active, ws)
	s.connMu.Unlock()
}

// handleWebSocket upgrades and hands off to the connection loop
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("New WebSocket connection from %s", r.RemoteAddr)
	s.handleConnection(conn, r.URL.Query().Get("token"))
}

// handleConnection manages one client connection for its lifetime
func (s *Server) handleConnection(ws *websocket.Conn, token string) {
	defer ws.Close()

	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		log.Printf("Rejecting connection during shutdown")
		return
	}
	// Track under the same read lock as the shutdown check, so a connection
	// either gets rejected or is visible to closeActiveConns.
	s.trackConn(ws)
	s.shutdownMu.RUnlock()
	defer s.untrackConn(ws)

	identity := ResolveToken(token, s.config.AuthSecret)
	conn := NewConn(identity.ID, identity.Name, identity.Authed)
	s.router.Register(conn)

	log.Printf("Connection registered: %s (%s, authed=%v)", conn.Name, conn.ID, conn.Authed)

	// Connection-owned cleanup: finalize the open session, decrement
	// membership, broadcast departure, then deregister — all before this
	// task exits.
	defer func() {
		roomID := conn.RoomID()
		s.sessions.EndSession(context.Background(), conn.ID)
		if conn.Speaking() {
			s.router.Broadcast(protocol.TypeSpeakerLeft,
				protocol.SpeakerLeft{UserID: conn.ID, Name: conn.Name}, conn.ID, roomID)
		}
		s.router.Deregister(conn)
		s.router.Broadcast(protocol.TypeUserLeft,
			protocol.UserLeft{UserID: conn.ID}, conn.ID, roomID)
		conn.CloseSend()
		log.Printf("Connection closed: %s (%s)", conn.Name, conn.ID)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.connWriter(conn, ws)
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error for %s: %v", conn.ID, err)
			}
			return
		}
		s.handleMessage(conn, data)
	}
}

// connWriter drains the connection outbox onto the socket and keeps the peer
// alive with pings. A write failure ends only this connection.
func (s *Server) connWriter(conn *Conn, ws *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	const writeDeadline = 10 * time.Second

	for {
		select {
		case data, ok := <-conn.Outbox():
			if !ok {
				return
			}
			ws.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("Write failed for %s: %v", conn.ID, err)
				ws.Close()
				return
			}

		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches one inbound message. Malformed or unknown
// messages are dropped; the connection stays up.
func (s *Server) handleMessage(conn *Conn, data []byte) {
	decoded, err := protocol.DecodeClientMessage(data)
	if err != nil {
		log.Printf("Dropping message from %s: %v", conn.ID, err)
		return
	}

	switch msg := decoded.(type) {
	case *protocol.JoinRoom:
		s.handleJoinRoom(conn, msg)
	case *protocol.AudioStart:
		s.handleAudioStart(conn)
	case *protocol.AudioChunk:
		s.handleAudioChunk(conn, msg)
	case *protocol.AudioEnd:
		s.handleAudioEnd(conn)
	case *protocol.VideoChunk:
		s.handleVideoChunk(conn, msg)
	}
}

func (s *Server) handleJoinRoom(conn *Conn, msg *protocol.JoinRoom) {
	if msg.RoomID == "" {
		log.Printf("Dropping join_room with empty roomId from %s", conn.ID)
		return
	}

	s.router.JoinRoom(conn, msg.RoomID)

	reply, err := protocol.Marshal(protocol.TypeRoomJoined, protocol.RoomJoined{
		RoomID:       msg.RoomID,
		CurrentUsers: s.router.RoomMembers(msg.RoomID, conn.ID),
	})
	if err != nil {
		log.Printf("Failed to marshal room_joined: %v", err)
	} else {
		conn.Enqueue(reply)
	}

	s.router.Broadcast(protocol.TypeUserJoined,
		protocol.UserJoined{UserID: conn.ID, Name: conn.Name}, conn.ID, msg.RoomID)

	if s.config.Debug {
		log.Printf("[DEBUG] %s joined room %s (%d members)", conn.ID, msg.RoomID, s.router.MemberCount(msg.RoomID))
	}
}

func (s *Server) handleAudioStart(conn *Conn) {
	roomID := conn.RoomID()
	if roomID == "" {
		log.Printf("Dropping audio_start from %s: not in a room", conn.ID)
		return
	}

	conn.SetSpeaking(true)
	s.sessions.CreateSession(context.Background(), roomID, conn.ID)
	s.router.Broadcast(protocol.TypeSpeakerJoined,
		protocol.SpeakerJoined{UserID: conn.ID, Name: conn.Name}, conn.ID, roomID)
}

func (s *Server) handleAudioChunk(conn *Conn, msg *protocol.AudioChunk) {
	roomID := conn.RoomID()
	if roomID == "" {
		return
	}

	// Relay first; the durable append is a side effect that must not gate it.
	s.router.Broadcast(protocol.TypeAudioData,
		protocol.AudioData{UserID: conn.ID, Data: msg.Data}, conn.ID, roomID)
	s.sessions.AppendChunk(context.Background(), conn.ID, store.KindAudio, msg.Data)
}

func (s *Server) handleAudioEnd(conn *Conn) {
	roomID := conn.RoomID()
	if roomID == "" {
		return
	}

	conn.SetSpeaking(false)
	s.sessions.EndSession(context.Background(), conn.ID)
	s.router.Broadcast(protocol.TypeSpeakerLeft,
		protocol.SpeakerLeft{UserID: conn.ID, Name: conn.Name}, conn.ID, roomID)
}

func (s *Server) handleVideoChunk(conn *Conn, msg *protocol.VideoChunk) {
	roomID := conn.RoomID()
	if roomID == "" {
		return
	}

	s.router.Broadcast(protocol.TypeVideoChunk,
		protocol.VideoData{UserID: conn.ID, Data: msg.Data}, conn.ID, roomID)
	s.sessions.AppendChunk(context.Background(), conn.ID, store.KindVideo, msg.Data)
}
