// ABOUTME: WebSocket client for the Talkwire relay
// ABOUTME: Handles connection, room join, reconnection, and message routing
package client

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/Talkwire-Project/talkwire-go/internal/protocol"
	"github.com/gorilla/websocket"
)

// DefaultReconnectWait is the fixed delay between reconnection attempts
const DefaultReconnectWait = 3 * time.Second

// Config holds client connection configuration
type Config struct {
	ServerAddr string // host:port of the relay
	Token      string // optional auth token, empty for anonymous
	RoomID     string
}

// Client maintains the WebSocket connection to the relay. Decoded server
// messages arrive on Events; connection transitions on ConnState.
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.RWMutex

	Events    chan interface{}
	ConnState chan bool

	connected     bool
	reconnectWait time.Duration
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewClient creates a relay client
func NewClient(config Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:        config,
		Events:        make(chan interface{}, 100),
		ConnState:     make(chan bool, 10),
		reconnectWait: DefaultReconnectWait,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Run connects and keeps the connection alive, rejoining the room after each
// reconnect. Returns when Close is called.
func (c *Client) Run() {
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		if err := c.connect(); err != nil {
			log.Printf("Connection failed: %v (retrying in %v)", err, c.reconnectWait)
			c.wait()
			continue
		}

		c.notifyState(true)
		c.readMessages()
		c.setDisconnected()
		c.notifyState(false)

		log.Printf("Disconnected from relay, reconnecting in %v", c.reconnectWait)
		c.wait()
	}
}

// connect dials the relay and joins the configured room
func (c *Client) connect() error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: "/talkwire"}
	if c.config.Token != "" {
		u.RawQuery = url.Values{"token": {c.config.Token}}.Encode()
	}
	log.Printf("Connecting to %s", u.Host)

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.send(protocol.TypeJoinRoom, protocol.JoinRoom{RoomID: c.config.RoomID}); err != nil {
		c.setDisconnected()
		return fmt.Errorf("join failed: %w", err)
	}

	return nil
}

// readMessages decodes inbound messages until the connection dies
func (c *Client) readMessages() {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.ctx.Done():
			default:
				log.Printf("Read error: %v", err)
			}
			return
		}

		decoded, err := protocol.DecodeServerMessage(data)
		if err != nil {
			log.Printf("Dropping server message: %v", err)
			continue
		}

		select {
		case c.Events <- decoded:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) send(msgType string, payload interface{}) error {
	data, err := protocol.Marshal(msgType, payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msgType, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return fmt.Errorf("not connected")
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// SendAudioStart announces the start of a speaking turn
func (c *Client) SendAudioStart() error {
	return c.send(protocol.TypeAudioStart, protocol.AudioStart{})
}

// SendAudioChunk sends one encoded audio chunk
func (c *Client) SendAudioChunk(data []byte) error {
	return c.send(protocol.TypeAudioChunk, protocol.AudioChunk{Data: data})
}

// SendAudioEnd announces the end of a speaking turn
func (c *Client) SendAudioEnd() error {
	return c.send(protocol.TypeAudioEnd, protocol.AudioEnd{})
}

// SendVideoChunk sends one video chunk
func (c *Client) SendVideoChunk(data []byte) error {
	return c.send(protocol.TypeVideoChunk, protocol.VideoChunk{Data: data})
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Client) setDisconnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.connected = false
}

func (c *Client) notifyState(connected bool) {
	select {
	case c.ConnState <- connected:
	default:
	}
}

func (c *Client) wait() {
	select {
	case <-c.ctx.Done():
	case <-time.After(c.reconnectWait):
	}
}

// Close shuts the client down
func (c *Client) Close() {
	c.cancel()
	c.setDisconnected()
}
