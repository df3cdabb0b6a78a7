// ABOUTME: Talkwire wire message type definitions
// ABOUTME: Tagged JSON records exchanged over the room WebSocket
package protocol

import "encoding/json"

// Message type tags. audio_chunk/video_chunk arrive from the speaker without
// attribution; the server stamps the sender's userId on the way back out.
const (
	// Client -> server
	TypeJoinRoom   = "join_room"
	TypeAudioStart = "audio_start"
	TypeAudioChunk = "audio_chunk"
	TypeAudioEnd   = "audio_end"
	TypeVideoChunk = "video_chunk"

	// Server -> client. Video relays reuse the video_chunk tag with the
	// sender's userId stamped in.
	TypeRoomJoined    = "room_joined"
	TypeUserJoined    = "user_joined"
	TypeUserLeft      = "user_left"
	TypeSpeakerJoined = "speaker_joined"
	TypeSpeakerLeft   = "speaker_left"
	TypeAudioData     = "audio_data"
)

// Message is the top-level envelope for all protocol messages
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Marshal wraps a payload in an envelope and serializes it
func Marshal(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: msgType, Payload: raw})
}

// UserInfo describes one room member in a room_joined snapshot
type UserInfo struct {
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	Speaking bool   `json:"speaking"`
}

// JoinRoom requests membership in a room, leaving any prior room
type JoinRoom struct {
	RoomID string `json:"roomId"`
}

// AudioStart announces the start of a speaking turn
type AudioStart struct{}

// AudioChunk carries one compressed audio chunk from the speaker
type AudioChunk struct {
	Data []byte `json:"data"`
}

// AudioEnd announces the end of a speaking turn
type AudioEnd struct{}

// VideoChunk carries one video chunk from the speaker
type VideoChunk struct {
	Data []byte `json:"data"`
}

// RoomJoined confirms a join and snapshots current membership
type RoomJoined struct {
	RoomID       string     `json:"roomId"`
	CurrentUsers []UserInfo `json:"currentUsers"`
}

// UserJoined notifies a room that a member arrived
type UserJoined struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// UserLeft notifies a room that a member departed
type UserLeft struct {
	UserID string `json:"userId"`
}

// SpeakerJoined notifies a room that a member started speaking
type SpeakerJoined struct {
	UserID string `json:"userId"`
	Name   string `json:"user"`
}

// SpeakerLeft notifies a room that a member stopped speaking
type SpeakerLeft struct {
	UserID string `json:"userId"`
	Name   string `json:"user"`
}

// AudioData relays one compressed audio chunk to listeners
type AudioData struct {
	UserID string `json:"userId"`
	Data   []byte `json:"data"`
}

// VideoData relays one video chunk to listeners (sent under TypeVideoChunk)
type VideoData struct {
	UserID string `json:"userId"`
	Data   []byte `json:"data"`
}
