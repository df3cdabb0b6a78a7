// ABOUTME: Closed decoders for inbound protocol messages
// ABOUTME: One dispatch function per side so message handling stays exhaustive
package protocol

import (
	"encoding/json"
	"fmt"
)

// ErrUnknownType is returned for message tags neither side defines.
// Callers drop the message and keep the connection.
var ErrUnknownType = fmt.Errorf("unknown message type")

// DecodeClientMessage parses a message received by the server from a client.
// Returns one of: *JoinRoom, *AudioStart, *AudioChunk, *AudioEnd, *VideoChunk.
func DecodeClientMessage(data []byte) (interface{}, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}

	switch msg.Type {
	case TypeJoinRoom:
		return decodePayload(msg, &JoinRoom{})
	case TypeAudioStart:
		return decodePayload(msg, &AudioStart{})
	case TypeAudioChunk:
		return decodePayload(msg, &AudioChunk{})
	case TypeAudioEnd:
		return decodePayload(msg, &AudioEnd{})
	case TypeVideoChunk:
		return decodePayload(msg, &VideoChunk{})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, msg.Type)
	}
}

// DecodeServerMessage parses a message received by the client from the server.
// Returns one of: *RoomJoined, *UserJoined, *UserLeft, *SpeakerJoined,
// *SpeakerLeft, *AudioData, *VideoData.
func DecodeServerMessage(data []byte) (interface{}, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}

	switch msg.Type {
	case TypeRoomJoined:
		return decodePayload(msg, &RoomJoined{})
	case TypeUserJoined:
		return decodePayload(msg, &UserJoined{})
	case TypeUserLeft:
		return decodePayload(msg, &UserLeft{})
	case TypeSpeakerJoined:
		return decodePayload(msg, &SpeakerJoined{})
	case TypeSpeakerLeft:
		return decodePayload(msg, &SpeakerLeft{})
	case TypeAudioData:
		return decodePayload(msg, &AudioData{})
	case TypeVideoChunk:
		return decodePayload(msg, &VideoData{})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, msg.Type)
	}
}

func decodePayload(msg Message, dst interface{}) (interface{}, error) {
	if len(msg.Payload) == 0 {
		return dst, nil
	}
	if err := json.Unmarshal(msg.Payload, dst); err != nil {
		return nil, fmt.Errorf("malformed %s payload: %w", msg.Type, err)
	}
	return dst, nil
}
