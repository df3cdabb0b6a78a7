// ABOUTME: Tests for protocol message encoding and decoding
// ABOUTME: Covers round trips, unknown tags, and malformed payloads
package protocol

import (
	"bytes"
	"testing"
)

func TestMarshalDecodeRoundTrip(t *testing.T) {
	data, err := Marshal(TypeAudioData, AudioData{UserID: "u1", Data: []byte{0x01, 0x02, 0x03}})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	decoded, err := DecodeServerMessage(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	audio, ok := decoded.(*AudioData)
	if !ok {
		t.Fatalf("expected *AudioData, got %T", decoded)
	}
	if audio.UserID != "u1" {
		t.Errorf("expected userId u1, got %s", audio.UserID)
	}
	if !bytes.Equal(audio.Data, []byte{0x01, 0x02, 0x03}) {
		t.Errorf("chunk data corrupted: %v", audio.Data)
	}
}

func TestDecodeClientMessageTypes(t *testing.T) {
	tests := []struct {
		msgType string
		payload interface{}
	}{
		{TypeJoinRoom, JoinRoom{RoomID: "lobby"}},
		{TypeAudioStart, AudioStart{}},
		{TypeAudioChunk, AudioChunk{Data: []byte{0xff}}},
		{TypeAudioEnd, AudioEnd{}},
		{TypeVideoChunk, VideoChunk{Data: []byte{0xaa}}},
	}

	for _, tt := range tests {
		data, err := Marshal(tt.msgType, tt.payload)
		if err != nil {
			t.Fatalf("marshal %s failed: %v", tt.msgType, err)
		}
		if _, err := DecodeClientMessage(data); err != nil {
			t.Errorf("decode %s failed: %v", tt.msgType, err)
		}
	}
}

func TestDecodeUnknownTypeDropped(t *testing.T) {
	data, err := Marshal("group/hug", map[string]string{"x": "y"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	if _, err := DecodeClientMessage(data); err == nil {
		t.Error("expected error for unknown client message type")
	}
	if _, err := DecodeServerMessage(data); err == nil {
		t.Error("expected error for unknown server message type")
	}
}

func TestDecodeMalformedEnvelope(t *testing.T) {
	if _, err := DecodeClientMessage([]byte("{not json")); err == nil {
		t.Error("expected error for malformed envelope")
	}
}

func TestDecodeMalformedPayload(t *testing.T) {
	if _, err := DecodeClientMessage([]byte(`{"type":"join_room","payload":[1,2]}`)); err == nil {
		t.Error("expected error for payload of wrong shape")
	}
}

func TestDecodeEmptyPayload(t *testing.T) {
	// audio_start and audio_end carry no payload fields
	decoded, err := DecodeClientMessage([]byte(`{"type":"audio_start"}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if _, ok := decoded.(*AudioStart); !ok {
		t.Errorf("expected *AudioStart, got %T", decoded)
	}
}
