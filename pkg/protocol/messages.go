// ABOUTME: blockq stream protocol message type definitions
// ABOUTME: JSON control messages exchanged over the websocket next to binary chunk frames
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/Resonate-Protocol/blockq/pkg/audio"
)

// Message types
const (
	TypeClientHello   = "client/hello"
	TypeClientState   = "client/state"
	TypeClientGoodbye = "client/goodbye"
	TypeServerHello   = "server/hello"
	TypeServerCommand = "server/command"
	TypeStreamStart   = "stream/start"
	TypeStreamRequest = "stream/request"
	TypeStreamSeek    = "stream/seek"
	TypeStreamFlush   = "stream/flush"
	TypeStreamEnd     = "stream/end"
)

// Message is the top-level wrapper for all protocol messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Decode unmarshals the message payload into v
func (m Message) Decode(v interface{}) error {
	data, err := json.Marshal(m.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", m.Type, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", m.Type, err)
	}
	return nil
}

// ClientHello is sent by clients to initiate the handshake
type ClientHello struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
	// Formats the client can play, most preferred first
	SupportedFormats []AudioFormat `json:"supported_formats"`
	Buffer           BufferAttr    `json:"buffer"`
}

// BufferAttr describes the client's queue thresholds in milliseconds of
// decoded audio. Players fill in a zero MaxLengthMs or TargetMs with their
// own default. A PrebufMs of -1 selects the queue's default prebuffer level.
type BufferAttr struct {
	MaxLengthMs int `json:"max_length_ms"`
	TargetMs    int `json:"target_ms"`
	PrebufMs    int `json:"prebuf_ms"`
	MinReqMs    int `json:"min_req_ms"`
	MaxRewindMs int `json:"max_rewind_ms"`
}

// AudioFormat describes a supported audio format
type AudioFormat struct {
	Codec      string `json:"codec"`
	Channels   int    `json:"channels"`
	SampleRate int    `json:"sample_rate"`
	BitDepth   int    `json:"bit_depth"`
}

// Format converts to an audio.Format
func (f AudioFormat) Format() audio.Format {
	return audio.Format{
		Codec:      f.Codec,
		SampleRate: f.SampleRate,
		Channels:   f.Channels,
		BitDepth:   f.BitDepth,
	}
}

// FromFormat converts an audio.Format to its wire form
func FromFormat(f audio.Format) AudioFormat {
	return AudioFormat{
		Codec:      f.Codec,
		Channels:   f.Channels,
		SampleRate: f.SampleRate,
		BitDepth:   f.BitDepth,
	}
}

// ServerHello is the server's response to client/hello
type ServerHello struct {
	ServerID string `json:"server_id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
}

// ClientState reports the player's current state
type ClientState struct {
	State       string `json:"state"` // "prebuffering", "playing" or "idle"
	Volume      int    `json:"volume"`
	Muted       bool   `json:"muted"`
	QueueLength int    `json:"queue_length"` // bytes readable in the client queue
	Underruns   int64  `json:"underruns"`
	Overruns    int64  `json:"overruns"`
}

// ServerCommandMessage is sent as server/command with role-specific objects
type ServerCommandMessage struct {
	Player *PlayerCommand `json:"player,omitempty"`
}

// PlayerCommand is a control command for the player
type PlayerCommand struct {
	Command string `json:"command"` // "volume" or "mute"
	Volume  int    `json:"volume,omitempty"`
	Mute    bool   `json:"mute,omitempty"`
}

// StreamStart announces the stream format. Frame offsets count bytes of
// decoded PCM in Format's sample rate, channel count and bit depth, starting
// at StartOffset.
type StreamStart struct {
	Format      AudioFormat `json:"format"`
	StartOffset int64       `json:"start_offset"`
}

// StreamRequest asks the server for more data. Bytes counts decoded PCM
// bytes and adds to whatever was requested before.
type StreamRequest struct {
	Bytes int `json:"bytes"`
}

// StreamSeek moves the client's write position without sending data.
// Mode is one of "relative", "absolute", "relative-on-read" or "relative-end".
type StreamSeek struct {
	Offset  int64  `json:"offset"`
	Mode    string `json:"mode"`
	Account bool   `json:"account"`
}

// StreamFlush discards everything the client has queued but not played
type StreamFlush struct {
	Reason string `json:"reason,omitempty"`
}

// StreamEnd ends the stream; the client plays out what it has queued
type StreamEnd struct {
	Reason string `json:"reason,omitempty"` // "eof", "shutdown"
}

// ClientGoodbye is sent before graceful disconnect
type ClientGoodbye struct {
	Reason string `json:"reason"` // "shutdown", "restart", "user_request"
}
