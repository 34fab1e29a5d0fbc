// ABOUTME: Binary chunk frame codec
// ABOUTME: Frames carry a placement mode and an absolute stream byte offset ahead of the payload
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// ChunkMessageType is the first byte of every binary chunk frame
	ChunkMessageType = 4

	// FrameHeaderSize is type byte + mode byte + 8 byte offset
	FrameHeaderSize = 1 + 1 + 8
)

// FrameMode says where a frame's payload is written
type FrameMode uint8

const (
	// FrameAbsolute writes the payload at Offset
	FrameAbsolute FrameMode = iota
	// FrameAppend writes the payload at the receiver's write position; Offset is ignored
	FrameAppend
)

// String returns the mode name
func (m FrameMode) String() string {
	switch m {
	case FrameAbsolute:
		return "absolute"
	case FrameAppend:
		return "append"
	default:
		return fmt.Sprintf("frame-mode(%d)", uint8(m))
	}
}

var (
	// ErrShortFrame is returned for frames smaller than the header
	ErrShortFrame = errors.New("frame shorter than header")
	// ErrFrameType is returned for binary messages that are not chunk frames
	ErrFrameType = errors.New("unknown binary message type")
)

// Frame is one encoded chunk of the stream
type Frame struct {
	Mode   FrameMode
	Offset int64  // decoded PCM byte position of the first sample
	Data   []byte // encoded audio
}

// EncodeFrame serializes f
func EncodeFrame(f Frame) []byte {
	buf := make([]byte, FrameHeaderSize+len(f.Data))
	buf[0] = ChunkMessageType
	buf[1] = byte(f.Mode)
	binary.BigEndian.PutUint64(buf[2:FrameHeaderSize], uint64(f.Offset))
	copy(buf[FrameHeaderSize:], f.Data)
	return buf
}

// DecodeFrame parses a binary message. Data aliases the input.
func DecodeFrame(data []byte) (Frame, error) {
	if len(data) < FrameHeaderSize {
		return Frame{}, fmt.Errorf("%d bytes: %w", len(data), ErrShortFrame)
	}
	if data[0] != ChunkMessageType {
		return Frame{}, fmt.Errorf("type %d: %w", data[0], ErrFrameType)
	}

	mode := FrameMode(data[1])
	if mode != FrameAbsolute && mode != FrameAppend {
		return Frame{}, fmt.Errorf("invalid frame mode %d", data[1])
	}

	return Frame{
		Mode:   mode,
		Offset: int64(binary.BigEndian.Uint64(data[2:FrameHeaderSize])),
		Data:   data[FrameHeaderSize:],
	}, nil
}
