// ABOUTME: Opus audio encoder
// ABOUTME: Encodes one 20ms frame of int32 samples per packet
package encode

import (
	"fmt"

	"github.com/Resonate-Protocol/blockq/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// maxOpusPacket is the recommended upper bound for one encoded packet
const maxOpusPacket = 4000

// OpusEncoder encodes Opus packets
type OpusEncoder struct {
	encoder   *opus.Encoder
	channels  int
	frameSize int
	pcm       []int16
	packet    []byte
}

// NewOpus creates a new Opus encoder producing 20ms packets
func NewOpus(format audio.Format) (*OpusEncoder, error) {
	if format.Codec != "opus" {
		return nil, fmt.Errorf("invalid codec for Opus encoder: %s", format.Codec)
	}

	encoder, err := opus.NewEncoder(format.SampleRate, format.Channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}

	frameSize := format.SampleRate / 50
	return &OpusEncoder{
		encoder:   encoder,
		channels:  format.Channels,
		frameSize: frameSize,
		pcm:       make([]int16, frameSize*format.Channels),
		packet:    make([]byte, maxOpusPacket),
	}, nil
}

// FrameSamples returns the interleaved sample count Encode expects
func (e *OpusEncoder) FrameSamples() int {
	return e.frameSize * e.channels
}

// Encode converts exactly one frame of int32 samples to an Opus packet
func (e *OpusEncoder) Encode(samples []int32) ([]byte, error) {
	if len(samples) != e.FrameSamples() {
		return nil, fmt.Errorf("opus frame needs %d samples, got %d", e.FrameSamples(), len(samples))
	}

	for i, s := range samples {
		e.pcm[i] = audio.SampleToInt16(s)
	}

	n, err := e.encoder.Encode(e.pcm, e.packet)
	if err != nil {
		return nil, fmt.Errorf("opus encode error: %w", err)
	}

	out := make([]byte, n)
	copy(out, e.packet[:n])
	return out, nil
}

// Close releases resources
func (e *OpusEncoder) Close() error {
	return nil
}
