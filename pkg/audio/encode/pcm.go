// ABOUTME: PCM audio encoder
// ABOUTME: Packs int32 samples into 16-bit or 24-bit little-endian bytes
package encode

import (
	"encoding/binary"
	"fmt"

	"github.com/Resonate-Protocol/blockq/pkg/audio"
)

// PCMEncoder encodes little-endian PCM
type PCMEncoder struct {
	format audio.Format
}

// NewPCM creates a new PCM encoder
func NewPCM(format audio.Format) (*PCMEncoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM encoder: %s", format.Codec)
	}
	if err := format.Validate(); err != nil {
		return nil, err
	}
	return &PCMEncoder{format: format}, nil
}

// Encode converts int32 samples to PCM bytes
func (e *PCMEncoder) Encode(samples []int32) ([]byte, error) {
	out := make([]byte, len(samples)*e.format.SampleSize())
	e.EncodeInto(out, samples)
	return out, nil
}

// EncodeInto packs as many samples as fit into dst and returns the bytes written
func (e *PCMEncoder) EncodeInto(dst []byte, samples []int32) int {
	ss := e.format.SampleSize()
	n := min(len(samples), len(dst)/ss)

	switch e.format.BitDepth {
	case 24:
		for i := 0; i < n; i++ {
			b := audio.SampleTo24Bit(samples[i])
			copy(dst[i*3:], b[:])
		}
	default:
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint16(dst[i*2:], uint16(audio.SampleToInt16(samples[i])))
		}
	}
	return n * ss
}

// Close releases resources
func (e *PCMEncoder) Close() error {
	return nil
}
