// ABOUTME: PCM audio decoder
// ABOUTME: Decodes whole frames of 16-bit and 24-bit little-endian PCM to int32 samples
package decode

import (
	"encoding/binary"
	"fmt"

	"github.com/Resonate-Protocol/blockq/pkg/audio"
)

// PCMDecoder decodes little-endian PCM
type PCMDecoder struct {
	format audio.Format
}

// NewPCM creates a new PCM decoder
func NewPCM(format audio.Format) (*PCMDecoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM decoder: %s", format.Codec)
	}
	if err := format.Validate(); err != nil {
		return nil, err
	}
	return &PCMDecoder{format: format}, nil
}

// Decode converts PCM bytes to int32 samples. data must hold whole frames.
func (d *PCMDecoder) Decode(data []byte) ([]int32, error) {
	if fs := d.format.FrameSize(); len(data)%fs != 0 {
		return nil, fmt.Errorf("pcm payload of %d bytes is not a multiple of the %d byte frame", len(data), fs)
	}

	samples := make([]int32, len(data)/d.format.SampleSize())
	d.DecodeInto(samples, data)
	return samples, nil
}

// DecodeInto converts as many samples as fit in dst and returns the count
func (d *PCMDecoder) DecodeInto(dst []int32, data []byte) int {
	ss := d.format.SampleSize()
	n := min(len(dst), len(data)/ss)

	switch d.format.BitDepth {
	case 24:
		for i := 0; i < n; i++ {
			o := i * 3
			dst[i] = audio.SampleFrom24Bit([3]byte{data[o], data[o+1], data[o+2]})
		}
	default:
		for i := 0; i < n; i++ {
			dst[i] = audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(data[i*2:])))
		}
	}
	return n
}

// Close releases resources
func (d *PCMDecoder) Close() error {
	return nil
}
