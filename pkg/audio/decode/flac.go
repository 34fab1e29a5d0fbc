// ABOUTME: FLAC stream decoder
// ABOUTME: Wraps mewkiz/flac and interleaves subframes into 24-bit range samples
package decode

import (
	"fmt"
	"io"

	"github.com/Resonate-Protocol/blockq/pkg/audio"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
)

// FLACStream decodes a FLAC stream frame by frame
type FLACStream struct {
	r       io.Reader
	stream  *flac.Stream
	format  audio.Format
	bps     int
	buf     []int32
	pending []int32
}

// NewFLACStream parses the stream header of r
func NewFLACStream(r io.Reader) (*FLACStream, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open flac stream: %w", err)
	}

	info := stream.Info
	depth := 24
	if info.BitsPerSample <= 16 {
		depth = 16
	}

	return &FLACStream{
		r:      r,
		stream: stream,
		bps:    int(info.BitsPerSample),
		format: audio.Format{
			Codec:      "pcm",
			SampleRate: int(info.SampleRate),
			Channels:   int(info.NChannels),
			BitDepth:   depth,
		},
	}, nil
}

// Format describes the decoded samples
func (s *FLACStream) Format() audio.Format {
	return s.format
}

// Read decodes up to len(samples) samples, parsing frames as needed
func (s *FLACStream) Read(samples []int32) (int, error) {
	n := 0
	for n < len(samples) {
		if len(s.pending) == 0 {
			f, err := s.stream.ParseNext()
			if err == io.EOF {
				if n == 0 {
					return 0, io.EOF
				}
				return n, nil
			}
			if err != nil {
				return n, fmt.Errorf("flac decode error: %w", err)
			}
			s.buf = interleave(s.buf[:0], f.Subframes, s.bps)
			s.pending = s.buf
		}

		c := copy(samples[n:], s.pending)
		s.pending = s.pending[c:]
		n += c
	}
	return n, nil
}

// Close releases the stream
func (s *FLACStream) Close() error {
	return s.stream.Close()
}

// interleave merges per-channel samples into dst, scaled to 24-bit range
func interleave(dst []int32, subframes []*frame.Subframe, bps int) []int32 {
	if len(subframes) == 0 {
		return dst
	}
	shift := 24 - bps
	count := len(subframes[0].Samples)
	for i := 0; i < count; i++ {
		for _, sf := range subframes {
			dst = append(dst, scale(sf.Samples[i], shift))
		}
	}
	return dst
}

func scale(v int32, shift int) int32 {
	switch {
	case shift > 0:
		return v << shift
	case shift < 0:
		return v >> -shift
	default:
		return v
	}
}
