// ABOUTME: MP3 stream decoder
// ABOUTME: Wraps go-mp3, which always produces 16-bit stereo little-endian PCM
package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/blockq/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
)

// MP3Stream decodes an MP3 stream
type MP3Stream struct {
	r       io.Reader
	decoder *mp3.Decoder
	format  audio.Format
	buf     []byte
}

// NewMP3Stream starts decoding r. The first frame header is read immediately.
func NewMP3Stream(r io.Reader) (*MP3Stream, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	return &MP3Stream{
		r:       r,
		decoder: dec,
		format: audio.Format{
			Codec:      "pcm",
			SampleRate: dec.SampleRate(),
			Channels:   2,
			BitDepth:   16,
		},
	}, nil
}

// Format describes the decoded samples
func (s *MP3Stream) Format() audio.Format {
	return s.format
}

// Read decodes up to len(samples) samples
func (s *MP3Stream) Read(samples []int32) (int, error) {
	want := len(samples) * 2
	if cap(s.buf) < want {
		s.buf = make([]byte, want)
	}
	buf := s.buf[:want]

	n, err := io.ReadFull(s.decoder, buf)
	if err == io.ErrUnexpectedEOF {
		err = nil
	}
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("mp3 decode error: %w", err)
	}

	count := n / 2
	for i := 0; i < count; i++ {
		samples[i] = audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(buf[i*2:])))
	}
	if count == 0 && err == nil {
		err = io.EOF
	}
	return count, err
}

// Close releases the underlying reader
func (s *MP3Stream) Close() error {
	return closeReader(s.r)
}
