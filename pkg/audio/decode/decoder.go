// ABOUTME: Decoder interfaces and codec selection
// ABOUTME: Packet decoders for wire payloads, stream decoders for files
package decode

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Resonate-Protocol/blockq/pkg/audio"
)

// Decoder decodes one encoded payload to int32 samples in 24-bit range
type Decoder interface {
	// Decode converts encoded audio data to PCM samples
	Decode(data []byte) ([]int32, error)

	// Close releases decoder resources
	Close() error
}

// Stream decodes a whole encoded file or stream incrementally
type Stream interface {
	// Format describes the decoded samples
	Format() audio.Format

	// Read fills samples with interleaved 24-bit range samples and returns
	// how many were written. It returns io.EOF after the last sample.
	Read(samples []int32) (int, error)

	// Close releases the stream and the underlying reader if it is a Closer
	Close() error
}

// New returns a packet decoder for format's codec
func New(format audio.Format) (Decoder, error) {
	var (
		d   Decoder
		err error
	)
	switch format.Codec {
	case "pcm":
		d, err = NewPCM(format)
	case "opus":
		d, err = NewOpus(format)
	default:
		err = fmt.Errorf("unsupported codec: %s", format.Codec)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// OpenFile opens an MP3 or FLAC file by extension
func OpenFile(path string) (Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	var s Stream
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		s, err = NewMP3Stream(f)
	case ".flac":
		s, err = NewFLACStream(f)
	default:
		err = fmt.Errorf("unsupported file type: %s", ext)
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func closeReader(r io.Reader) error {
	if c, ok := r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
