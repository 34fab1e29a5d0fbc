// ABOUTME: Audio source abstraction for stream servers
// ABOUTME: Provides the AudioSource interface, a test tone and a looping file source
package stream

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"path/filepath"
	"sync"

	"github.com/Resonate-Protocol/blockq/pkg/audio"
	"github.com/Resonate-Protocol/blockq/pkg/audio/decode"
)

// AudioSource provides PCM samples for streaming
type AudioSource interface {
	// Read fills samples with interleaved 24-bit range samples.
	// It returns io.EOF once the source is exhausted.
	Read(samples []int32) (int, error)

	// Format describes the samples Read produces
	Format() audio.Format

	// Title names the source for logs and status
	Title() string

	// Close closes the audio source
	Close() error
}

// TestToneSource generates a 440Hz sine wave
type TestToneSource struct {
	mu          sync.Mutex
	sampleIndex uint64
	frequency   float64
	format      audio.Format
}

// NewTestTone creates a test tone generator. Zero values select
// DefaultSampleRate and DefaultChannels.
func NewTestTone(sampleRate, channels int) *TestToneSource {
	if sampleRate == 0 {
		sampleRate = DefaultSampleRate
	}
	if channels == 0 {
		channels = DefaultChannels
	}

	return &TestToneSource{
		frequency: 440.0,
		format: audio.Format{
			Codec:      "pcm",
			SampleRate: sampleRate,
			Channels:   channels,
			BitDepth:   24,
		},
	}
}

// Read generates whole frames; a trailing partial frame in samples is left untouched
func (s *TestToneSource) Read(samples []int32) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	channels := s.format.Channels
	frames := len(samples) / channels

	for i := 0; i < frames; i++ {
		t := float64(s.sampleIndex+uint64(i)) / float64(s.format.SampleRate)
		// half scale to avoid clipping
		v := int32(math.Sin(2*math.Pi*s.frequency*t) * audio.Max24Bit * 0.5)
		for ch := 0; ch < channels; ch++ {
			samples[i*channels+ch] = v
		}
	}

	s.sampleIndex += uint64(frames)
	return frames * channels, nil
}

func (s *TestToneSource) Format() audio.Format { return s.format }
func (s *TestToneSource) Title() string        { return "Test Tone 440Hz" }
func (s *TestToneSource) Close() error         { return nil }

// FileSource streams a decoded MP3 or FLAC file
type FileSource struct {
	path   string
	loop   bool
	stream decode.Stream
}

// NewFileSource opens path. With loop set the file restarts at EOF.
func NewFileSource(path string, loop bool) (*FileSource, error) {
	s, err := decode.OpenFile(path)
	if err != nil {
		return nil, err
	}
	if err := s.Format().Validate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	log.Printf("Opened %s: %s", path, s.Format())
	return &FileSource{path: path, loop: loop, stream: s}, nil
}

// Read decodes the next samples, reopening the file at EOF when looping
func (f *FileSource) Read(samples []int32) (int, error) {
	n, err := f.stream.Read(samples)
	if !errors.Is(err, io.EOF) || !f.loop || n > 0 {
		return n, err
	}

	if err := f.stream.Close(); err != nil {
		log.Printf("Error closing %s: %v", f.path, err)
	}
	s, err := decode.OpenFile(f.path)
	if err != nil {
		return 0, fmt.Errorf("failed to reopen %s: %w", f.path, err)
	}
	f.stream = s
	return f.stream.Read(samples)
}

func (f *FileSource) Format() audio.Format { return f.stream.Format() }
func (f *FileSource) Title() string        { return filepath.Base(f.path) }
func (f *FileSource) Close() error         { return f.stream.Close() }
