// ABOUTME: Output that drops samples after counting them
// ABOUTME: Used for headless players and tests
package output

import (
	"fmt"
	"sync"

	"github.com/Resonate-Protocol/blockq/pkg/audio"
)

// Discard counts written frames and optionally keeps a copy of the samples
type Discard struct {
	Volume

	mu      sync.Mutex
	format  audio.Format
	open    bool
	frames  int64
	keep    bool
	samples []int32
}

// NewDiscard creates a discarding output. With keep set every written
// sample is retained for inspection.
func NewDiscard(keep bool) *Discard {
	return &Discard{Volume: NewVolume(), keep: keep}
}

// Open records the format
func (d *Discard) Open(format audio.Format) error {
	if err := format.Validate(); err != nil {
		return fmt.Errorf("invalid output format: %w", err)
	}
	d.mu.Lock()
	d.format = format
	d.open = true
	d.mu.Unlock()
	return nil
}

// Write counts samples
func (d *Discard) Write(samples []int32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open {
		return fmt.Errorf("output not initialized")
	}
	d.Apply(samples)
	d.frames += int64(len(samples) / d.format.Channels)
	if d.keep {
		d.samples = append(d.samples, samples...)
	}
	return nil
}

// Close marks the output closed
func (d *Discard) Close() error {
	d.mu.Lock()
	d.open = false
	d.mu.Unlock()
	return nil
}

// Frames returns the number of frames written
func (d *Discard) Frames() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}

// Samples returns a copy of the retained samples
func (d *Discard) Samples() []int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int32(nil), d.samples...)
}
