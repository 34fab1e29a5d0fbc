// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for playback backends plus software volume
package output

import (
	"github.com/Resonate-Protocol/blockq/pkg/audio"
)

// Output represents an audio output device
type Output interface {
	// Open initializes the output device for format
	Open(format audio.Format) error

	// Write outputs interleaved samples in 24-bit range (blocks until written)
	Write(samples []int32) error

	// Close releases output resources
	Close() error
}

// Volume is software gain shared by the backends
type Volume struct {
	level int
	muted bool
}

// NewVolume returns full volume, unmuted
func NewVolume() Volume {
	return Volume{level: 100}
}

// SetVolume sets the volume (0-100)
func (v *Volume) SetVolume(level int) {
	v.level = max(0, min(level, 100))
}

// SetMuted sets mute state
func (v *Volume) SetMuted(muted bool) {
	v.muted = muted
}

// GetVolume returns current volume
func (v *Volume) GetVolume() int {
	return v.level
}

// IsMuted returns mute state
func (v *Volume) IsMuted() bool {
	return v.muted
}

// Apply scales samples in place, clamped to 24-bit range
func (v *Volume) Apply(samples []int32) {
	if !v.muted && v.level == 100 {
		return
	}

	multiplier := 0.0
	if !v.muted {
		multiplier = float64(v.level) / 100.0
	}
	for i, sample := range samples {
		scaled := int64(float64(sample) * multiplier)
		if scaled > audio.Max24Bit {
			scaled = audio.Max24Bit
		} else if scaled < audio.Min24Bit {
			scaled = audio.Min24Bit
		}
		samples[i] = int32(scaled)
	}
}
