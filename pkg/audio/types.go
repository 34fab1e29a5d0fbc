// ABOUTME: Audio type definitions
// ABOUTME: Defines audio formats, frame sizes and decoded buffers
package audio

import (
	"fmt"
	"time"
)

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// Format describes audio stream format
type Format struct {
	Codec       string
	SampleRate  int
	Channels    int
	BitDepth    int
	CodecHeader []byte // For FLAC, Opus, etc.
}

// Validate checks that the format can describe a PCM frame
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", f.SampleRate)
	}
	if f.Channels <= 0 || f.Channels > 32 {
		return fmt.Errorf("invalid channel count: %d", f.Channels)
	}
	if f.BitDepth != 16 && f.BitDepth != 24 {
		return fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", f.BitDepth)
	}
	return nil
}

// SampleSize returns the number of bytes of one packed sample
func (f Format) SampleSize() int {
	return f.BitDepth / 8
}

// FrameSize returns the number of bytes of one frame (one sample per channel).
// This is the alignment unit for every length handed to a block queue.
func (f Format) FrameSize() int {
	return f.SampleSize() * f.Channels
}

// BytesPerSecond returns the PCM byte rate
func (f Format) BytesPerSecond() int {
	return f.FrameSize() * f.SampleRate
}

// DurationToBytes converts a duration to a frame-aligned byte count, rounding down
func (f Format) DurationToBytes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	frames := int64(d) * int64(f.SampleRate) / int64(time.Second)
	return int(frames) * f.FrameSize()
}

// BytesToDuration converts a byte count to playback time, ignoring partial frames
func (f Format) BytesToDuration(n int) time.Duration {
	fs := f.FrameSize()
	if fs == 0 || f.SampleRate == 0 {
		return 0
	}
	frames := int64(n / fs)
	return time.Duration(frames * int64(time.Second) / int64(f.SampleRate))
}

// String returns a compact description like "pcm 48000Hz/24bit/2ch"
func (f Format) String() string {
	return fmt.Sprintf("%s %dHz/%dbit/%dch", f.Codec, f.SampleRate, f.BitDepth, f.Channels)
}

// SampleToInt16 converts int32 sample to int16 (for 16-bit playback)
func SampleToInt16(sample int32) int16 {
	// Right-shift to convert 24-bit (or 16-bit) to 16-bit range
	return int16(sample >> 8)
}

// SampleFromInt16 converts int16 sample to int32 (left-justified in 24-bit)
func SampleFromInt16(sample int16) int32 {
	// Left-shift to position 16-bit value in upper bits
	return int32(sample) << 8
}

// SampleTo24Bit converts int32 to 24-bit packed bytes (little-endian)
func SampleTo24Bit(sample int32) [3]byte {
	// Take lower 24 bits, pack little-endian
	return [3]byte{
		byte(sample),
		byte(sample >> 8),
		byte(sample >> 16),
	}
}

// SampleFrom24Bit converts 24-bit packed bytes to int32 (little-endian)
func SampleFrom24Bit(b [3]byte) int32 {
	// Reconstruct 24-bit value and sign-extend to 32-bit
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	// Sign extend from 24-bit to 32-bit
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF // Set upper 8 bits to 1 for negative values
	}
	return val
}
