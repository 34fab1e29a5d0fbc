// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, frame-size math and sample conversion functions
// Package audio provides fundamental audio types and utilities for hi-res audio processing.
//
// Format describes an audio stream (codec, sample rate, channels, bit depth).
// Format.FrameSize is the alignment unit ("base") of every block queue: all
// lengths and offsets pushed into a queue carrying this format are multiples
// of it. DurationToBytes and BytesToDuration translate buffer attributes
// given in milliseconds into byte counts and back.
//
// It also provides utilities for converting between different sample formats:
//   - 16-bit ↔ 24-bit conversions
//   - int32 ↔ packed byte conversions
//
// Example:
//
//	format := audio.Format{
//	    Codec:      "pcm",
//	    SampleRate: 48000,
//	    Channels:   2,
//	    BitDepth:   24,
//	}
//
//	base := format.FrameSize()                                // 6
//	tlength := format.DurationToBytes(200 * time.Millisecond) // 57600
package audio
