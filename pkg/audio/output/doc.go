// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides Output interface, oto playback and a discarding sink
// Package output provides audio playback backends.
//
// Oto plays through the system audio device. Discard counts frames and is
// used by headless players and tests.
//
// Example:
//
//	out := output.NewOto()
//	err := out.Open(format)
//	err = out.Write(samples)
package output
