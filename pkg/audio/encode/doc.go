// ABOUTME: Audio encoder package for encoding PCM to wire payloads
// ABOUTME: Provides Encoder interface and implementations for PCM, Opus
// Package encode provides audio encoders for the stream transport.
//
// All encoders accept int32 samples in 24-bit range. PCMEncoder also packs
// decoded Opus into the byte layout the player's block queue holds.
//
// Example:
//
//	encoder, err := encode.New(format)
//	payload, err := encoder.Encode(samples)
package encode
