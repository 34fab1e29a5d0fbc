// ABOUTME: Audio decoder package for multiple codec support
// ABOUTME: Packet decoders for wire payloads and stream decoders for source files
// Package decode turns encoded audio into int32 samples in 24-bit range.
//
// Packet decoders (Decoder) handle one wire payload at a time: PCM
// (16-bit and 24-bit little-endian) and Opus. Stream decoders (Stream)
// read whole MP3 and FLAC files for the server's file source.
//
// Example:
//
//	decoder, err := decode.New(format)
//	samples, err := decoder.Decode(payload)
//
//	stream, err := decode.OpenFile("album/track01.flac")
//	n, err := stream.Read(buf)
package decode
