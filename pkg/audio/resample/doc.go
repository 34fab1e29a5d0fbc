// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts audio between different sample rates
// Package resample provides audio sample rate conversion.
//
// Uses linear interpolation and keeps one frame of history, so a stream
// fed in chunks resamples the same as if it were converted in one call.
// Stream servers use it to serve players whose preferred rate differs from
// the source.
//
// Example:
//
//	r := resample.New(44100, 48000, 2)
//	out := make([]int32, r.OutputSamplesNeeded(len(in))+2*2)
//	n := r.Resample(in, out)
package resample
