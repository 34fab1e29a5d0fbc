// ABOUTME: Tests for the Opus decoder
// ABOUTME: Checks one-packet-per-call decoding and that results do not share the scratch buffer
package decode

import (
	"math"
	"testing"

	"github.com/Resonate-Protocol/blockq/pkg/audio"
	"github.com/Resonate-Protocol/blockq/pkg/audio/encode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var opusStereo = audio.Format{Codec: "opus", SampleRate: 48000, Channels: 2, BitDepth: 16}

func TestNewOpus(t *testing.T) {
	tests := []struct {
		name    string
		format  audio.Format
		wantErr string
	}{
		{name: "stereo", format: opusStereo},
		{name: "mono", format: audio.Format{Codec: "opus", SampleRate: 48000, Channels: 1, BitDepth: 16}},
		{name: "pcm codec", format: audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16}, wantErr: "invalid codec for Opus decoder: pcm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewOpus(tt.format)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				assert.Nil(t, d)
				return
			}
			require.NoError(t, err)
			assert.Len(t, d.pcm16, maxOpusFrame*tt.format.Channels)
			assert.NoError(t, d.Close())
		})
	}
}

// opusPackets encodes one 20ms packet of a 1kHz tone and one of silence
func opusPackets(t *testing.T) (tone, silence []byte) {
	t.Helper()
	enc, err := encode.NewOpus(opusStereo)
	require.NoError(t, err)
	defer enc.Close()

	samples := make([]int32, enc.FrameSamples())
	for i := range samples {
		frame := i / 2
		samples[i] = int32(0x400000 * math.Sin(2*math.Pi*1000*float64(frame)/48000))
	}
	tone, err = enc.Encode(samples)
	require.NoError(t, err)

	silence, err = enc.Encode(make([]int32, enc.FrameSamples()))
	require.NoError(t, err)
	return tone, silence
}

func TestOpusDecodeOnePacketPerCall(t *testing.T) {
	tone, silence := opusPackets(t)

	d, err := NewOpus(opusStereo)
	require.NoError(t, err)

	first, err := d.Decode(tone)
	require.NoError(t, err)
	require.Len(t, first, 1920, "20ms of stereo")

	var peak int32
	for _, s := range first {
		peak = max(peak, s, -s)
	}
	assert.Greater(t, peak, int32(0x10000), "tone packet decodes to audible samples")

	kept := append([]int32(nil), first...)

	second, err := d.Decode(silence)
	require.NoError(t, err)
	require.Len(t, second, 1920)

	assert.Equal(t, kept, first, "a later decode must not overwrite earlier results")
	assert.NotEqual(t, first, second)
}

func TestOpusDecodeEmptyPacket(t *testing.T) {
	d, err := NewOpus(opusStereo)
	require.NoError(t, err)

	_, err = d.Decode(nil)
	assert.ErrorContains(t, err, "opus decode failed")
}
