// ABOUTME: Tests for the Opus encoder
// ABOUTME: Checks the fixed 20ms frame contract and that packets are independent copies
package encode

import (
	"testing"

	"github.com/Resonate-Protocol/blockq/pkg/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpusFrameSamples(t *testing.T) {
	tests := []struct {
		name    string
		format  audio.Format
		want    int
		wantErr bool
	}{
		{name: "48kHz stereo", format: audio.Format{Codec: "opus", SampleRate: 48000, Channels: 2, BitDepth: 16}, want: 1920},
		{name: "48kHz mono", format: audio.Format{Codec: "opus", SampleRate: 48000, Channels: 1, BitDepth: 16}, want: 960},
		{name: "24kHz stereo", format: audio.Format{Codec: "opus", SampleRate: 24000, Channels: 2, BitDepth: 16}, want: 960},
		{name: "pcm codec", format: audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewOpus(tt.format)
			if tt.wantErr {
				assert.ErrorContains(t, err, "invalid codec")
				return
			}
			require.NoError(t, err)
			defer enc.Close()
			assert.Equal(t, tt.want, enc.FrameSamples())
		})
	}
}

func TestOpusEncodeNeedsWholeFrame(t *testing.T) {
	enc, err := NewOpus(audio.Format{Codec: "opus", SampleRate: 48000, Channels: 2, BitDepth: 16})
	require.NoError(t, err)
	defer enc.Close()

	for _, n := range []int{0, 960, 1921, 3840} {
		_, err := enc.Encode(make([]int32, n))
		assert.ErrorContains(t, err, "opus frame needs 1920 samples", "%d samples", n)
	}
}

func TestOpusPacketsDoNotShareBuffer(t *testing.T) {
	enc, err := NewOpus(audio.Format{Codec: "opus", SampleRate: 48000, Channels: 2, BitDepth: 16})
	require.NoError(t, err)
	defer enc.Close()

	loud := make([]int32, enc.FrameSamples())
	for i := range loud {
		if i%96 < 48 {
			loud[i] = 0x600000
		} else {
			loud[i] = -0x600000
		}
	}

	first, err := enc.Encode(loud)
	require.NoError(t, err)
	require.NotEmpty(t, first)
	assert.LessOrEqual(t, len(first), maxOpusPacket)
	kept := append([]byte(nil), first...)

	second, err := enc.Encode(make([]int32, enc.FrameSamples()))
	require.NoError(t, err)
	require.NotEmpty(t, second)

	assert.Equal(t, kept, first, "a later packet must not overwrite an earlier one")
}
