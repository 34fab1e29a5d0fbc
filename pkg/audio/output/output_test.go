// ABOUTME: Audio output tests
// ABOUTME: Verifies interface implementations, volume scaling and the discard sink
package output

import (
	"testing"

	"github.com/Resonate-Protocol/blockq/pkg/audio"
)

func TestImplementsOutput(t *testing.T) {
	var _ Output = (*Oto)(nil)
	var _ Output = (*Discard)(nil)
}

func TestVolumeApply(t *testing.T) {
	tests := []struct {
		name   string
		level  int
		muted  bool
		input  int32
		expect int32
	}{
		{"full", 100, false, 1000, 1000},
		{"half", 50, false, 1000, 500},
		{"muted", 100, true, 1000, 0},
		{"clamped high", 150, false, audio.Max24Bit, audio.Max24Bit},
		{"clamped low", -10, false, 1000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewVolume()
			v.SetVolume(tt.level)
			v.SetMuted(tt.muted)

			samples := []int32{tt.input}
			v.Apply(samples)
			if samples[0] != tt.expect {
				t.Errorf("expected %d, got %d", tt.expect, samples[0])
			}
		})
	}
}

func TestDiscard(t *testing.T) {
	d := NewDiscard(true)

	if err := d.Write([]int32{1, 2}); err == nil {
		t.Error("expected error writing before Open")
	}

	format := audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16}
	if err := d.Open(format); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := d.Write([]int32{1, 2, 3, 4}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if d.Frames() != 2 {
		t.Errorf("expected 2 frames, got %d", d.Frames())
	}
	if got := d.Samples(); len(got) != 4 || got[3] != 4 {
		t.Errorf("expected retained samples [1 2 3 4], got %v", got)
	}

	if err := d.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
