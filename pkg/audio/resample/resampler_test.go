// ABOUTME: Tests for audio resampler
// ABOUTME: Tests interpolation, rate conversion and continuity across chunks
package resample

import (
	"testing"
)

func TestNew(t *testing.T) {
	r := New(44100, 48000, 2)

	if r.inputRate != 44100 {
		t.Errorf("expected inputRate 44100, got %d", r.inputRate)
	}
	if r.outputRate != 48000 {
		t.Errorf("expected outputRate 48000, got %d", r.outputRate)
	}
	if len(r.lastFrame) != 2 {
		t.Errorf("expected 2 channel history, got %d", len(r.lastFrame))
	}
}

func TestResampleSameRate(t *testing.T) {
	r := New(48000, 48000, 1)
	input := []int32{10, 20, 30, 40}
	output := make([]int32, 8)

	n := r.Resample(input, output)
	if n != 4 {
		t.Fatalf("expected 4 samples, got %d", n)
	}

	// one frame of history leads the output
	want := []int32{0, 10, 20, 30}
	for i := range want {
		if output[i] != want[i] {
			t.Errorf("sample %d: expected %d, got %d", i, want[i], output[i])
		}
	}

	n = r.Resample([]int32{50, 60}, output)
	if n != 2 || output[0] != 40 || output[1] != 50 {
		t.Errorf("expected history to carry over, got %v", output[:n])
	}
}

func TestResampleRates(t *testing.T) {
	tests := []struct {
		name       string
		inputRate  int
		outputRate int
	}{
		{"upsample 44.1k to 48k", 44100, 48000},
		{"downsample 48k to 44.1k", 48000, 44100},
		{"upsample 48k to 96k", 48000, 96000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.inputRate, tt.outputRate, 2)
			chunkFrames := tt.inputRate / 100 // 10ms
			input := make([]int32, chunkFrames*2)
			output := make([]int32, r.OutputSamplesNeeded(len(input))+2*2)

			total := 0
			for i := 0; i < 100; i++ {
				total += r.Resample(input, output) / 2
			}

			// one second of input
			if total < tt.outputRate-1 || total > tt.outputRate+1 {
				t.Errorf("expected ~%d frames, got %d", tt.outputRate, total)
			}
		})
	}
}

func TestResampleChunkedMatchesWhole(t *testing.T) {
	input := make([]int32, 2*441)
	for i := range input {
		input[i] = int32(i * 100)
	}

	whole := New(44100, 48000, 2)
	wantBuf := make([]int32, 2*600)
	wantN := whole.Resample(input, wantBuf)

	chunked := New(44100, 48000, 2)
	var got []int32
	buf := make([]int32, 2*600)
	for _, part := range [][]int32{input[:2*200], input[2*200:]} {
		n := chunked.Resample(part, buf)
		got = append(got, buf[:n]...)
	}

	if len(got) != wantN {
		t.Fatalf("expected %d samples, got %d", wantN, len(got))
	}
	for i := range got {
		if d := got[i] - wantBuf[i]; d < -2 || d > 2 {
			t.Fatalf("sample %d: expected %d, got %d", i, wantBuf[i], got[i])
		}
	}
}

func TestResampleInterpolates(t *testing.T) {
	// 2x upsampling of a ramp lands halfway between neighbours
	r := New(24000, 48000, 1)
	output := make([]int32, 8)

	n := r.Resample([]int32{0, 100, 200}, output)
	want := []int32{0, 0, 0, 50, 100, 150}
	if n != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), n)
	}
	for i := range want {
		if output[i] != want[i] {
			t.Errorf("sample %d: expected %d, got %d", i, want[i], output[i])
		}
	}
}

func TestResampleEmpty(t *testing.T) {
	r := New(44100, 48000, 2)
	if n := r.Resample(nil, make([]int32, 10)); n != 0 {
		t.Errorf("expected 0 samples, got %d", n)
	}
}

func TestReset(t *testing.T) {
	r := New(48000, 48000, 1)
	output := make([]int32, 4)
	r.Resample([]int32{7, 8}, output)

	r.Reset()
	r.Resample([]int32{1}, output)
	if output[0] != 0 {
		t.Errorf("expected reset history, got %d", output[0])
	}
}

func TestSamplesNeeded(t *testing.T) {
	r := New(48000, 96000, 2)

	if got := r.OutputSamplesNeeded(960 * 2); got != 1920*2 {
		t.Errorf("expected 3840 output samples, got %d", got)
	}
	if got := r.InputSamplesNeeded(1920 * 2); got != 960*2 {
		t.Errorf("expected 1920 input samples, got %d", got)
	}
}
