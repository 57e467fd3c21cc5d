package audio_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/MrWong99/livescribe/pkg/audio"
)

// bytesToSamples converts a little-endian byte slice to int16 samples.
func bytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}

func TestSampleToPCM16(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   float32
		want int16
	}{
		{name: "zero", in: 0, want: 0},
		{name: "positive full scale clamps", in: 1.0, want: 32767},
		{name: "negative full scale", in: -1.0, want: -32768},
		{name: "half", in: 0.5, want: 16384},
		{name: "negative half", in: -0.5, want: -16384},
		{name: "rounds to nearest", in: 1.6 / 32768, want: 2},
		{name: "above range clamps", in: 3.5, want: 32767},
		{name: "below range clamps", in: -7, want: -32768},
		{name: "positive infinity", in: float32(math.Inf(1)), want: 32767},
		{name: "negative infinity", in: float32(math.Inf(-1)), want: -32768},
		{name: "NaN is silence", in: float32(math.NaN()), want: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := audio.SampleToPCM16(tc.in); got != tc.want {
				t.Errorf("SampleToPCM16(%v) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestSampleToPCM16_RangeAndDeterminism(t *testing.T) {
	t.Parallel()

	// Sweep [-1, 1] in small steps: every result must be in int16 range and
	// repeated conversions must agree.
	for i := -10000; i <= 10000; i++ {
		x := float32(i) / 10000
		a := audio.SampleToPCM16(x)
		b := audio.SampleToPCM16(x)
		if a != b {
			t.Fatalf("SampleToPCM16(%v) not deterministic: %d vs %d", x, a, b)
		}
		if int(a) < -32768 || int(a) > 32767 {
			t.Fatalf("SampleToPCM16(%v) = %d out of range", x, a)
		}
	}
}

func TestFloat32ToPCM16_LayoutAndOrder(t *testing.T) {
	t.Parallel()

	src := []float32{0, 1.0, -1.0, 0.25}
	out := audio.Float32ToPCM16(nil, src)
	if len(out) != len(src)*2 {
		t.Fatalf("len = %d, want %d", len(out), len(src)*2)
	}
	got := bytesToSamples(out)
	want := []int16{0, 32767, -32768, 8192}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
	// Little-endian: 8192 = 0x2000.
	if out[6] != 0x00 || out[7] != 0x20 {
		t.Errorf("sample 3 bytes = %#x %#x, want 0x00 0x20", out[6], out[7])
	}
}

// Not parallel: AllocsPerRun counts allocations process-wide.
func TestFloat32ToPCM16_ReusesBuffer(t *testing.T) {
	src := make([]float32, audio.DefaultFrameSize)
	buf := make([]byte, 0, len(src)*2)
	out := audio.Float32ToPCM16(buf, src)
	if &out[0] != &buf[:1][0] {
		t.Error("expected converter to write into the supplied buffer")
	}

	allocs := testing.AllocsPerRun(100, func() {
		out = audio.Float32ToPCM16(out, src)
	})
	if allocs != 0 {
		t.Errorf("allocations per frame = %v, want 0", allocs)
	}
}

func TestFloat32ToPCM16_Empty(t *testing.T) {
	t.Parallel()

	out := audio.Float32ToPCM16(nil, nil)
	if len(out) != 0 {
		t.Errorf("len = %d, want 0", len(out))
	}
}

func TestPCM16ToFloat32_RoundTripWithinOneStep(t *testing.T) {
	t.Parallel()

	src := []float32{0, 0.5, -0.5, -1.0, 0.999}
	pcm := audio.Float32ToPCM16(nil, src)
	back := audio.PCM16ToFloat32(nil, pcm)
	if len(back) != len(src) {
		t.Fatalf("len = %d, want %d", len(back), len(src))
	}
	for i := range src {
		if d := math.Abs(float64(back[i] - src[i])); d > 1.0/32768 {
			t.Errorf("sample %d: got %v, want %v (diff %v)", i, back[i], src[i], d)
		}
	}
}

func TestDecodeFloat32LE(t *testing.T) {
	t.Parallel()

	raw := make([]byte, 3*4+1) // trailing partial sample is ignored
	for i, v := range []float32{0.25, -1, 0.75} {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	got := audio.DecodeFloat32LE(nil, raw)
	want := []float32{0.25, -1, 0.75}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFrameDuration(t *testing.T) {
	t.Parallel()

	if got := audio.FrameDuration(1024).Milliseconds(); got != 64 {
		t.Errorf("FrameDuration(1024) = %dms, want 64ms", got)
	}
	if got := audio.FrameDuration(16000).Seconds(); got != 1 {
		t.Errorf("FrameDuration(16000) = %vs, want 1s", got)
	}
	f := audio.AudioFrame{Samples: make([]float32, 320), SampleRate: audio.SampleRate}
	if got := f.Duration().Milliseconds(); got != 20 {
		t.Errorf("AudioFrame.Duration = %dms, want 20ms", got)
	}
}
