package audio

import (
	"encoding/binary"
	"math"
)

// SampleToPCM16 converts one floating-point sample to a signed 16-bit wire
// sample: clamp(round(x*32768), -32768, 32767). Out-of-range input is clamped,
// never rejected. NaN converts to silence.
func SampleToPCM16(x float32) int16 {
	v := math.Round(float64(x) * 32768)
	switch {
	case math.IsNaN(v):
		return 0
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}

// Float32ToPCM16 converts src into little-endian int16 PCM, writing into dst's
// backing array when it is large enough. It returns the len(src)*2 byte wire
// frame. Reuse the returned slice as dst for the next frame to avoid any
// allocation in steady state. Sample order is preserved.
func Float32ToPCM16(dst []byte, src []float32) []byte {
	n := len(src) * BytesPerSample
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]
	for i, s := range src {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(SampleToPCM16(s)))
	}
	return dst
}

// PCM16ToFloat32 decodes little-endian int16 PCM into floating-point samples
// in [-1.0, 1.0), reusing dst's backing array when possible. A trailing odd
// byte is ignored.
func PCM16ToFloat32(dst []float32, src []byte) []float32 {
	n := len(src) / BytesPerSample
	if cap(dst) < n {
		dst = make([]float32, n)
	}
	dst = dst[:n]
	for i := range n {
		dst[i] = float32(int16(binary.LittleEndian.Uint16(src[i*2:]))) / 32768
	}
	return dst
}

// DecodeFloat32LE decodes raw little-endian IEEE-754 float32 samples (the
// ffmpeg "f32le" format) into dst, reusing its backing array when possible.
// Trailing bytes that do not form a whole sample are ignored.
func DecodeFloat32LE(dst []float32, src []byte) []float32 {
	n := len(src) / 4
	if cap(dst) < n {
		dst = make([]float32, n)
	}
	dst = dst[:n]
	for i := range n {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
	return dst
}
