package audio

import "time"

// Wire format constants. The transcription backend only accepts mono 16 kHz
// signed 16-bit little-endian PCM.
const (
	// SampleRate is the capture and wire sample rate in Hz.
	SampleRate = 16000

	// Channels is the capture and wire channel count.
	Channels = 1

	// BytesPerSample is the size of one wire sample (int16).
	BytesPerSample = 2

	// DefaultFrameSize is the number of samples per captured frame
	// (1024 samples at 16 kHz, about 64 ms).
	DefaultFrameSize = 1024
)

// AudioFrame is a fixed-size block of mono floating-point samples as produced by
// a capture [Stream]. Samples are expected in the range [-1.0, 1.0]; values
// outside that range are clamped on conversion.
//
// Frames are transient: each one is consumed exactly once by the sample
// converter and is never persisted.
type AudioFrame struct {
	// Samples holds the captured samples in capture order.
	Samples []float32

	// SampleRate in Hz. Always [SampleRate] for frames headed to the backend.
	SampleRate int

	// Seq is the zero-based index of this frame within its stream.
	Seq uint64

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the playback length of the frame.
func (f AudioFrame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}

// FrameDuration returns the cadence at which frames of frameSize samples are
// produced at [SampleRate].
func FrameDuration(frameSize int) time.Duration {
	return time.Duration(frameSize) * time.Second / SampleRate
}
