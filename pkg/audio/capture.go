// Package audio defines the microphone capture abstractions and the sample
// conversion used by the live transcription pipeline.
//
// The two primary abstractions are:
//
//   - [Source]: checks that capture is possible in the current environment and
//     opens capture streams.
//   - [Stream]: one open microphone stream delivering fixed-size [AudioFrame]
//     values at a fixed cadence until it is closed.
//
// Implementations live in sub-packages (audio/ffmpeg for the real microphone,
// audio/mock for tests). The converter in convert.go turns captured float
// samples into the backend wire format.
package audio

import (
	"context"
	"errors"
)

var (
	// ErrPermissionDenied is returned by [Source.Open] when the user or the OS
	// refused access to the microphone. It is terminal for the open attempt and
	// is never retried automatically.
	ErrPermissionDenied = errors.New("audio: microphone permission denied")

	// ErrDeviceUnavailable is returned when the capture device could not be
	// opened or stopped delivering audio for a reason other than permissions.
	ErrDeviceUnavailable = errors.New("audio: capture device unavailable")

	// ErrUnsupportedEnvironment is returned by [Source.Check] when the runtime
	// has no usable capture capability at all.
	ErrUnsupportedEnvironment = errors.New("audio: capture not supported in this environment")
)

// Stream is an open capture stream.
//
// The sequence of frames is lazy, unbounded until [Stream.Close] and cannot be
// restarted once closed. Implementations must be safe for concurrent use.
type Stream interface {
	// Frames returns the read-only channel of captured frames in capture order.
	// The channel is closed when the stream ends, either because Close was
	// called or because the device failed.
	Frames() <-chan AudioFrame

	// Err reports why the stream ended on its own. It returns nil while the
	// stream is live and after a requested Close.
	Err() error

	// Close releases the underlying OS audio resource. Calling Close more than
	// once is safe and returns nil.
	Close() error
}

// Source opens capture streams.
//
// Implementations must be safe for concurrent use.
type Source interface {
	// Check reports whether capture is possible at all, without touching the
	// device. It returns an error wrapping [ErrUnsupportedEnvironment] when it
	// is not. Intended to run once at initialisation.
	Check() error

	// Open acquires the microphone and returns a live [Stream]. Open suspends
	// until capture has actually started (which includes the user granting
	// permission) or failed. Permission refusal returns an error wrapping
	// [ErrPermissionDenied].
	Open(ctx context.Context) (Stream, error)
}
