package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/livescribe/internal/transcript"
	"github.com/MrWong99/livescribe/pkg/audio"
	"github.com/MrWong99/livescribe/pkg/stream"
)

// Sentinel errors returned by [Controller] operations.
var (
	// ErrBusy is returned when an operation is not allowed in the current
	// state, e.g. Start while already recording.
	ErrBusy = errors.New("session: operation not allowed in the current state")

	// ErrNotRecording is returned by Stop when there is nothing to stop.
	ErrNotRecording = errors.New("session: not recording")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("session: controller closed")

	// ErrStartCancelled is returned by a pending Start when Stop or Close
	// cancels the attempt.
	ErrStartCancelled = errors.New("session: start cancelled")
)

// State is the lifecycle state of the [Controller].
type State int

const (
	// StateIdle means no session is active.
	StateIdle State = iota

	// StateStarting means capture is opening and the backend is connecting.
	StateStarting

	// StateRecording means frames are flowing to the backend.
	StateRecording

	// StateStopping means a user stop is releasing the session resources.
	StateStopping

	// StateErrored means the last session failed. The error is kept until
	// the next Start or Stop.
	StateErrored
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Active reports whether a session holds resources in this state.
func (s State) Active() bool {
	return s == StateStarting || s == StateRecording || s == StateStopping
}

// Snapshot is an immutable view of the controller published after every
// state change. Readers must not modify the slices it carries.
type Snapshot struct {
	State State `json:"-"`

	// SessionID identifies the current or most recent session.
	SessionID string `json:"session_id,omitempty"`

	// StartedAt is when the current or most recent session was started.
	StartedAt time.Time `json:"started_at,omitzero"`

	// Elapsed counts whole seconds since Start. It is reset by Start and Clear
	// and when a start fails.
	Elapsed int `json:"elapsed_seconds"`

	// Transcript holds the finalized segments and the live partial.
	Transcript transcript.View `json:"-"`

	// Err is the failure that moved the controller to [StateErrored].
	Err error `json:"-"`
}

// ElapsedDisplay returns Elapsed formatted as mm:ss.
func (s Snapshot) ElapsedDisplay() string { return FormatElapsed(s.Elapsed) }

// Message returns the human-readable failure message, or "" when there is no
// error.
func (s Snapshot) Message() string {
	if s.Err == nil {
		return ""
	}
	return Describe(s.Err)
}

// Outcome is how a session ended.
type Outcome string

const (
	OutcomeStopped Outcome = "stopped"
	OutcomeErrored Outcome = "errored"
)

// Summary describes a session that reached [StateRecording] and has since
// ended. It is passed to [Config.OnSessionEnd].
type Summary struct {
	SessionID string
	StartedAt time.Time
	EndedAt   time.Time

	// Elapsed is the timer value in seconds when the session ended.
	Elapsed int

	// Segments are the final segments committed during this session.
	Segments []string

	Outcome Outcome

	// Error is the human-readable failure message for errored sessions.
	Error string
}

// FormatElapsed renders whole seconds as a zero-padded mm:ss string. Minutes
// are not wrapped at 60.
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// Error kinds used as metric attributes and log fields.
const (
	KindPermissionDenied  = "permission_denied"
	KindDeviceUnavailable = "device_unavailable"
	KindUnsupported       = "unsupported_environment"
	KindConnectionFailed  = "connection_failed"
	KindConnectionLost    = "connection_lost"
	KindCancelled         = "cancelled"
	KindOther             = "other"
)

// Kind classifies err into one of the Kind* constants.
func Kind(err error) string {
	switch {
	case errors.Is(err, audio.ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, audio.ErrUnsupportedEnvironment), errors.Is(err, stream.ErrUnsupportedEnvironment):
		return KindUnsupported
	case errors.Is(err, audio.ErrDeviceUnavailable):
		return KindDeviceUnavailable
	case errors.Is(err, stream.ErrConnectionLost):
		return KindConnectionLost
	case errors.Is(err, stream.ErrConnectionFailed):
		return KindConnectionFailed
	case errors.Is(err, ErrStartCancelled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	default:
		return KindOther
	}
}

// Describe returns the single human-readable message shown in place of the
// recording controls when a session fails.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	switch Kind(err) {
	case KindPermissionDenied:
		return "Microphone access was denied. Allow microphone access for your terminal and try again."
	case KindUnsupported:
		return "Live transcription is not supported in this environment: " + err.Error()
	case KindDeviceUnavailable:
		return "The microphone could not be used: " + err.Error()
	case KindConnectionFailed:
		return "Could not connect to the transcription service. Check that the backend is running."
	case KindConnectionLost:
		return "The connection to the transcription service was lost."
	case KindCancelled:
		return "Starting the recording was cancelled."
	default:
		return "Recording failed: " + err.Error()
	}
}
