// Package stream defines the client half of the live transcription wire
// protocol and the Transport abstraction that carries it.
//
// A [Transport] owns exactly one logical connection to the transcription
// backend. Outbound, it carries binary frames of raw 16-bit little-endian mono
// PCM at 16 kHz (no header or envelope). Inbound, it delivers [Event] values
// parsed from UTF-8 text messages of the form
//
//	PARTIAL: <text>   supersedes the previous partial
//	FINAL: <text>     commits a transcript segment
//
// Outbound audio and inbound events are distinguished by payload type alone.
//
// Implementations live in sub-packages (stream/wsstream for WebSocket,
// stream/mock for tests).
package stream

import (
	"context"
	"errors"
)

var (
	// ErrConnectionFailed wraps errors from a connect attempt that never
	// reached [StateOpen].
	ErrConnectionFailed = errors.New("stream: connection failed")

	// ErrConnectionLost wraps errors that ended an open connection without a
	// local Close.
	ErrConnectionLost = errors.New("stream: connection lost")

	// ErrAlreadyConnected is returned by a second Connect on the same
	// transport. Only one connect attempt is permitted per session.
	ErrAlreadyConnected = errors.New("stream: connect already attempted")

	// ErrUnsupportedEnvironment is returned by [Dialer.Check] when the
	// transport cannot work with the configured endpoint at all.
	ErrUnsupportedEnvironment = errors.New("stream: transport not supported in this environment")
)

// ConnectionState is the lifecycle state of a [Transport].
type ConnectionState int

const (
	// StateClosed is both the initial state and the state after Close.
	StateClosed ConnectionState = iota

	// StateConnecting is held while Connect is in flight.
	StateConnecting

	// StateOpen means frames are being sent and events received.
	StateOpen

	// StateErrored means the connect attempt failed or the open connection
	// dropped. See [Transport.Err] for the cause.
	StateErrored
)

// String returns the human-readable name of the state.
func (s ConnectionState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Transport is one bidirectional streaming connection to the backend.
//
// Implementations must be safe for concurrent use: Send is called from the
// audio pump while events are consumed elsewhere.
type Transport interface {
	// Connect moves the transport Closed → Connecting → Open, or to Errored
	// with an error wrapping [ErrConnectionFailed]. It suspends until one of
	// those outcomes or until ctx is done. There is no automatic reconnect;
	// a second call returns [ErrAlreadyConnected].
	Connect(ctx context.Context) error

	// Send submits one wire frame, fire-and-forget. It never blocks. Frames
	// submitted while the transport is not Open, or while the outbound queue
	// is full, are dropped and Send returns false. The caller may reuse frame
	// after Send returns.
	Send(frame []byte) bool

	// Events returns the inbound events in backend delivery order. The
	// channel is closed when the connection ends for any reason.
	Events() <-chan Event

	// State returns the current connection state.
	State() ConnectionState

	// Err returns the cause of StateErrored, or nil.
	Err() error

	// Close releases the connection and moves the transport to StateClosed.
	// Calling Close more than once is safe and returns nil.
	Close() error
}

// Dialer creates transports. One transport is created per recording session;
// transports are never pooled or shared.
type Dialer interface {
	// Check reports whether the dialer can work at all (e.g. the endpoint is
	// well formed). It returns an error wrapping [ErrUnsupportedEnvironment]
	// when it cannot. It performs no network I/O.
	Check() error

	// NewTransport returns a fresh transport in StateClosed.
	NewTransport() Transport
}
