// Package mock provides in-memory mock implementations of the [audio.Source]
// and [audio.Stream] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts, and they expose exported fields that the
// test can set to control return values.
//
// Typical usage:
//
//	stream := mock.NewStream(8)
//	src := &mock.Source{Stream: stream}
//	s, _ := src.Open(ctx)
//	stream.Push(audio.AudioFrame{Samples: []float32{0.1, 0.2}})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/livescribe/pkg/audio"
)

// ─── Stream ───────────────────────────────────────────────────────────────────

// Stream is a mock implementation of [audio.Stream]. Frames are injected with
// [Stream.Push]; a device failure is simulated with [Stream.Fail].
type Stream struct {
	mu     sync.Mutex
	frames chan audio.AudioFrame
	err    error
	closed bool
	seq    uint64

	// CloseError is returned by [Stream.Close].
	CloseError error

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// NewStream returns a Stream whose frame channel has the given buffer size.
func NewStream(buffer int) *Stream {
	return &Stream{frames: make(chan audio.AudioFrame, buffer)}
}

// Frames implements [audio.Stream].
func (s *Stream) Frames() <-chan audio.AudioFrame { return s.frames }

// Err implements [audio.Stream].
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close implements [audio.Stream]. It closes the frame channel on the first
// call and counts every call.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	s.closeLocked()
	return s.CloseError
}

// Push delivers frame to the consumer, assigning SampleRate and Seq when they
// are zero. Like a real capture device it never blocks: it reports false if
// the stream is closed or the buffer is full (the frame is dropped).
func (s *Stream) Push(frame audio.AudioFrame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if frame.SampleRate == 0 {
		frame.SampleRate = audio.SampleRate
	}
	if frame.Seq == 0 {
		frame.Seq = s.seq
	}
	select {
	case s.frames <- frame:
		s.seq++
		return true
	default:
		return false
	}
}

// Fail ends the stream as if the device failed with err.
func (s *Stream) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.err = err
	s.closeLocked()
}

// Closed reports whether the stream has ended.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// CloseCalls returns how many times Close was called. Thread-safe.
func (s *Stream) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CallCountClose
}

func (s *Stream) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.frames)
}

// Ensure Stream implements audio.Stream at compile time.
var _ audio.Stream = (*Stream)(nil)

// ─── Source ───────────────────────────────────────────────────────────────────

// OpenCall records a single invocation of Source.Open.
type OpenCall struct {
	// Ctx is the context passed to Open.
	Ctx context.Context
}

// Source is a mock implementation of [audio.Source].
type Source struct {
	mu sync.Mutex

	// Stream is returned by Open. When nil, Open returns a fresh Stream with a
	// 16-frame buffer on every call.
	Stream *Stream

	// OpenErr, if non-nil, is returned as the error from Open.
	OpenErr error

	// CheckErr, if non-nil, is returned from Check.
	CheckErr error

	// Block, if non-nil, makes Open wait until it is closed or ctx is done.
	Block chan struct{}

	// OpenCalls records every call to Open.
	OpenCalls []OpenCall

	opened []*Stream
}

// Check implements [audio.Source].
func (s *Source) Check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CheckErr
}

// Open implements [audio.Source].
func (s *Source) Open(ctx context.Context) (audio.Stream, error) {
	s.mu.Lock()
	s.OpenCalls = append(s.OpenCalls, OpenCall{Ctx: ctx})
	block := s.Block
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}
	st := s.Stream
	if st == nil {
		st = NewStream(16)
	}
	s.opened = append(s.opened, st)
	return st, nil
}

// Opened returns the streams handed out by Open, in order. Thread-safe.
func (s *Source) Opened() []*Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Stream, len(s.opened))
	copy(out, s.opened)
	return out
}

// OpenCallCount returns how many times Open was called. Thread-safe.
func (s *Source) OpenCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.OpenCalls)
}

// Ensure Source implements audio.Source at compile time.
var _ audio.Source = (*Source)(nil)
