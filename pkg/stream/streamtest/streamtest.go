// Package streamtest provides an in-process transcription backend speaking the
// live streaming protocol, for integration tests of transports and sessions.
//
// The backend accepts one client at a time, records every binary frame the
// client sends, and lets the test push PARTIAL/FINAL text messages or drop the
// connection abruptly.
package streamtest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/coder/websocket"

	"github.com/MrWong99/livescribe/pkg/stream"
)

// ErrNoClient is returned when the test tries to talk to a client that is not
// connected.
var ErrNoClient = errors.New("streamtest: no client connected")

// Option configures a [Server].
type Option func(*Server)

// WithRejectStatus makes the server refuse the websocket upgrade with the
// given HTTP status, simulating an unreachable or misconfigured backend.
func WithRejectStatus(code int) Option {
	return func(s *Server) { s.rejectStatus = code }
}

// Server is a fake transcription backend.
type Server struct {
	srv          *httptest.Server
	rejectStatus int

	mu          sync.Mutex
	conn        *websocket.Conn
	frames      [][]byte
	connects    int
	closeStatus websocket.StatusCode
	ended       bool
	notify      chan struct{}
}

// New starts a backend that is shut down when the test finishes.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()
	s := &Server{notify: make(chan struct{}), closeStatus: -1}
	for _, o := range opts {
		o(s)
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// URL returns the ws:// endpoint of the backend.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/audio-stream"
}

// Close drops any client and stops the server.
func (s *Server) Close() {
	s.Drop()
	s.srv.Close()
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if s.rejectStatus != 0 {
		http.Error(w, "backend unavailable", s.rejectStatus)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return
	}
	// Large PCM frames (1 s at 16 kHz is 32000 bytes) must fit.
	conn.SetReadLimit(1 << 20)

	s.mu.Lock()
	s.conn = conn
	s.connects++
	s.ended = false
	s.closeStatus = -1
	s.broadcastLocked()
	s.mu.Unlock()

	for {
		typ, data, err := conn.Read(context.Background())
		if err != nil {
			s.mu.Lock()
			if s.conn == conn {
				s.conn = nil
			}
			s.ended = true
			s.closeStatus = websocket.CloseStatus(err)
			s.broadcastLocked()
			s.mu.Unlock()
			return
		}
		if typ != websocket.MessageBinary {
			continue
		}
		s.mu.Lock()
		s.frames = append(s.frames, data)
		s.broadcastLocked()
		s.mu.Unlock()
	}
}

// broadcastLocked wakes every waiter. s.mu must be held.
func (s *Server) broadcastLocked() {
	close(s.notify)
	s.notify = make(chan struct{})
}

// waitFor blocks until cond holds (evaluated under s.mu) or ctx is done.
func (s *Server) waitFor(ctx context.Context, cond func() bool) error {
	for {
		s.mu.Lock()
		if cond() {
			s.mu.Unlock()
			return nil
		}
		ch := s.notify
		s.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// WaitConnected blocks until a client is connected.
func (s *Server) WaitConnected(ctx context.Context) error {
	return s.waitFor(ctx, func() bool { return s.conn != nil })
}

// WaitDisconnected blocks until the current client connection has ended and
// returns the close status the client sent (-1 if none).
func (s *Server) WaitDisconnected(ctx context.Context) (websocket.StatusCode, error) {
	if err := s.waitFor(ctx, func() bool { return s.ended }); err != nil {
		return -1, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeStatus, nil
}

// WaitFrames blocks until at least n binary frames have been received and
// returns all of them.
func (s *Server) WaitFrames(ctx context.Context, n int) ([][]byte, error) {
	if err := s.waitFor(ctx, func() bool { return len(s.frames) >= n }); err != nil {
		return s.Frames(), err
	}
	return s.Frames(), nil
}

// Frames returns a copy of every binary frame received so far, in order.
func (s *Server) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.frames))
	copy(out, s.frames)
	return out
}

// Connects returns how many websocket clients have been accepted.
func (s *Server) Connects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

// SendText writes one raw text message to the connected client.
func (s *Server) SendText(ctx context.Context, msg string) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNoClient
	}
	return conn.Write(ctx, websocket.MessageText, []byte(msg))
}

// SendEvent writes ev in wire form to the connected client.
func (s *Server) SendEvent(ctx context.Context, ev stream.Event) error {
	return s.SendText(ctx, ev.Encode())
}

// SendBinary writes one binary message to the connected client. Clients are
// expected to ignore it.
func (s *Server) SendBinary(ctx context.Context, data []byte) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNoClient
	}
	return conn.Write(ctx, websocket.MessageBinary, data)
}

// Drop tears down the client connection without a close handshake.
func (s *Server) Drop() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		_ = conn.CloseNow()
	}
}
