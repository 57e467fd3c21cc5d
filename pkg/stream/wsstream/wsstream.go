// Package wsstream implements [stream.Transport] over a WebSocket connection
// using github.com/coder/websocket.
//
// Each captured frame travels as one binary message; transcript events arrive
// as text messages (see package stream for the wire format). One writer
// goroutine drains a bounded outbound queue and one reader goroutine parses
// inbound messages, so [Conn.Send] never blocks the audio pump.
package wsstream

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/coder/websocket"

	"github.com/MrWong99/livescribe/pkg/stream"
)

const (
	// DefaultEndpoint is the backend streaming endpoint used when none is
	// configured.
	DefaultEndpoint = "ws://localhost:8000/audio-stream"

	defaultConnectTimeout = 10 * time.Second
	defaultSendQueue      = 64
	defaultEventBuffer    = 64
	readLimit             = 1 << 20
)

// Option is a functional option for configuring a [Dialer].
type Option func(*Dialer)

// WithConnectTimeout bounds how long Connect may take. Zero disables the
// bound (the caller's context still applies). Default: 10s.
func WithConnectTimeout(d time.Duration) Option {
	return func(dl *Dialer) {
		if d >= 0 {
			dl.connectTimeout = d
		}
	}
}

// WithSendQueue sets how many outbound frames may be queued before Send starts
// dropping. Default: 64.
func WithSendQueue(n int) Option {
	return func(dl *Dialer) {
		if n > 0 {
			dl.sendQueue = n
		}
	}
}

// WithHTTPHeader adds headers to the upgrade request.
func WithHTTPHeader(h http.Header) Option {
	return func(dl *Dialer) { dl.header = h.Clone() }
}

// Dialer creates WebSocket transports for a fixed endpoint. It implements
// [stream.Dialer].
type Dialer struct {
	endpoint       string
	connectTimeout time.Duration
	sendQueue      int
	header         http.Header
}

// NewDialer returns a Dialer for endpoint. An empty endpoint selects
// [DefaultEndpoint].
func NewDialer(endpoint string, opts ...Option) *Dialer {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	d := &Dialer{
		endpoint:       endpoint,
		connectTimeout: defaultConnectTimeout,
		sendQueue:      defaultSendQueue,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Endpoint returns the configured endpoint URL.
func (d *Dialer) Endpoint() string { return d.endpoint }

// Check implements [stream.Dialer]. Only absolute ws:// and wss:// URLs are
// supported.
func (d *Dialer) Check() error {
	u, err := url.Parse(d.endpoint)
	if err != nil {
		return fmt.Errorf("wsstream: endpoint %q: %w: %v", d.endpoint, stream.ErrUnsupportedEnvironment, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("wsstream: endpoint %q: %w: scheme must be ws or wss", d.endpoint, stream.ErrUnsupportedEnvironment)
	}
	if u.Host == "" {
		return fmt.Errorf("wsstream: endpoint %q: %w: missing host", d.endpoint, stream.ErrUnsupportedEnvironment)
	}
	return nil
}

// NewTransport implements [stream.Dialer].
func (d *Dialer) NewTransport() stream.Transport { return d.Conn() }

// Conn returns a fresh, unconnected [Conn].
func (d *Dialer) Conn() *Conn {
	return &Conn{
		endpoint:       d.endpoint,
		connectTimeout: d.connectTimeout,
		header:         d.header,
		out:            make(chan []byte, d.sendQueue),
		events:         make(chan stream.Event, defaultEventBuffer),
		done:           make(chan struct{}),
	}
}

var _ stream.Dialer = (*Dialer)(nil)

// ---- conn ----

// Conn is one WebSocket connection to the backend. It implements
// [stream.Transport] and is safe for concurrent use.
type Conn struct {
	endpoint       string
	connectTimeout time.Duration
	header         http.Header

	out    chan []byte
	events chan stream.Event

	mu        sync.Mutex
	state     stream.ConnectionState
	err       error
	attempted bool
	ws        *websocket.Conn
	cancel    context.CancelFunc

	done       chan struct{}
	closing    atomic.Bool
	closeOnce  sync.Once
	eventsOnce sync.Once
	wg         sync.WaitGroup
}

var _ stream.Transport = (*Conn)(nil)

// Connect implements [stream.Transport].
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.attempted {
		c.mu.Unlock()
		return fmt.Errorf("wsstream: connect: %w", stream.ErrAlreadyConnected)
	}
	c.attempted = true
	if c.closing.Load() {
		c.mu.Unlock()
		c.closeEvents()
		return fmt.Errorf("wsstream: connect: %w: transport closed", stream.ErrConnectionFailed)
	}
	c.state = stream.StateConnecting
	c.mu.Unlock()

	dialCtx := ctx
	if c.connectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.connectTimeout)
		defer cancel()
	}

	start := time.Now()
	ws, _, err := websocket.Dial(dialCtx, c.endpoint, &websocket.DialOptions{HTTPHeader: c.header})
	if err != nil {
		err = fmt.Errorf("wsstream: connect %s: %w: %w", c.endpoint, stream.ErrConnectionFailed, err)
		c.mu.Lock()
		if c.closing.Load() {
			c.state = stream.StateClosed
		} else {
			c.state = stream.StateErrored
			c.err = err
		}
		c.mu.Unlock()
		c.closeEvents()
		return err
	}
	ws.SetReadLimit(readLimit)

	c.mu.Lock()
	if c.closing.Load() {
		c.mu.Unlock()
		_ = ws.CloseNow()
		c.closeEvents()
		return fmt.Errorf("wsstream: connect: %w: transport closed", stream.ErrConnectionFailed)
	}
	runCtx, cancel := context.WithCancel(context.Background())
	c.ws = ws
	c.cancel = cancel
	c.state = stream.StateOpen
	c.wg.Add(2)
	go c.readLoop(runCtx, ws)
	go c.writeLoop(runCtx, ws)
	c.mu.Unlock()

	slog.Debug("wsstream connected", "endpoint", c.endpoint, "took", time.Since(start))
	return nil
}

// Send implements [stream.Transport]. frame is copied before queueing.
func (c *Conn) Send(frame []byte) bool {
	c.mu.Lock()
	open := c.state == stream.StateOpen
	c.mu.Unlock()
	if !open {
		return false
	}
	select {
	case c.out <- bytes.Clone(frame):
		return true
	default:
		return false
	}
}

// Events implements [stream.Transport].
func (c *Conn) Events() <-chan stream.Event { return c.events }

// State implements [stream.Transport].
func (c *Conn) State() stream.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err implements [stream.Transport].
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close implements [stream.Transport]. It sends a normal-closure frame and
// waits for the reader and writer goroutines to exit. A Connect still in
// flight observes the close and reports [stream.ErrConnectionFailed].
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		close(c.done)

		c.mu.Lock()
		ws, cancel, attempted := c.ws, c.cancel, c.attempted
		c.state = stream.StateClosed
		c.mu.Unlock()

		switch {
		case ws != nil:
			_ = ws.Close(websocket.StatusNormalClosure, "recording stopped")
			cancel()
			c.wg.Wait()
			_ = ws.CloseNow()
		case !attempted:
			c.closeEvents()
		}
	})
	return nil
}

func (c *Conn) closeEvents() {
	c.eventsOnce.Do(func() { close(c.events) })
}

// fail moves an open connection to Errored. Failures observed after a
// requested Close are expected and ignored.
func (c *Conn) fail(cause error) {
	if c.closing.Load() {
		return
	}
	c.mu.Lock()
	if c.state != stream.StateOpen {
		c.mu.Unlock()
		return
	}
	c.state = stream.StateErrored
	c.err = fmt.Errorf("wsstream: %w: %w", stream.ErrConnectionLost, cause)
	cancel := c.cancel
	c.mu.Unlock()

	slog.Warn("wsstream connection lost", "endpoint", c.endpoint, "err", cause)
	cancel()
}

// writeLoop drains the outbound queue into binary messages.
func (c *Conn) writeLoop(ctx context.Context, ws *websocket.Conn) {
	defer c.wg.Done()
	for {
		select {
		case frame := <-c.out:
			if err := ws.Write(ctx, websocket.MessageBinary, frame); err != nil {
				if ctx.Err() == nil {
					c.fail(err)
				}
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// readLoop parses inbound text messages into events until the connection ends.
func (c *Conn) readLoop(ctx context.Context, ws *websocket.Conn) {
	defer c.wg.Done()
	defer c.closeEvents()

	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			c.fail(err)
			return
		}
		if typ != websocket.MessageText {
			slog.Debug("wsstream ignoring binary message", "bytes", len(data))
			continue
		}
		ev, ok := stream.ParseEvent(string(data))
		if !ok {
			slog.Debug("wsstream ignoring unrecognized message", "payload", truncate(string(data), 64))
			continue
		}
		select {
		case c.events <- ev:
		case <-ctx.Done():
			return
		case <-c.done:
			return
		}
	}
}

// truncate shortens s to at most n bytes without splitting a UTF-8 rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
