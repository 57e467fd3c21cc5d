// Package mock provides in-memory mock implementations of [stream.Transport]
// and [stream.Dialer] for use in unit tests.
//
// All mocks are safe for concurrent use, record method calls, and expose
// exported fields for configuring return values.
//
// Example:
//
//	d := &mock.Dialer{}
//	tr := d.NewTransport()          // a *mock.Transport
//	_ = tr.Connect(ctx)
//	d.Last().Emit(stream.Final("hello"))
//	d.Last().Fail(errors.New("reset by peer"))
package mock

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/MrWong99/livescribe/pkg/stream"
)

// ─── Transport ────────────────────────────────────────────────────────────────

// Transport is a mock implementation of [stream.Transport].
type Transport struct {
	mu sync.Mutex

	// ConnectErr, if non-nil, makes Connect fail. It is wrapped with
	// [stream.ErrConnectionFailed].
	ConnectErr error

	// Block, if non-nil, makes Connect wait until it is closed or ctx is done.
	Block chan struct{}

	// DropSends makes Send drop every frame, as if the queue were full.
	DropSends bool

	// CallCountConnect records how many times Connect was called.
	CallCountConnect int

	// CallCountClose records how many times Close was called.
	CallCountClose int

	state     stream.ConnectionState
	err       error
	attempted bool
	sent      [][]byte
	events    chan stream.Event
	ended     bool
	notify    chan struct{}
}

// NewTransport returns a Transport whose event channel has the given buffer.
func NewTransport(buffer int) *Transport {
	return &Transport{
		events: make(chan stream.Event, buffer),
		notify: make(chan struct{}),
	}
}

// Connect implements [stream.Transport].
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	t.CallCountConnect++
	if t.attempted {
		t.mu.Unlock()
		return fmt.Errorf("mock: connect: %w", stream.ErrAlreadyConnected)
	}
	t.attempted = true
	t.state = stream.StateConnecting
	block := t.Block
	t.mu.Unlock()

	var cause error
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			cause = ctx.Err()
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if cause == nil {
		cause = t.ConnectErr
	}
	if t.state != stream.StateConnecting {
		// Closed while connecting.
		return fmt.Errorf("mock: connect: %w: transport closed", stream.ErrConnectionFailed)
	}
	if cause != nil {
		t.state = stream.StateErrored
		t.err = fmt.Errorf("mock: connect: %w: %w", stream.ErrConnectionFailed, cause)
		t.endLocked()
		return t.err
	}
	t.state = stream.StateOpen
	return nil
}

// Send implements [stream.Transport]. Accepted frames are copied and recorded.
func (t *Transport) Send(frame []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != stream.StateOpen || t.DropSends {
		return false
	}
	t.sent = append(t.sent, bytes.Clone(frame))
	t.broadcastLocked()
	return true
}

// Events implements [stream.Transport].
func (t *Transport) Events() <-chan stream.Event { return t.events }

// State implements [stream.Transport].
func (t *Transport) State() stream.ConnectionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Err implements [stream.Transport].
func (t *Transport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Close implements [stream.Transport].
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.CallCountClose++
	t.state = stream.StateClosed
	t.endLocked()
	return nil
}

// Emit delivers ev as if the backend had sent it. It reports false when the
// connection has ended or the event buffer is full.
func (t *Transport) Emit(ev stream.Event) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ended || t.state != stream.StateOpen {
		return false
	}
	select {
	case t.events <- ev:
		return true
	default:
		return false
	}
}

// Fail ends an open connection as if the backend dropped it.
func (t *Transport) Fail(cause error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != stream.StateOpen {
		return
	}
	t.state = stream.StateErrored
	t.err = fmt.Errorf("mock: %w: %w", stream.ErrConnectionLost, cause)
	t.endLocked()
}

// Sent returns a copy of every accepted frame, in order. Thread-safe.
func (t *Transport) Sent() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.sent))
	copy(out, t.sent)
	return out
}

// WaitSent blocks until at least n frames were accepted or ctx is done.
func (t *Transport) WaitSent(ctx context.Context, n int) error {
	for {
		t.mu.Lock()
		if len(t.sent) >= n {
			t.mu.Unlock()
			return nil
		}
		ch := t.notify
		t.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// CloseCalls returns how many times Close was called. Thread-safe.
func (t *Transport) CloseCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.CallCountClose
}

func (t *Transport) endLocked() {
	if t.ended {
		return
	}
	t.ended = true
	close(t.events)
	t.broadcastLocked()
}

func (t *Transport) broadcastLocked() {
	close(t.notify)
	t.notify = make(chan struct{})
}

// Ensure Transport implements stream.Transport at compile time.
var _ stream.Transport = (*Transport)(nil)

// ─── Dialer ───────────────────────────────────────────────────────────────────

// Dialer is a mock implementation of [stream.Dialer]. Every NewTransport call
// returns a fresh [Transport] configured from the exported fields.
type Dialer struct {
	mu sync.Mutex

	// CheckErr, if non-nil, is returned from Check.
	CheckErr error

	// ConnectErr is copied into every new Transport.
	ConnectErr error

	// Block is copied into every new Transport.
	Block chan struct{}

	// Buffer is the event buffer of new transports. Default: 16.
	Buffer int

	// Transports records every transport handed out, in order.
	Transports []*Transport
}

// Check implements [stream.Dialer].
func (d *Dialer) Check() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.CheckErr
}

// NewTransport implements [stream.Dialer].
func (d *Dialer) NewTransport() stream.Transport {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf := d.Buffer
	if buf <= 0 {
		buf = 16
	}
	t := NewTransport(buf)
	t.ConnectErr = d.ConnectErr
	t.Block = d.Block
	d.Transports = append(d.Transports, t)
	return t
}

// Last returns the most recently created transport, or nil. Thread-safe.
func (d *Dialer) Last() *Transport {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Transports) == 0 {
		return nil
	}
	return d.Transports[len(d.Transports)-1]
}

// Count returns how many transports were created. Thread-safe.
func (d *Dialer) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Transports)
}

// Ensure Dialer implements stream.Dialer at compile time.
var _ stream.Dialer = (*Dialer)(nil)
