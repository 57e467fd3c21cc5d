// Package session runs one live transcription session at a time.
//
// A [Controller] owns the lifecycle: it opens microphone capture and the
// backend connection together, pumps converted PCM frames to the backend,
// feeds transcript events into the [transcript.Aggregator] and keeps the
// elapsed-time display. All mutation happens on a single goroutine; every
// other goroutine (start attempt, frame pump, event forwarder) talks to it
// through a typed mailbox. Messages carry the session generation so that
// anything produced by an older session is discarded.
//
// State machine:
//
//	Idle ──Start──▶ Starting ──ok──▶ Recording ──Stop──▶ Stopping ──▶ Idle
//	                   │  └──Stop──▶ Idle          │
//	                   └──fail──▶ Errored ◀──fail──┘
//	Errored ──Start──▶ Starting,  Errored ──Stop──▶ Idle
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/livescribe/internal/observe"
	"github.com/MrWong99/livescribe/internal/transcript"
	"github.com/MrWong99/livescribe/pkg/audio"
	"github.com/MrWong99/livescribe/pkg/stream"
)

// tickInterval is the elapsed-time display resolution.
const tickInterval = time.Second

// Ticker delivers timer ticks to the controller. *time.Ticker satisfies it
// through [NewTimeTicker]; tests substitute a manual implementation.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()                { t.t.Stop() }

// NewTimeTicker returns a [Ticker] backed by [time.NewTicker].
func NewTimeTicker(d time.Duration) Ticker { return timeTicker{t: time.NewTicker(d)} }

// Config holds the dependencies of a [Controller].
type Config struct {
	// Source opens microphone capture. Required.
	Source audio.Source

	// Dialer creates one backend transport per session. Required.
	Dialer stream.Dialer

	// Aggregator accumulates the transcript. Defaults to transcript.New().
	Aggregator *transcript.Aggregator

	// Metrics records session instruments. Defaults to observe.DefaultMetrics().
	Metrics *observe.Metrics

	// NewTicker creates the elapsed-time ticker. Defaults to [NewTimeTicker].
	NewTicker func(time.Duration) Ticker

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// NewID returns a fresh session id. Defaults to uuid.NewString.
	NewID func() string

	// OnSessionEnd, if set, is called on the controller goroutine whenever a
	// session that reached Recording ends. It must not block.
	OnSessionEnd func(Summary)
}

// Controller is the live transcription session state machine. All exported
// methods are safe for concurrent use.
type Controller struct {
	src     audio.Source
	dialer  stream.Dialer
	agg     *transcript.Aggregator
	metrics *observe.Metrics

	newTicker func(time.Duration) Ticker
	now       func() time.Time
	newID     func() string
	onEnd     func(Summary)

	mailbox chan message
	done    chan struct{}
	changes chan struct{}
	snap    atomic.Pointer[Snapshot]

	// Owned by the loop goroutine.
	state   State
	err     error
	elapsed int
	gen     uint64
	sess    *active
	ticker  Ticker
	lastID  string
	lastAt  time.Time
}

// active holds the resources of the current session.
type active struct {
	gen       uint64
	id        string
	startedAt time.Time
	log       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	transport stream.Transport
	capture   audio.Stream

	attemptDone chan struct{}
	pumpDone    chan struct{}
	fwdDone     chan struct{}

	startReply   chan error
	firstSegment int
	recording    bool
}

// New validates the environment and starts the controller goroutine. It
// fails with an unsupported-environment error when the capture source or the
// transport cannot work here, before any session is attempted.
func New(cfg Config) (*Controller, error) {
	if cfg.Source == nil {
		return nil, errors.New("session: new: audio source is required")
	}
	if cfg.Dialer == nil {
		return nil, errors.New("session: new: stream dialer is required")
	}
	if err := errors.Join(cfg.Source.Check(), cfg.Dialer.Check()); err != nil {
		return nil, fmt.Errorf("session: new: %w", err)
	}

	c := &Controller{
		src:       cfg.Source,
		dialer:    cfg.Dialer,
		agg:       cfg.Aggregator,
		metrics:   cfg.Metrics,
		newTicker: cfg.NewTicker,
		now:       cfg.Now,
		newID:     cfg.NewID,
		onEnd:     cfg.OnSessionEnd,
		mailbox:   make(chan message),
		done:      make(chan struct{}),
		changes:   make(chan struct{}, 1),
	}
	if c.agg == nil {
		c.agg = transcript.New()
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	if c.newTicker == nil {
		c.newTicker = NewTimeTicker
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	c.publish()
	go c.run()
	return c, nil
}

// ─── Public API ───────────────────────────────────────────────────────────────

// Start begins a new session from Idle or Errored and blocks until it is
// Recording (nil) or has failed. Any other state yields [ErrBusy]. ctx bounds
// the start-up only; the session itself runs until Stop or a failure.
func (c *Controller) Start(ctx context.Context) error {
	return c.call(ctx, &startReq{ctx: ctx, reply: make(chan error, 1)})
}

// Stop ends the session. From Recording it releases capture and transport and
// returns once frame production and event processing have halted. From
// Starting it cancels the attempt; from Errored it acknowledges the error.
// Both leave the controller Idle. The transcript is kept.
func (c *Controller) Stop(ctx context.Context) error {
	return c.call(ctx, &stopReq{reply: make(chan error, 1)})
}

// Clear empties the transcript and resets the elapsed display. It is refused
// with [ErrBusy] while a session is active.
func (c *Controller) Clear(ctx context.Context) error {
	return c.call(ctx, &clearReq{reply: make(chan error, 1)})
}

// Close stops any session and ends the controller goroutine. It is safe to
// call more than once.
func (c *Controller) Close(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	default:
	}
	err := c.call(ctx, &closeReq{reply: make(chan error, 1)})
	if errors.Is(err, ErrClosed) {
		return nil
	}
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the latest published view of the controller.
func (c *Controller) Snapshot() Snapshot { return *c.snap.Load() }

// Changes signals that a new snapshot was published. Signals coalesce: a
// slow reader sees one pending signal, not one per update.
func (c *Controller) Changes() <-chan struct{} { return c.changes }

// Done is closed when the controller goroutine has exited.
func (c *Controller) Done() <-chan struct{} { return c.done }

// Aggregator returns the transcript aggregator the controller feeds.
func (c *Controller) Aggregator() *transcript.Aggregator { return c.agg }

func (c *Controller) call(ctx context.Context, req request) error {
	select {
	case c.mailbox <- req:
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.replyTo():
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ─── Mailbox ──────────────────────────────────────────────────────────────────

type message interface{ isMessage() }

type request interface {
	message
	replyTo() chan error
}

type (
	startReq struct {
		ctx   context.Context
		reply chan error
	}
	stopReq  struct{ reply chan error }
	clearReq struct{ reply chan error }
	closeReq struct{ reply chan error }

	startResult struct {
		gen     uint64
		capture audio.Stream
		err     error
	}
	eventMsg struct {
		gen uint64
		ev  stream.Event
	}
	transportEnded struct {
		gen uint64
		err error
	}
	captureEnded struct {
		gen uint64
		err error
	}
)

func (*startReq) isMessage() {}
func (*stopReq) isMessage() {}
func (*clearReq) isMessage() {}
func (*closeReq) isMessage() {}
func (startResult) isMessage() {}
func (eventMsg) isMessage() {}
func (transportEnded) isMessage() {}
func (captureEnded) isMessage() {}
func (r *startReq) replyTo() chan error { return r.reply }
func (r *stopReq) replyTo() chan error { return r.reply }
func (r *clearReq) replyTo() chan error { return r.reply }
func (r *closeReq) replyTo() chan error { return r.reply }

// post delivers msg from a session goroutine. It gives up when the session
// or the controller is gone.
func (c *Controller) post(ctx context.Context, msg message) bool {
	select {
	case c.mailbox <- msg:
		return true
	case <-ctx.Done():
		return false
	case <-c.done:
		return false
	}
}

// ─── Loop ─────────────────────────────────────────────────────────────────────

func (c *Controller) run() {
	defer close(c.done)
	for {
		var tick <-chan time.Time
		if c.ticker != nil {
			tick = c.ticker.C()
		}
		select {
		case msg := <-c.mailbox:
			if c.handle(msg) {
				return
			}
		case <-tick:
			if c.state == StateStarting || c.state == StateRecording {
				c.elapsed++
				c.publish()
			}
		}
	}
}

// handle processes one message and reports whether the loop must exit.
func (c *Controller) handle(msg message) bool {
	switch m := msg.(type) {
	case *startReq:
		c.handleStart(m)
	case *stopReq:
		m.reply <- c.handleStop()
	case *clearReq:
		m.reply <- c.handleClear()
	case *closeReq:
		c.handleClose()
		m.reply <- nil
		return true
	case startResult:
		c.handleStartResult(m)
	case eventMsg:
		if c.current(m.gen) && c.state == StateRecording {
			c.handleEvent(m.ev)
		}
	case transportEnded:
		if c.current(m.gen) && c.state == StateRecording {
			err := m.err
			if err == nil {
				err = fmt.Errorf("session: backend closed the connection: %w", stream.ErrConnectionLost)
			}
			c.fail(err)
		}
	case captureEnded:
		if c.current(m.gen) && c.state == StateRecording {
			err := m.err
			if err == nil {
				err = fmt.Errorf("session: capture ended unexpectedly: %w", audio.ErrDeviceUnavailable)
			}
			c.fail(err)
		}
	}
	return false
}

func (c *Controller) current(gen uint64) bool {
	return c.sess != nil && c.sess.gen == gen
}

func (c *Controller) handleStart(req *startReq) {
	if c.state != StateIdle && c.state != StateErrored {
		req.reply <- ErrBusy
		return
	}

	c.gen++
	s := &active{
		gen:          c.gen,
		id:           c.newID(),
		startedAt:    c.now(),
		transport:    c.dialer.NewTransport(),
		attemptDone:  make(chan struct{}),
		startReply:   req.reply,
		firstSegment: c.agg.Len(),
	}
	s.ctx, s.cancel = context.WithCancel(observe.WithSessionID(context.Background(), s.id))
	s.log = observe.Logger(s.ctx)
	c.sess = s
	c.lastID, c.lastAt = s.id, s.startedAt

	c.state = StateStarting
	c.err = nil
	c.elapsed = 0
	c.ticker = c.newTicker(tickInterval)
	s.log.Info("session starting")
	c.publish()

	go c.attempt(req.ctx, s)
}

// attempt opens capture and connects the transport concurrently. If either
// fails the other is cancelled and any opened capture is released here.
func (c *Controller) attempt(callerCtx context.Context, s *active) {
	defer close(s.attemptDone)

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stopAfter := context.AfterFunc(callerCtx, cancel)
	defer stopAfter()

	ctx, span := observe.StartSessionSpan(ctx, "start", s.id)
	defer span.End()

	var capture audio.Stream
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		st, err := c.src.Open(gctx)
		if err != nil {
			return fmt.Errorf("session: open capture: %w", err)
		}
		capture = st
		c.metrics.CaptureStartDuration.Record(gctx, time.Since(start).Seconds())
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		if err := s.transport.Connect(gctx); err != nil {
			return fmt.Errorf("session: connect: %w", err)
		}
		c.metrics.ConnectDuration.Record(gctx, time.Since(start).Seconds())
		return nil
	})
	err := g.Wait()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if capture != nil {
			_ = capture.Close()
			capture = nil
		}
	} else if n := c.discardQueued(ctx, capture); n > 0 {
		observe.Logger(ctx).Debug("discarded audio captured before the connection opened", "frames", n)
	}

	if !c.post(s.ctx, startResult{gen: s.gen, capture: capture, err: err}) && capture != nil {
		_ = capture.Close()
	}
}

// discardQueued drops the frames the device buffered while the connection
// was still being established. Only audio captured after Open is sent.
func (c *Controller) discardQueued(ctx context.Context, capture audio.Stream) int {
	n := 0
	for {
		select {
		case _, ok := <-capture.Frames():
			if !ok {
				return n
			}
			n++
			c.metrics.FramesCaptured.Add(ctx, 1)
			c.metrics.RecordFrameDropped(ctx, observe.DropNotOpen)
		default:
			return n
		}
	}
}

func (c *Controller) handleStartResult(m startResult) {
	if !c.current(m.gen) || c.state != StateStarting {
		if m.capture != nil {
			_ = m.capture.Close()
		}
		return
	}
	if m.err != nil {
		c.fail(m.err)
		return
	}

	s := c.sess
	s.capture = m.capture
	s.recording = true
	s.pumpDone = make(chan struct{})
	s.fwdDone = make(chan struct{})
	go c.pump(s)
	go c.forward(s)

	c.state = StateRecording
	c.metrics.ActiveSessions.Add(s.ctx, 1)
	s.log.Info("session recording")
	c.replyStart(nil)
	c.publish()
}

func (c *Controller) handleStop() error {
	switch c.state {
	case StateErrored:
		c.state = StateIdle
		c.err = nil
		c.publish()
		return nil
	case StateStarting:
		c.sess.log.Info("session start cancelled")
		c.release()
		c.replyStart(ErrStartCancelled)
		c.sess = nil
		c.state = StateIdle
		c.publish()
		return nil
	case StateRecording:
		c.state = StateStopping
		c.publish()
		c.finish(OutcomeStopped, nil)
		c.state = StateIdle
		c.publish()
		return nil
	default:
		return ErrNotRecording
	}
}

func (c *Controller) handleClear() error {
	if c.state.Active() {
		return ErrBusy
	}
	c.agg.Reset()
	c.elapsed = 0
	c.publish()
	return nil
}

func (c *Controller) handleClose() {
	switch c.state {
	case StateStarting:
		c.release()
		c.replyStart(ErrStartCancelled)
		c.sess = nil
	case StateRecording:
		c.finish(OutcomeStopped, nil)
	}
	c.state = StateIdle
	c.publish()
}

// fail moves a Starting or Recording session to Errored.
func (c *Controller) fail(err error) {
	kind := Kind(err)
	c.sess.log.Warn("session failed", "kind", kind, "err", err)
	c.metrics.RecordSessionError(context.Background(), kind)

	if c.sess.recording {
		c.finish(OutcomeErrored, err)
	} else {
		// Nothing was recorded, so no duration is shown.
		c.release()
		c.replyStart(err)
		c.sess = nil
		c.elapsed = 0
	}
	c.state = StateErrored
	c.err = err
	c.publish()
}

// finish releases a session that reached Recording and reports it.
func (c *Controller) finish(outcome Outcome, err error) {
	s := c.sess
	c.release()
	c.sess = nil

	ended := c.now()
	c.metrics.ActiveSessions.Add(context.Background(), -1)
	c.metrics.SessionDuration.Record(context.Background(), ended.Sub(s.startedAt).Seconds(),
		metric.WithAttributes(observe.Attr("outcome", string(outcome))))
	s.log.Info("session ended", "outcome", outcome, "elapsed", FormatElapsed(c.elapsed))

	if c.onEnd == nil {
		return
	}
	sum := Summary{
		SessionID: s.id,
		StartedAt: s.startedAt,
		EndedAt:   ended,
		Elapsed:   c.elapsed,
		Outcome:   outcome,
	}
	if segs := c.agg.Segments(); s.firstSegment <= len(segs) {
		sum.Segments = segs[s.firstSegment:]
	}
	if err != nil {
		sum.Error = Describe(err)
	}
	c.onEnd(sum)
}

// release stops the timer and frees every handle of the current session.
// When it returns no goroutine of the session is running.
func (c *Controller) release() {
	s := c.sess
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	s.cancel()
	if !s.recording {
		// Closing the transport aborts an in-flight Connect.
		_ = s.transport.Close()
		<-s.attemptDone
		return
	}
	if err := s.capture.Close(); err != nil {
		s.log.Warn("failed to close capture", "err", err)
	}
	<-s.pumpDone
	<-s.fwdDone
	if err := s.transport.Close(); err != nil {
		s.log.Warn("failed to close transport", "err", err)
	}
}

func (c *Controller) replyStart(err error) {
	if c.sess != nil && c.sess.startReply != nil {
		c.sess.startReply <- err
		c.sess.startReply = nil
	}
}

func (c *Controller) handleEvent(ev stream.Event) {
	ctx := c.sess.ctx
	c.metrics.RecordTranscriptEvent(ctx, ev.Kind.String())
	switch ev.Kind {
	case stream.EventPartial:
		c.agg.OnPartial(ev.Text)
	case stream.EventFinal:
		text, corrections := c.agg.OnFinal(ev.Text)
		if len(corrections) > 0 {
			c.metrics.Corrections.Add(ctx, int64(len(corrections)))
			c.sess.log.Debug("vocabulary corrections applied", "count", len(corrections), "text", text)
		}
	}
	c.publish()
}

func (c *Controller) publish() {
	c.snap.Store(&Snapshot{
		State:      c.state,
		SessionID:  c.lastID,
		StartedAt:  c.lastAt,
		Elapsed:    c.elapsed,
		Transcript: c.agg.View(),
		Err:        c.err,
	})
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

// ─── Session goroutines ───────────────────────────────────────────────────────

// pump converts captured frames and hands them to the transport in capture
// order. It never touches controller state.
func (c *Controller) pump(s *active) {
	defer close(s.pumpDone)

	var (
		buf        []byte
		sent, drop int64
	)
	defer func() {
		s.log.Debug("frame pump stopped", "sent", sent, "dropped", drop)
	}()

	frames := s.capture.Frames()
	for {
		select {
		case <-s.ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				c.post(s.ctx, captureEnded{gen: s.gen, err: s.capture.Err()})
				return
			}
			c.metrics.FramesCaptured.Add(s.ctx, 1)
			buf = audio.Float32ToPCM16(buf, f.Samples)
			if s.transport.Send(buf) {
				sent++
				c.metrics.FramesSent.Add(s.ctx, 1)
			} else {
				drop++
				reason := observe.DropTransport
				if s.transport.State() != stream.StateOpen {
					reason = observe.DropStopped
				}
				c.metrics.RecordFrameDropped(s.ctx, reason)
			}
		}
	}
}

// forward relays transport events to the controller until the event channel
// closes or the session ends.
func (c *Controller) forward(s *active) {
	defer close(s.fwdDone)

	events := s.transport.Events()
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				c.post(s.ctx, transportEnded{gen: s.gen, err: s.transport.Err()})
				return
			}
			if !c.post(s.ctx, eventMsg{gen: s.gen, ev: ev}) {
				return
			}
		}
	}
}
