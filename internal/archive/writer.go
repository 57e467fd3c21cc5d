package archive

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/livescribe/internal/session"
)

const (
	defaultQueue       = 16
	defaultSaveTimeout = 10 * time.Second
)

// WriterOption configures a [Writer].
type WriterOption func(*Writer)

// WithQueue sets how many summaries may wait for the store. Default: 16.
func WithQueue(n int) WriterOption {
	return func(w *Writer) {
		if n > 0 {
			w.queueSize = n
		}
	}
}

// WithSaveTimeout bounds each Save call. Default: 10s.
func WithSaveTimeout(d time.Duration) WriterOption {
	return func(w *Writer) {
		if d > 0 {
			w.saveTimeout = d
		}
	}
}

// Writer saves session summaries to a [Store] on a background goroutine.
// [Writer.Enqueue] matches session.Config.OnSessionEnd and never blocks.
type Writer struct {
	store       Store
	queueSize   int
	saveTimeout time.Duration

	queue chan Record
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewWriter starts a writer draining into store.
func NewWriter(store Store, opts ...WriterOption) *Writer {
	w := &Writer{
		store:       store,
		queueSize:   defaultQueue,
		saveTimeout: defaultSaveTimeout,
	}
	for _, o := range opts {
		o(w)
	}
	w.queue = make(chan Record, w.queueSize)
	w.wg.Add(1)
	go w.run()
	return w
}

// Enqueue schedules s for saving. Summaries are dropped with a warning when
// the queue is full or the writer is closed.
func (w *Writer) Enqueue(s session.Summary) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		slog.Warn("archive writer closed, dropping session", "session_id", s.SessionID)
		return
	}
	select {
	case w.queue <- FromSummary(s):
	default:
		slog.Warn("archive queue full, dropping session", "session_id", s.SessionID)
	}
}

// Close stops accepting summaries and waits until the queued ones are saved
// or ctx is done.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) run() {
	defer w.wg.Done()
	for r := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), w.saveTimeout)
		err := w.store.Save(ctx, r)
		cancel()
		if err != nil {
			slog.Error("failed to archive session", "session_id", r.SessionID, "err", err)
			continue
		}
		slog.Debug("session archived", "session_id", r.SessionID, "segments", len(r.Segments))
	}
}
