// Package archive persists finished transcription sessions and lists them
// later. Sessions are handed over by the session controller's end hook and
// written asynchronously by a [Writer] so that a slow database never stalls
// the recording loop.
package archive

import (
	"context"
	"errors"
	"time"

	"github.com/MrWong99/livescribe/internal/session"
)

// ErrNotFound is returned by [Store.Get] for an unknown session id.
var ErrNotFound = errors.New("archive: session not found")

// Record is one archived session.
type Record struct {
	SessionID string
	StartedAt time.Time
	EndedAt   time.Time

	// ElapsedSeconds is the timer value when the session ended.
	ElapsedSeconds int

	// Outcome is "stopped" or "errored".
	Outcome string

	// Error is the human-readable failure message for errored sessions.
	Error string

	// SegmentCount is the number of final segments. It is filled by List and
	// Search, which do not load Segments.
	SegmentCount int

	// Segments are the final segments in order. Only Get loads them.
	Segments []string
}

// FromSummary converts a session summary into a Record.
func FromSummary(s session.Summary) Record {
	return Record{
		SessionID:      s.SessionID,
		StartedAt:      s.StartedAt,
		EndedAt:        s.EndedAt,
		ElapsedSeconds: s.Elapsed,
		Outcome:        string(s.Outcome),
		Error:          s.Error,
		SegmentCount:   len(s.Segments),
		Segments:       s.Segments,
	}
}

// Store is the persistence backend for archived sessions. Implementations
// must be safe for concurrent use.
type Store interface {
	// Save inserts or replaces the record with r.SessionID.
	Save(ctx context.Context, r Record) error

	// List returns up to limit records, most recently started first.
	List(ctx context.Context, limit int) ([]Record, error)

	// Get returns the record with its segments, or [ErrNotFound].
	Get(ctx context.Context, sessionID string) (Record, error)

	// Search returns up to limit records whose transcript matches the
	// full-text query, most recently started first.
	Search(ctx context.Context, query string, limit int) ([]Record, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}
