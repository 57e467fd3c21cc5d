// Package mock provides an in-memory implementation of [archive.Store] for
// use in unit tests.
package mock

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/MrWong99/livescribe/internal/archive"
)

// Store is an in-memory [archive.Store]. All methods are safe for concurrent
// use.
type Store struct {
	mu      sync.Mutex
	records map[string]archive.Record
	saved   chan struct{}

	// SaveErr, if non-nil, is returned from Save.
	SaveErr error

	// PingErr, if non-nil, is returned from Ping.
	PingErr error

	// CallCountSave records how many times Save was called.
	CallCountSave int
}

// New returns an empty Store.
func New() *Store {
	return &Store{records: make(map[string]archive.Record), saved: make(chan struct{}, 64)}
}

// Save implements [archive.Store].
func (s *Store) Save(_ context.Context, r archive.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountSave++
	if s.SaveErr != nil {
		return s.SaveErr
	}
	r.Segments = slices.Clone(r.Segments)
	r.SegmentCount = len(r.Segments)
	s.records[r.SessionID] = r
	select {
	case s.saved <- struct{}{}:
	default:
	}
	return nil
}

// Saved is signalled after every successful Save.
func (s *Store) Saved() <-chan struct{} { return s.saved }

// List implements [archive.Store].
func (s *Store) List(_ context.Context, limit int) ([]archive.Record, error) {
	return s.filter(limit, func(archive.Record) bool { return true }), nil
}

// Get implements [archive.Store].
func (s *Store) Get(_ context.Context, sessionID string) (archive.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[sessionID]
	if !ok {
		return archive.Record{}, archive.ErrNotFound
	}
	r.Segments = slices.Clone(r.Segments)
	return r, nil
}

// Search implements [archive.Store] with a case-insensitive substring match.
func (s *Store) Search(_ context.Context, query string, limit int) ([]archive.Record, error) {
	q := strings.ToLower(query)
	return s.filter(limit, func(r archive.Record) bool {
		return slices.ContainsFunc(r.Segments, func(seg string) bool {
			return strings.Contains(strings.ToLower(seg), q)
		})
	}), nil
}

// Ping implements [archive.Store].
func (s *Store) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PingErr
}

// Len returns the number of stored records. Thread-safe.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *Store) filter(limit int, keep func(archive.Record) bool) []archive.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]archive.Record, 0, len(s.records))
	for _, r := range s.records {
		if keep(r) {
			r.Segments = nil
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b archive.Record) int { return b.StartedAt.Compare(a.StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Ensure Store implements archive.Store at compile time.
var _ archive.Store = (*Store)(nil)
