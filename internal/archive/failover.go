package archive

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrWong99/livescribe/internal/resilience"
)

// Compile-time interface check.
var _ Store = (*FailoverStore)(nil)

// FailoverStore writes to a primary store and falls back to a secondary one
// while the primary fails. Each side sits behind its own circuit breaker, so
// a dead database is skipped instead of timing out on every save. Reads are
// served by the first store that answers.
//
// TODO: replay records that only reached the fallback into the primary once
// it is reachable again.
type FailoverStore struct {
	group *resilience.Failover[Store]
}

// NewFailoverStore returns a store that tries primary first, then fallback.
// An open breaker is probed again after resetTimeout.
func NewFailoverStore(primaryName string, primary Store, fallbackName string, fallback Store, resetTimeout time.Duration) *FailoverStore {
	g := resilience.NewFailover(primaryName, primary, resilience.BreakerConfig{ResetTimeout: resetTimeout})
	g.Add(fallbackName, fallback)
	return &FailoverStore{group: g}
}

// Save implements [Store].
func (f *FailoverStore) Save(ctx context.Context, r Record) error {
	served, err := f.group.Do(func(s Store) error { return s.Save(ctx, r) })
	if err == nil {
		slog.Debug("archived session", "session_id", r.SessionID, "store", served)
	}
	return err
}

// List implements [Store].
func (f *FailoverStore) List(ctx context.Context, limit int) ([]Record, error) {
	return resilience.Value(f.group, func(s Store) ([]Record, error) { return s.List(ctx, limit) })
}

// Get implements [Store]. [ErrNotFound] from the primary is an answer, not a
// failure, and is returned without consulting the fallback.
func (f *FailoverStore) Get(ctx context.Context, sessionID string) (Record, error) {
	var notFound bool
	r, err := resilience.Value(f.group, func(s Store) (Record, error) {
		r, err := s.Get(ctx, sessionID)
		if errors.Is(err, ErrNotFound) {
			notFound = true
			return Record{}, nil
		}
		return r, err
	})
	if err == nil && notFound {
		return Record{}, ErrNotFound
	}
	return r, err
}

// Search implements [Store].
func (f *FailoverStore) Search(ctx context.Context, query string, limit int) ([]Record, error) {
	return resilience.Value(f.group, func(s Store) ([]Record, error) { return s.Search(ctx, query, limit) })
}

// Ping implements [Store]. It succeeds while at least one side is reachable.
func (f *FailoverStore) Ping(ctx context.Context) error {
	_, err := f.group.Do(func(s Store) error { return s.Ping(ctx) })
	return err
}
