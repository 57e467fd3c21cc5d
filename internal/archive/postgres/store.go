package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/livescribe/internal/archive"
)

// Compile-time interface check.
var _ archive.Store = (*Store)(nil)

// Store is the PostgreSQL archive. All operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database at dsn, verifies the connection and runs
// [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("archive store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("archive store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive store: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases all pooled connections.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping implements [archive.Store].
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("archive store: ping: %w", err)
	}
	return nil
}

// Save implements [archive.Store]. The session row and its segments are
// replaced in one transaction.
func (s *Store) Save(ctx context.Context, r archive.Record) error {
	const upsert = `
		INSERT INTO transcription_sessions
		    (session_id, started_at, ended_at, elapsed_seconds, outcome, error)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id) DO UPDATE SET
		    started_at      = EXCLUDED.started_at,
		    ended_at        = EXCLUDED.ended_at,
		    elapsed_seconds = EXCLUDED.elapsed_seconds,
		    outcome         = EXCLUDED.outcome,
		    error           = EXCLUDED.error`

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsert,
			r.SessionID, r.StartedAt, r.EndedAt, r.ElapsedSeconds, r.Outcome, r.Error,
		); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM transcription_segments WHERE session_id = $1`, r.SessionID); err != nil {
			return err
		}
		if len(r.Segments) == 0 {
			return nil
		}

		rows := make([][]any, len(r.Segments))
		for i, text := range r.Segments {
			rows[i] = []any{r.SessionID, i, text}
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"transcription_segments"},
			[]string{"session_id", "seq", "text"},
			pgx.CopyFromRows(rows),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("archive store: save %s: %w", r.SessionID, err)
	}
	return nil
}

// selectSummary selects a session with its segment count.
const selectSummary = `
	SELECT s.session_id, s.started_at, s.ended_at, s.elapsed_seconds, s.outcome, s.error,
	       (SELECT count(*) FROM transcription_segments g WHERE g.session_id = s.session_id)
	FROM   transcription_sessions s`

// List implements [archive.Store].
func (s *Store) List(ctx context.Context, limit int) ([]archive.Record, error) {
	q := selectSummary + "\nORDER  BY s.started_at DESC"
	args := []any{}
	if limit > 0 {
		q += "\nLIMIT  $1"
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("archive store: list: %w", err)
	}
	return collectRecords(rows)
}

// Search implements [archive.Store] using PostgreSQL full-text search over
// the segment text. The query is passed to plainto_tsquery so no operator
// syntax is required.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]archive.Record, error) {
	q := selectSummary + `
	WHERE  EXISTS (
	    SELECT 1 FROM transcription_segments g
	    WHERE  g.session_id = s.session_id
	      AND  to_tsvector('english', g.text) @@ plainto_tsquery('english', $1))
	ORDER  BY s.started_at DESC`
	args := []any{query}
	if limit > 0 {
		q += "\nLIMIT  $2"
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("archive store: search: %w", err)
	}
	return collectRecords(rows)
}

// Get implements [archive.Store].
func (s *Store) Get(ctx context.Context, sessionID string) (archive.Record, error) {
	rows, err := s.pool.Query(ctx, selectSummary+"\nWHERE  s.session_id = $1", sessionID)
	if err != nil {
		return archive.Record{}, fmt.Errorf("archive store: get: %w", err)
	}
	recs, err := collectRecords(rows)
	if err != nil {
		return archive.Record{}, err
	}
	if len(recs) == 0 {
		return archive.Record{}, fmt.Errorf("archive store: get %s: %w", sessionID, archive.ErrNotFound)
	}
	r := recs[0]

	segRows, err := s.pool.Query(ctx,
		`SELECT text FROM transcription_segments WHERE session_id = $1 ORDER BY seq`, sessionID)
	if err != nil {
		return archive.Record{}, fmt.Errorf("archive store: get segments: %w", err)
	}
	r.Segments, err = pgx.CollectRows(segRows, pgx.RowTo[string])
	if err != nil {
		return archive.Record{}, fmt.Errorf("archive store: scan segments: %w", err)
	}
	return r, nil
}

// collectRecords scans rows produced by selectSummary.
func collectRecords(rows pgx.Rows) ([]archive.Record, error) {
	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (archive.Record, error) {
		var (
			r     archive.Record
			count int64
		)
		if err := row.Scan(&r.SessionID, &r.StartedAt, &r.EndedAt, &r.ElapsedSeconds, &r.Outcome, &r.Error, &count); err != nil {
			return archive.Record{}, err
		}
		r.SegmentCount = int(count)
		return r, nil
	})
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("archive store: scan rows: %w", err)
	}
	if recs == nil {
		recs = []archive.Record{}
	}
	return recs, nil
}
