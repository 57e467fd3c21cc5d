// Package postgres provides a PostgreSQL-backed [archive.Store].
//
// Sessions live in transcription_sessions; their final segments live in
// transcription_segments with a GIN full-text index for [Store.Search].
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//	_ = store.Save(ctx, record)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlSessions = `
CREATE TABLE IF NOT EXISTS transcription_sessions (
    session_id       TEXT         PRIMARY KEY,
    started_at       TIMESTAMPTZ  NOT NULL,
    ended_at         TIMESTAMPTZ  NOT NULL,
    elapsed_seconds  INTEGER      NOT NULL DEFAULT 0,
    outcome          TEXT         NOT NULL,
    error            TEXT         NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_transcription_sessions_started_at
    ON transcription_sessions (started_at DESC);
`

const ddlSegments = `
CREATE TABLE IF NOT EXISTS transcription_segments (
    session_id  TEXT     NOT NULL REFERENCES transcription_sessions (session_id) ON DELETE CASCADE,
    seq         INTEGER  NOT NULL,
    text        TEXT     NOT NULL,
    PRIMARY KEY (session_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_transcription_segments_fts
    ON transcription_segments USING GIN (to_tsvector('english', text));
`

// Migrate creates the archive tables and indexes. It is idempotent and safe
// to call on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{ddlSessions, ddlSegments} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
