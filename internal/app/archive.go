package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrWong99/livescribe/internal/archive"
	"github.com/MrWong99/livescribe/internal/archive/jsonl"
	"github.com/MrWong99/livescribe/internal/archive/postgres"
	"github.com/MrWong99/livescribe/internal/config"
)

// archiveRetry is how long an unreachable archive database is skipped
// before it is probed again.
const archiveRetry = time.Minute

// OpenArchive builds the archive configured in cfg and a function releasing
// it. It returns a nil store when no archive is configured.
//
// With both a DSN and a journal file, sessions go to PostgreSQL and fall back
// to the journal while the database fails. A database that cannot be reached
// at start-up leaves the journal as the only store.
func OpenArchive(ctx context.Context, cfg config.ArchiveConfig) (archive.Store, func(), error) {
	noop := func() {}

	var journal archive.Store
	if cfg.File != "" {
		journal = jsonl.New(cfg.File)
	}
	if cfg.PostgresDSN == "" {
		if journal == nil {
			return nil, noop, nil
		}
		return journal, noop, nil
	}

	pg, err := postgres.NewStore(ctx, cfg.PostgresDSN)
	if err != nil {
		if journal == nil {
			return nil, noop, err
		}
		slog.Warn("archive database unreachable, using the journal only", "file", cfg.File, "err", err)
		return journal, noop, nil
	}
	if journal == nil {
		return pg, pg.Close, nil
	}
	return archive.NewFailoverStore("postgres", pg, "journal", journal, archiveRetry), pg.Close, nil
}
