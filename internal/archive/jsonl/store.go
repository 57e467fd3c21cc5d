// Package jsonl is a file-backed [archive.Store] that appends one JSON object
// per saved session to a local journal. It needs no database, which makes it
// the archive for single-user setups and the fallback while PostgreSQL is
// unreachable.
//
// Reads scan the whole file. A session saved twice is represented by its last
// line.
package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/livescribe/internal/archive"
)

// Compile-time interface check.
var _ archive.Store = (*Store)(nil)

// line is the on-disk form of one record.
type line struct {
	SessionID      string    `json:"session_id"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
	Outcome        string    `json:"outcome"`
	Error          string    `json:"error,omitempty"`
	Segments       []string  `json:"segments"`
}

// Store persists records as JSON lines in a single file.
// Thread-safe for concurrent use within one process.
type Store struct {
	mu   sync.Mutex
	path string
}

// New returns a Store writing to path. The file and its directory are created
// on the first Save.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the journal file.
func (s *Store) Path() string { return s.path }

// Save appends r to the journal.
func (s *Store) Save(_ context.Context, r archive.Record) error {
	data, err := json.Marshal(line{
		SessionID:      r.SessionID,
		StartedAt:      r.StartedAt.UTC(),
		EndedAt:        r.EndedAt.UTC(),
		ElapsedSeconds: r.ElapsedSeconds,
		Outcome:        r.Outcome,
		Error:          r.Error,
		Segments:       r.Segments,
	})
	if err != nil {
		return fmt.Errorf("jsonl: marshal: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("jsonl: create dir: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("jsonl: open file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("jsonl: write: %w", err)
	}
	return nil
}

// List returns up to limit records, most recently started first.
func (s *Store) List(_ context.Context, limit int) ([]archive.Record, error) {
	return s.query(limit, func(archive.Record) bool { return true })
}

// Search returns records that contain every word of query in one of their
// segments, ignoring case.
func (s *Store) Search(_ context.Context, query string, limit int) ([]archive.Record, error) {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return nil, nil
	}
	return s.query(limit, func(r archive.Record) bool {
		return slices.ContainsFunc(r.Segments, func(seg string) bool {
			seg = strings.ToLower(seg)
			for _, w := range words {
				if !strings.Contains(seg, w) {
					return false
				}
			}
			return true
		})
	})
}

// Get returns the last saved version of the session, with its segments.
func (s *Store) Get(_ context.Context, sessionID string) (archive.Record, error) {
	records, err := s.load()
	if err != nil {
		return archive.Record{}, err
	}
	r, ok := records[sessionID]
	if !ok {
		return archive.Record{}, archive.ErrNotFound
	}
	return r, nil
}

// Ping checks that the journal's directory exists or can be created and
// that the file, if present, is a regular file.
func (s *Store) Ping(context.Context) error {
	info, err := os.Stat(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return os.MkdirAll(filepath.Dir(s.path), 0o755)
	case err != nil:
		return fmt.Errorf("jsonl: %w", err)
	case !info.Mode().IsRegular():
		return fmt.Errorf("jsonl: %s is not a regular file", s.path)
	}
	return nil
}

func (s *Store) query(limit int, keep func(archive.Record) bool) ([]archive.Record, error) {
	records, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]archive.Record, 0, len(records))
	for _, r := range records {
		if keep(r) {
			r.Segments = nil
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b archive.Record) int { return b.StartedAt.Compare(a.StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// load reads the journal into a map keyed by session id. A missing file is
// an empty archive. Lines that fail to decode are skipped.
func (s *Store) load() (map[string]archive.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]archive.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("jsonl: open file: %w", err)
	}
	defer f.Close()

	records := make(map[string]archive.Record)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		var l line
		if err := json.Unmarshal(sc.Bytes(), &l); err != nil || l.SessionID == "" {
			continue
		}
		records[l.SessionID] = archive.Record{
			SessionID:      l.SessionID,
			StartedAt:      l.StartedAt,
			EndedAt:        l.EndedAt,
			ElapsedSeconds: l.ElapsedSeconds,
			Outcome:        l.Outcome,
			Error:          l.Error,
			SegmentCount:   len(l.Segments),
			Segments:       l.Segments,
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("jsonl: read: %w", err)
	}
	return records, nil
}
