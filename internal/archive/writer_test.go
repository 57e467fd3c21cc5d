package archive_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/livescribe/internal/archive"
	"github.com/MrWong99/livescribe/internal/archive/mock"
	"github.com/MrWong99/livescribe/internal/session"
)

func summary(id string, start time.Time, segs ...string) session.Summary {
	return session.Summary{
		SessionID: id,
		StartedAt: start,
		EndedAt:   start.Add(90 * time.Second),
		Elapsed:   90,
		Segments:  segs,
		Outcome:   session.OutcomeStopped,
	}
}

func TestFromSummary(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := summary("s-1", start, "hello", "world")
	s.Outcome = session.OutcomeErrored
	s.Error = "The connection to the transcription service was lost."

	r := archive.FromSummary(s)
	if r.SessionID != "s-1" || !r.StartedAt.Equal(start) || r.ElapsedSeconds != 90 {
		t.Errorf("record = %+v", r)
	}
	if r.Outcome != "errored" || r.Error == "" {
		t.Errorf("outcome/error = %q / %q", r.Outcome, r.Error)
	}
	if r.SegmentCount != 2 || len(r.Segments) != 2 {
		t.Errorf("segments = %d / %q", r.SegmentCount, r.Segments)
	}
}

func TestWriter_SavesInBackground(t *testing.T) {
	t.Parallel()

	store := mock.New()
	w := archive.NewWriter(store)

	start := time.Now()
	w.Enqueue(summary("a", start, "first"))
	w.Enqueue(summary("b", start.Add(time.Minute), "second", "third"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if store.Len() != 2 {
		t.Fatalf("stored %d records, want 2", store.Len())
	}

	list, err := store.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if list[0].SessionID != "b" || list[0].SegmentCount != 2 {
		t.Errorf("newest record = %+v", list[0])
	}

	got, err := store.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Segments) != 1 || got.Segments[0] != "first" {
		t.Errorf("segments = %q", got.Segments)
	}
}

func TestWriter_SaveErrorIsLoggedNotFatal(t *testing.T) {
	t.Parallel()

	store := mock.New()
	store.SaveErr = errors.New("db down")
	w := archive.NewWriter(store, archive.WithSaveTimeout(time.Second))
	w.Enqueue(summary("a", time.Now()))
	w.Enqueue(summary("b", time.Now()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if store.CallCountSave != 2 {
		t.Errorf("Save calls = %d, want 2", store.CallCountSave)
	}
}

func TestWriter_EnqueueAfterCloseIsDropped(t *testing.T) {
	t.Parallel()

	store := mock.New()
	w := archive.NewWriter(store, archive.WithQueue(1))
	if err := w.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	w.Enqueue(summary("late", time.Now()))
	if err := w.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("stored %d records after Close, want 0", store.Len())
	}
}

func TestMockStore_SearchAndNotFound(t *testing.T) {
	t.Parallel()

	store := mock.New()
	ctx := context.Background()
	_ = store.Save(ctx, archive.FromSummary(summary("a", time.Now(), "deploy the Grafana dashboard")))
	_ = store.Save(ctx, archive.FromSummary(summary("b", time.Now(), "lunch plans")))

	hits, err := store.Search(ctx, "grafana", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].SessionID != "a" {
		t.Errorf("hits = %+v", hits)
	}
	if _, err := store.Get(ctx, "missing"); !errors.Is(err, archive.ErrNotFound) {
		t.Errorf("Get(missing) = %v, want ErrNotFound", err)
	}
}
