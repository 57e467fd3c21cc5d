package archive_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/livescribe/internal/archive"
	"github.com/MrWong99/livescribe/internal/archive/mock"
)

func TestFailoverStore_SavesToPrimary(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	primary, journal := mock.New(), mock.New()
	f := archive.NewFailoverStore("postgres", primary, "journal", journal, time.Minute)

	if err := f.Save(ctx, archive.Record{SessionID: "a", Segments: []string{"hi"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if primary.Len() != 1 || journal.Len() != 0 {
		t.Errorf("primary=%d journal=%d, want 1/0", primary.Len(), journal.Len())
	}
}

func TestFailoverStore_FallsBackWhilePrimaryFails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	primary, journal := mock.New(), mock.New()
	primary.SaveErr = errors.New("connection refused")
	primary.PingErr = primary.SaveErr
	f := archive.NewFailoverStore("postgres", primary, "journal", journal, time.Hour)

	for _, id := range []string{"a", "b", "c", "d"} {
		if err := f.Save(ctx, archive.Record{SessionID: id}); err != nil {
			t.Fatalf("Save(%s): %v", id, err)
		}
	}
	if journal.Len() != 4 {
		t.Errorf("journal has %d records, want 4", journal.Len())
	}
	if primary.CallCountSave != 3 {
		t.Errorf("primary saves = %d, want 3 before its breaker opened", primary.CallCountSave)
	}

	// Reads skip the open primary.
	if _, err := f.Get(ctx, "d"); err != nil {
		t.Errorf("Get from journal: %v", err)
	}
	if err := f.Ping(ctx); err != nil {
		t.Errorf("Ping should pass while the journal is reachable: %v", err)
	}
}

func TestFailoverStore_NotFoundIsAnAnswer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	primary, journal := mock.New(), mock.New()
	_ = journal.Save(ctx, archive.Record{SessionID: "only-in-journal"})
	f := archive.NewFailoverStore("postgres", primary, "journal", journal, time.Minute)

	if _, err := f.Get(ctx, "only-in-journal"); !errors.Is(err, archive.ErrNotFound) {
		t.Errorf("Get = %v, want ErrNotFound from the healthy primary", err)
	}
}

func TestFailoverStore_AllFail(t *testing.T) {
	t.Parallel()
	primary, journal := mock.New(), mock.New()
	primary.SaveErr = errors.New("db down")
	journal.SaveErr = errors.New("disk full")
	f := archive.NewFailoverStore("postgres", primary, "journal", journal, time.Minute)

	if err := f.Save(context.Background(), archive.Record{SessionID: "a"}); err == nil {
		t.Fatal("Save should fail when both stores fail")
	}
}
