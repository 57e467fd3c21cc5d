package transcript_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrWong99/livescribe/internal/transcript"
)

func TestFileName(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 10, 19, 23, 30, 0, 0, time.FixedZone("UTC-2", -2*3600))
	// 23:30 at UTC-2 is already the next day in UTC.
	if got, want := transcript.FileName(ts), "transcription-2026-10-20.txt"; got != want {
		t.Errorf("FileName() = %q, want %q", got, want)
	}
}

func TestWriteFile(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "out")
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	path, err := transcript.WriteFile(dir, now, "hello world\nsecond")
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if want := filepath.Join(dir, "transcription-2026-10-19.txt"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "hello world\nsecond" {
		t.Errorf("file content = %q", data)
	}
}

func TestWriteFile_BlankWritesNothing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, text := range []string{"", "   ", "\n\n"} {
		path, err := transcript.WriteFile(dir, time.Now(), text)
		if !errors.Is(err, transcript.ErrEmptyTranscript) {
			t.Errorf("WriteFile(%q) error = %v, want ErrEmptyTranscript", text, err)
		}
		if path != "" {
			t.Errorf("WriteFile(%q) path = %q, want empty", text, path)
		}
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("dir has %d entries, want 0", len(entries))
	}
}
