package transcript

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrEmptyTranscript is returned by [WriteFile] when there is nothing to save.
var ErrEmptyTranscript = errors.New("transcript: transcript is empty")

// FileName returns the download name for a transcript saved at t, e.g.
// "transcription-2026-10-19.txt". The date is taken in UTC.
func FileName(t time.Time) string {
	return "transcription-" + t.UTC().Format(time.DateOnly) + ".txt"
}

// WriteFile saves text to dir/FileName(now) and returns the path written.
// A blank transcript writes nothing and returns [ErrEmptyTranscript]. An
// existing file for the same day is overwritten.
func WriteFile(dir string, now time.Time, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyTranscript
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("transcript: create %s: %w", dir, err)
	}
	path := filepath.Join(dir, FileName(now))
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("transcript: write %s: %w", path, err)
	}
	return path, nil
}
