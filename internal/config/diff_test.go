package config_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/livescribe/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()

	d := config.Diff(config.Default(), config.Default())
	if d.HotChanges() {
		t.Errorf("expected no hot changes, got %+v", d)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("expected no restart-only changes, got %v", d.RestartRequired)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()

	old, new := config.Default(), config.Default()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("got %+v, want log level change to debug", d)
	}
	if !d.HotChanges() {
		t.Error("log level change should be hot")
	}
}

func TestDiff_Vocabulary(t *testing.T) {
	t.Parallel()

	old, new := config.Default(), config.Default()
	old.Transcript.Vocabulary = []string{"Grafana"}
	new.Transcript.Vocabulary = []string{"Grafana", "Kubernetes"}

	d := config.Diff(old, new)
	if !d.VocabularyChanged {
		t.Fatal("expected vocabulary change")
	}
	if !slices.Equal(d.NewVocabulary, new.Transcript.Vocabulary) {
		t.Errorf("NewVocabulary = %q", d.NewVocabulary)
	}
	new.Transcript.Vocabulary[0] = "mutated"
	if d.NewVocabulary[0] != "Grafana" {
		t.Error("NewVocabulary must not alias the config slice")
	}
}

func TestDiff_ThresholdsAndOutputDir(t *testing.T) {
	t.Parallel()

	old, new := config.Default(), config.Default()
	new.Transcript.FuzzyThreshold = 0.9
	new.Transcript.OutputDir = "/srv/transcripts"

	d := config.Diff(old, new)
	if !d.ThresholdsChanged {
		t.Error("expected thresholds change")
	}
	if !d.OutputDirChanged || d.NewOutputDir != "/srv/transcripts" {
		t.Errorf("output dir diff = %+v", d)
	}
	if d.VocabularyChanged || d.LogLevelChanged {
		t.Errorf("unexpected changes: %+v", d)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()

	old, new := config.Default(), config.Default()
	new.Backend.Endpoint = "wss://elsewhere/audio-stream"
	new.Audio.Device = "hw:2"
	new.Archive.PostgresDSN = "postgres://db"

	d := config.Diff(old, new)
	want := []string{"backend", "audio", "archive"}
	if !slices.Equal(d.RestartRequired, want) {
		t.Errorf("RestartRequired = %v, want %v", d.RestartRequired, want)
	}
	if d.HotChanges() {
		t.Errorf("restart-only changes must not be hot: %+v", d)
	}
}
