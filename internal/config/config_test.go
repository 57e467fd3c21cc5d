package config_test

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/livescribe/internal/config"
)

const validYAML = `
server:
  log_level: debug
  log_file: /tmp/livescribe.log
  status_addr: "127.0.0.1:9090"
backend:
  endpoint: wss://asr.example.com/audio-stream
  connect_timeout: 3s
  send_queue: 32
audio:
  sample_rate: 16000
  frame_size: 512
  device: "hw:1"
  input_format: alsa
  ffmpeg_path: /usr/local/bin/ffmpeg
transcript:
  output_dir: /tmp/transcripts
  vocabulary:
    - Grafana
    - Tower of Whispers
  phonetic_threshold: 0.8
  fuzzy_threshold: 0.9
archive:
  postgres_dsn: "postgres://localhost/livescribe"
  file: /var/lib/livescribe/archive.jsonl
telemetry:
  service_name: livescribe-dev
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("log_level: got %q, want %q", cfg.Server.LogLevel, config.LogDebug)
	}
	if cfg.Server.StatusAddr != "127.0.0.1:9090" {
		t.Errorf("status_addr: got %q", cfg.Server.StatusAddr)
	}
	if cfg.Backend.Endpoint != "wss://asr.example.com/audio-stream" {
		t.Errorf("endpoint: got %q", cfg.Backend.Endpoint)
	}
	if cfg.Backend.ConnectTimeout != 3*time.Second {
		t.Errorf("connect_timeout: got %s, want 3s", cfg.Backend.ConnectTimeout)
	}
	if cfg.Backend.SendQueue != 32 {
		t.Errorf("send_queue: got %d, want 32", cfg.Backend.SendQueue)
	}
	if cfg.Audio.FrameSize != 512 || cfg.Audio.Device != "hw:1" || cfg.Audio.InputFormat != "alsa" {
		t.Errorf("audio: got %+v", cfg.Audio)
	}
	if got := cfg.Audio.FrameDuration(); got != 32*time.Millisecond {
		t.Errorf("FrameDuration: got %s, want 32ms", got)
	}
	if len(cfg.Transcript.Vocabulary) != 2 || cfg.Transcript.Vocabulary[1] != "Tower of Whispers" {
		t.Errorf("vocabulary: got %q", cfg.Transcript.Vocabulary)
	}
	if cfg.Transcript.PhoneticThreshold != 0.8 || cfg.Transcript.FuzzyThreshold != 0.9 {
		t.Errorf("thresholds: got %v / %v", cfg.Transcript.PhoneticThreshold, cfg.Transcript.FuzzyThreshold)
	}
	if cfg.Archive.PostgresDSN != "postgres://localhost/livescribe" {
		t.Errorf("postgres_dsn: got %q", cfg.Archive.PostgresDSN)
	}
	if cfg.Archive.File != "/var/lib/livescribe/archive.jsonl" || !cfg.Archive.Enabled() {
		t.Errorf("archive: got %+v", cfg.Archive)
	}
	if cfg.Telemetry.ServiceName != "livescribe-dev" {
		t.Errorf("service_name: got %q", cfg.Telemetry.ServiceName)
	}
}

func TestLoadFromReader_EmptyGetsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("empty config should be valid, got: %v", err)
	}

	want := config.Default()
	if cfg.Server != want.Server || cfg.Backend != want.Backend || cfg.Audio != want.Audio {
		t.Errorf("defaults differ:\n got %+v\nwant %+v", cfg, want)
	}
	if cfg.Backend.Endpoint != config.DefaultEndpoint {
		t.Errorf("endpoint: got %q, want %q", cfg.Backend.Endpoint, config.DefaultEndpoint)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level: got %q, want info", cfg.Server.LogLevel)
	}
	if cfg.Transcript.OutputDir != "." {
		t.Errorf("output_dir: got %q, want .", cfg.Transcript.OutputDir)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader("backend:\n  endpiont: ws://x\n"))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
	if !strings.Contains(err.Error(), "endpiont") {
		t.Errorf("error should name the unknown field, got: %v", err)
	}
}

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()

	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("%q should be valid", l)
		}
	}
	if config.LogLevel("verbose").IsValid() {
		t.Error(`"verbose" should be invalid`)
	}
}

func TestLogLevel_SlogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   config.LogLevel
		want slog.Level
	}{
		{config.LogDebug, slog.LevelDebug},
		{config.LogInfo, slog.LevelInfo},
		{config.LogWarn, slog.LevelWarn},
		{config.LogError, slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tc := range tests {
		if got := tc.in.SlogLevel(); got != tc.want {
			t.Errorf("%q.SlogLevel() = %v, want %v", tc.in, got, tc.want)
		}
	}
}
