// Package config provides the configuration schema, loader, and file watcher
// for livescribe.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel maps l to the slog level. Unknown values map to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default values applied by [ApplyDefaults].
const (
	DefaultLogFile           = "livescribe.log"
	DefaultEndpoint          = "ws://localhost:8000/audio-stream"
	DefaultConnectTimeout    = 10 * time.Second
	DefaultSendQueue         = 64
	DefaultSampleRate        = 16000
	DefaultFrameSize         = 1024
	DefaultOutputDir         = "."
	DefaultPhoneticThreshold = 0.70
	DefaultFuzzyThreshold    = 0.85
	DefaultServiceName       = "livescribe"
)

// Config is the root configuration structure for livescribe.
// It is typically loaded from a YAML file using [Load] or [Resolve].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Backend    BackendConfig    `yaml:"backend"`
	Audio      AudioConfig      `yaml:"audio"`
	Transcript TranscriptConfig `yaml:"transcript"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// ServerConfig holds process-level logging and status endpoint settings.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// LogFile receives log output while the terminal UI owns the screen.
	LogFile string `yaml:"log_file"`

	// StatusAddr is the TCP address of the status HTTP server (health,
	// metrics, session snapshot). Empty disables it.
	StatusAddr string `yaml:"status_addr"`
}

// BackendConfig describes the live transcription backend.
type BackendConfig struct {
	// Endpoint is the ws:// or wss:// URL of the streaming endpoint.
	Endpoint string `yaml:"endpoint"`

	// ConnectTimeout bounds the websocket handshake.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// SendQueue is how many PCM frames may wait for the socket before new
	// frames are dropped.
	SendQueue int `yaml:"send_queue"`
}

// AudioConfig describes microphone capture.
type AudioConfig struct {
	// SampleRate must be 16000; the backend accepts nothing else.
	SampleRate int `yaml:"sample_rate"`

	// FrameSize is the number of samples per captured frame.
	FrameSize int `yaml:"frame_size"`

	// Device is the ffmpeg input device. Empty selects the OS default.
	Device string `yaml:"device"`

	// InputFormat is the ffmpeg input format (avfoundation, pulse, alsa,
	// dshow). Empty selects the OS default.
	InputFormat string `yaml:"input_format"`

	// FFmpegPath is the ffmpeg executable. Empty means "ffmpeg" on PATH.
	FFmpegPath string `yaml:"ffmpeg_path"`
}

// FrameDuration returns the capture cadence implied by FrameSize and
// SampleRate.
func (a AudioConfig) FrameDuration() time.Duration {
	if a.SampleRate <= 0 {
		return 0
	}
	return time.Duration(a.FrameSize) * time.Second / time.Duration(a.SampleRate)
}

// TranscriptConfig controls transcript post-processing and export.
type TranscriptConfig struct {
	// OutputDir is where saved transcripts are written.
	OutputDir string `yaml:"output_dir"`

	// Vocabulary lists domain terms that misheard words are corrected to.
	Vocabulary []string `yaml:"vocabulary"`

	// PhoneticThreshold is the minimum score for a phonetic correction.
	PhoneticThreshold float64 `yaml:"phonetic_threshold"`

	// FuzzyThreshold is the minimum score for the fuzzy fallback.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`
}

// ArchiveConfig configures the finished-session archive. With neither field
// set, finished sessions are not archived.
type ArchiveConfig struct {
	// PostgresDSN is the PostgreSQL connection string of the primary archive.
	PostgresDSN string `yaml:"postgres_dsn"`

	// File is a JSON-lines journal. Alone it is the archive; together with
	// PostgresDSN it receives sessions while the database is unreachable.
	File string `yaml:"file"`
}

// Enabled reports whether any archive backend is configured.
func (a ArchiveConfig) Enabled() bool {
	return a.PostgresDSN != "" || a.File != ""
}

// TelemetryConfig configures OpenTelemetry resource attributes.
type TelemetryConfig struct {
	// ServiceName is reported as service.name.
	ServiceName string `yaml:"service_name"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields of cfg with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.LogFile == "" {
		cfg.Server.LogFile = DefaultLogFile
	}
	if cfg.Backend.Endpoint == "" {
		cfg.Backend.Endpoint = DefaultEndpoint
	}
	if cfg.Backend.ConnectTimeout == 0 {
		cfg.Backend.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.Backend.SendQueue == 0 {
		cfg.Backend.SendQueue = DefaultSendQueue
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = DefaultSampleRate
	}
	if cfg.Audio.FrameSize == 0 {
		cfg.Audio.FrameSize = DefaultFrameSize
	}
	if cfg.Transcript.OutputDir == "" {
		cfg.Transcript.OutputDir = DefaultOutputDir
	}
	if cfg.Transcript.PhoneticThreshold == 0 {
		cfg.Transcript.PhoneticThreshold = DefaultPhoneticThreshold
	}
	if cfg.Transcript.FuzzyThreshold == 0 {
		cfg.Transcript.FuzzyThreshold = DefaultFuzzyThreshold
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = DefaultServiceName
	}
}
