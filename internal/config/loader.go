package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvEndpoint    = "LIVESCRIBE_ENDPOINT"
	EnvLogLevel    = "LIVESCRIBE_LOG_LEVEL"
	EnvPostgresDSN = "LIVESCRIBE_POSTGRES_DSN"
	EnvDevice      = "LIVESCRIBE_DEVICE"
	EnvStatusAddr  = "LIVESCRIBE_STATUS_ADDR"
	EnvOutputDir   = "LIVESCRIBE_OUTPUT_DIR"
)

// Frame cadence bounds accepted by [Validate].
const (
	minFrameDuration = 20 * time.Millisecond
	maxFrameDuration = time.Second
)

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	return parse(r, nil)
}

// Resolve builds the effective configuration: the file at path (optional: a
// missing file or empty path yields defaults), then environment overrides
// from lookup, then defaults and validation.
func Resolve(path string, lookup LookupFunc) (*Config, error) {
	if path == "" {
		return parse(bytes.NewReader(nil), lookup)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("config file not found, using defaults", "path", path)
		return parse(bytes.NewReader(nil), lookup)
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	cfg, err := parse(bytes.NewReader(data), lookup)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadEnvFile loads KEY=value pairs from a dotenv file into the process
// environment without overriding variables that are already set. A missing
// file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: load env file %q: %w", path, err)
	}
	return nil
}

func parse(r io.Reader, lookup LookupFunc) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if lookup != nil {
		ApplyEnv(cfg, lookup)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg fields with the LIVESCRIBE_* environment variables
// that are set and non-empty.
func ApplyEnv(cfg *Config, lookup LookupFunc) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(EnvEndpoint, &cfg.Backend.Endpoint)
	set(EnvPostgresDSN, &cfg.Archive.PostgresDSN)
	set(EnvDevice, &cfg.Audio.Device)
	set(EnvStatusAddr, &cfg.Server.StatusAddr)
	set(EnvOutputDir, &cfg.Transcript.OutputDir)

	var level string
	set(EnvLogLevel, &level)
	if level != "" {
		cfg.Server.LogLevel = LogLevel(strings.ToLower(level))
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if addr := cfg.Server.StatusAddr; addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			errs = append(errs, fmt.Errorf("server.status_addr %q is invalid: %w", addr, err))
		}
	}

	// Backend
	if err := validateEndpoint(cfg.Backend.Endpoint); err != nil {
		errs = append(errs, err)
	}
	if cfg.Backend.ConnectTimeout < 0 {
		errs = append(errs, fmt.Errorf("backend.connect_timeout %s must be positive", cfg.Backend.ConnectTimeout))
	}
	if cfg.Backend.SendQueue < 0 {
		errs = append(errs, fmt.Errorf("backend.send_queue %d must be positive", cfg.Backend.SendQueue))
	}

	// Audio
	if cfg.Audio.SampleRate != DefaultSampleRate {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is unsupported; the backend requires %d", cfg.Audio.SampleRate, DefaultSampleRate))
	} else if d := cfg.Audio.FrameDuration(); d < minFrameDuration || d > maxFrameDuration {
		errs = append(errs, fmt.Errorf("audio.frame_size %d gives a %s frame; must be between %s and %s",
			cfg.Audio.FrameSize, d, minFrameDuration, maxFrameDuration))
	}

	// Transcript
	if t := cfg.Transcript.PhoneticThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("transcript.phonetic_threshold %.2f is out of range [0, 1]", t))
	}
	if t := cfg.Transcript.FuzzyThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("transcript.fuzzy_threshold %.2f is out of range [0, 1]", t))
	}
	for i, term := range cfg.Transcript.Vocabulary {
		if strings.TrimSpace(term) == "" {
			errs = append(errs, fmt.Errorf("transcript.vocabulary[%d] is blank", i))
		}
	}

	// Archive
	if !cfg.Archive.Enabled() {
		slog.Debug("no archive configured; finished sessions will not be archived")
	}

	return errors.Join(errs...)
}

func validateEndpoint(endpoint string) error {
	if endpoint == "" {
		return nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("backend.endpoint %q is invalid: %w", endpoint, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("backend.endpoint %q must use the ws or wss scheme", endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("backend.endpoint %q has no host", endpoint)
	}
	return nil
}
