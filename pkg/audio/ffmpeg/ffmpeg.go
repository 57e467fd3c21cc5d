// Package ffmpeg provides an [audio.Source] that captures the microphone by
// running an ffmpeg subprocess and reading raw float32 samples from its stdout.
//
// ffmpeg performs device access, resampling to 16 kHz and down-mixing to mono,
// so the Go side only slices the byte stream into fixed-size frames:
//
//	ffmpeg -hide_banner -loglevel error -f <format> -i <device> -ac 1 -ar 16000 -f f32le -
//
// The device's own permission prompt (e.g. macOS microphone access) happens
// inside ffmpeg. A refusal makes ffmpeg exit before producing audio, which
// [Source.Open] reports as [audio.ErrPermissionDenied].
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/livescribe/pkg/audio"
)

const (
	defaultBinary = "ffmpeg"
	defaultBuffer = 16
	stderrTail    = 4096
	waitDelay     = 2 * time.Second
)

// Option is a functional option for configuring a [Source].
type Option func(*Source)

// WithBinary sets the ffmpeg executable name or path. Default: "ffmpeg".
func WithBinary(path string) Option {
	return func(s *Source) {
		if path != "" {
			s.binary = path
		}
	}
}

// WithInputFormat sets the ffmpeg input device format (the -f flag before -i),
// e.g. "avfoundation", "pulse", "alsa" or "dshow". Default depends on the OS.
func WithInputFormat(format string) Option {
	return func(s *Source) {
		if format != "" {
			s.format = format
		}
	}
}

// WithDevice sets the ffmpeg input device (the -i argument). Default depends
// on the OS.
func WithDevice(device string) Option {
	return func(s *Source) {
		if device != "" {
			s.device = device
		}
	}
}

// WithFrameSize sets the number of samples per frame. Default:
// [audio.DefaultFrameSize].
func WithFrameSize(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.frameSize = n
		}
	}
}

// WithBuffer sets how many frames may queue for a slow consumer before new
// frames are dropped. Default: 16.
func WithBuffer(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.buffer = n
		}
	}
}

// Source implements [audio.Source] on top of an ffmpeg subprocess. It is safe
// for concurrent use; every Open starts an independent process.
type Source struct {
	binary    string
	format    string
	device    string
	frameSize int
	buffer    int

	// command builds the subprocess. Replaced in tests.
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// New returns a Source configured with the supplied options.
func New(opts ...Option) *Source {
	format, device := platformDefaults(runtime.GOOS)
	s := &Source{
		binary:    defaultBinary,
		format:    format,
		device:    device,
		frameSize: audio.DefaultFrameSize,
		buffer:    defaultBuffer,
		command:   exec.CommandContext,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// platformDefaults returns the input format and default device for goos.
func platformDefaults(goos string) (format, device string) {
	switch goos {
	case "darwin":
		return "avfoundation", ":default"
	case "windows":
		return "dshow", "audio=default"
	default:
		return "pulse", "default"
	}
}

// Check implements [audio.Source]. It fails when the ffmpeg binary cannot be
// located.
func (s *Source) Check() error {
	if _, err := exec.LookPath(s.binary); err != nil {
		return fmt.Errorf("ffmpeg: %q not found (install ffmpeg to capture audio): %w", s.binary, audio.ErrUnsupportedEnvironment)
	}
	return nil
}

// Args returns the ffmpeg command line (without the binary) used by Open.
func (s *Source) Args() []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", s.format,
		"-i", s.device,
		"-ac", strconv.Itoa(audio.Channels),
		"-ar", strconv.Itoa(audio.SampleRate),
		"-f", "f32le",
		"-",
	}
}

// Open implements [audio.Source]. It starts ffmpeg and waits until the first
// full frame has been captured, ffmpeg exits, or ctx is done. ctx only bounds
// the start-up; the returned stream lives until Close.
func (s *Source) Open(ctx context.Context) (audio.Stream, error) {
	procCtx, cancel := context.WithCancel(context.Background())
	cmd := s.command(procCtx, s.binary, s.Args()...)
	cmd.WaitDelay = waitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg: stdout pipe: %w", err)
	}
	stderr := &tailWriter{max: stderrTail}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		cancel()
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("ffmpeg: start: %w", audio.ErrUnsupportedEnvironment)
		}
		return nil, fmt.Errorf("ffmpeg: start: %w: %v", audio.ErrDeviceUnavailable, err)
	}

	st := &stream{
		cmd:     cmd,
		cancel:  cancel,
		stderr:  stderr,
		frames:  make(chan audio.AudioFrame, s.buffer),
		started: make(chan error, 1),
		done:    make(chan struct{}),
	}
	go st.readLoop(stdout, s.frameSize)

	select {
	case err := <-st.started:
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		slog.Debug("ffmpeg capture started", "format", s.format, "device", s.device, "frame_size", s.frameSize)
		return st, nil
	case <-ctx.Done():
		_ = st.Close()
		return nil, ctx.Err()
	}
}

// ---- stream ----

// stream is one running ffmpeg capture. It implements audio.Stream.
type stream struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	stderr *tailWriter

	frames  chan audio.AudioFrame
	started chan error
	done    chan struct{}

	closing   atomic.Bool
	closeOnce sync.Once
	dropped   atomic.Uint64

	mu  sync.Mutex
	err error
}

func (s *stream) Frames() <-chan audio.AudioFrame { return s.frames }

func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops ffmpeg and waits for the reader to finish.
func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		s.cancel()
		<-s.done
		if n := s.dropped.Load(); n > 0 {
			slog.Warn("ffmpeg capture dropped frames for a slow consumer", "dropped", n)
		}
	})
	return nil
}

// readLoop slices stdout into frames until ffmpeg exits. It owns cmd.Wait.
func (s *stream) readLoop(r io.Reader, frameSize int) {
	defer close(s.done)
	defer close(s.frames)

	buf := make([]byte, frameSize*4)
	frameDur := audio.FrameDuration(frameSize)
	var seq uint64
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			waitErr := s.cmd.Wait()
			if s.closing.Load() {
				if seq == 0 {
					s.started <- context.Canceled
				}
				return
			}
			failure := classify(s.stderr.String(), errors.Join(err, waitErr))
			if seq == 0 {
				s.started <- failure
				return
			}
			slog.Warn("ffmpeg capture ended unexpectedly", "err", failure)
			s.mu.Lock()
			s.err = failure
			s.mu.Unlock()
			return
		}

		frame := audio.AudioFrame{
			Samples:    audio.DecodeFloat32LE(nil, buf),
			SampleRate: audio.SampleRate,
			Seq:        seq,
			Timestamp:  time.Duration(seq) * frameDur,
		}
		if seq == 0 {
			s.started <- nil
		}
		seq++

		select {
		case s.frames <- frame:
		default:
			s.dropped.Add(1)
		}
	}
}

// permissionMarkers are lower-case stderr fragments ffmpeg emits when the OS
// refuses microphone access.
var permissionMarkers = []string{
	"permission denied",
	"not authorized",
	"not permitted",
	"access denied",
	"access is denied",
}

// classify maps an ffmpeg failure to the audio error taxonomy using its stderr.
func classify(stderr string, cause error) error {
	lower := strings.ToLower(stderr)
	detail := lastLine(stderr)
	if detail == "" && cause != nil {
		detail = cause.Error()
	}
	for _, m := range permissionMarkers {
		if strings.Contains(lower, m) {
			return fmt.Errorf("ffmpeg: %w: %s", audio.ErrPermissionDenied, detail)
		}
	}
	return fmt.Errorf("ffmpeg: %w: %s", audio.ErrDeviceUnavailable, detail)
}

// lastLine returns the last non-empty line of s.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}

// tailWriter keeps the last max bytes written to it.
type tailWriter struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	if over := len(w.buf) - w.max; over > 0 {
		w.buf = append(w.buf[:0], w.buf[over:]...)
	}
	return len(p), nil
}

func (w *tailWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return string(w.buf)
}
