// Package app wires the livescribe subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves the optional status endpoints until the context is
// cancelled, and Shutdown tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithSource, WithDialer, WithArchiveStore). When an option is not
// provided, New creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	"github.com/MrWong99/livescribe/internal/archive"
	"github.com/MrWong99/livescribe/internal/config"
	"github.com/MrWong99/livescribe/internal/health"
	"github.com/MrWong99/livescribe/internal/observe"
	"github.com/MrWong99/livescribe/internal/session"
	"github.com/MrWong99/livescribe/internal/transcript"
	"github.com/MrWong99/livescribe/internal/transcript/phonetic"
	"github.com/MrWong99/livescribe/pkg/audio"
	"github.com/MrWong99/livescribe/pkg/audio/ffmpeg"
	"github.com/MrWong99/livescribe/pkg/stream"
	"github.com/MrWong99/livescribe/pkg/stream/wsstream"
)

// App owns all subsystem lifetimes of one livescribe process.
type App struct {
	cfg     *config.Config
	version string

	// Subsystems, initialised in New and torn down in Shutdown.
	level      *slog.LevelVar
	registry   *prometheus.Registry
	metrics    *observe.Metrics
	source     audio.Source
	dialer     stream.Dialer
	corrector  *transcript.VocabularyCorrector
	aggregator *transcript.Aggregator
	controller *session.Controller
	store      archive.Store
	writer     *archive.Writer
	health     *health.Handler
	server     *http.Server
	listener   net.Listener
	outputDir  atomic.Pointer[string]

	onSessionEnd func(session.Summary)

	// closers release the archive store and telemetry. They are called in
	// reverse order during Shutdown, after the controller, the writer and the
	// status server stopped.
	closers []func(context.Context) error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithSource injects a capture source instead of the ffmpeg one.
func WithSource(s audio.Source) Option {
	return func(a *App) { a.source = s }
}

// WithDialer injects a backend dialer instead of the WebSocket one.
func WithDialer(d stream.Dialer) Option {
	return func(a *App) { a.dialer = d }
}

// WithArchiveStore injects an archive store instead of opening the one
// configured under archive.
func WithArchiveStore(s archive.Store) Option {
	return func(a *App) { a.store = s }
}

// WithLevelVar lets [App.Reload] adjust the level of the process
// logger.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// WithVersion sets the version reported in telemetry.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// WithSessionEndHook registers fn to run after a finished session has been
// queued for archiving. It runs on the controller goroutine and must not
// block.
func WithSessionEndHook(fn func(session.Summary)) Option {
	return func(a *App) { a.onSessionEnd = fn }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. Capture and backend
// preflight checks run here, so an unsupported environment fails before
// anything is recorded.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	a.outputDir.Store(&cfg.Transcript.OutputDir)

	// ── 1. Telemetry ────────────────────────────────────────────────────
	if err := a.initTelemetry(ctx); err != nil {
		return nil, a.abort(fmt.Errorf("app: init telemetry: %w", err))
	}

	// ── 2. Capture + transport ──────────────────────────────────────────
	a.initMedia()

	// ── 3. Transcript ───────────────────────────────────────────────────
	a.corrector = transcript.NewVocabularyCorrector(newMatcher(cfg), cfg.Transcript.Vocabulary)
	a.aggregator = transcript.New(transcript.WithCorrector(a.corrector))

	// ── 4. Archive ──────────────────────────────────────────────────────
	if err := a.initArchive(ctx); err != nil {
		return nil, a.abort(fmt.Errorf("app: init archive: %w", err))
	}

	// ── 5. Session controller ───────────────────────────────────────────
	ctrl, err := session.New(session.Config{
		Source:       a.source,
		Dialer:       a.dialer,
		Aggregator:   a.aggregator,
		Metrics:      a.metrics,
		OnSessionEnd: a.sessionEnded,
	})
	if err != nil {
		return nil, a.abort(fmt.Errorf("app: %w", err))
	}
	a.controller = ctrl

	// ── 6. Health + status server ───────────────────────────────────────
	a.health = health.New(a.checkers()...)
	if err := a.initStatusServer(); err != nil {
		return nil, a.abort(fmt.Errorf("app: init status server: %w", err))
	}

	return a, nil
}

// abort releases what New already created and returns err.
func (a *App) abort(err error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.Shutdown(ctx)
	return err
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initTelemetry sets up the OTel providers with a private Prometheus
// registry and creates the instruments.
func (a *App) initTelemetry(ctx context.Context) error {
	a.registry = prometheus.NewRegistry()
	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    a.cfg.Telemetry.ServiceName,
		ServiceVersion: a.version,
		Registry:       a.registry,
	})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, shutdown)

	m, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return err
	}
	a.metrics = m
	return nil
}

// initMedia creates the ffmpeg capture source and the WebSocket dialer
// unless test doubles were injected.
func (a *App) initMedia() {
	if a.source == nil {
		a.source = ffmpeg.New(
			ffmpeg.WithBinary(a.cfg.Audio.FFmpegPath),
			ffmpeg.WithInputFormat(a.cfg.Audio.InputFormat),
			ffmpeg.WithDevice(a.cfg.Audio.Device),
			ffmpeg.WithFrameSize(a.cfg.Audio.FrameSize),
		)
	}
	if a.dialer == nil {
		a.dialer = wsstream.NewDialer(a.cfg.Backend.Endpoint,
			wsstream.WithConnectTimeout(a.cfg.Backend.ConnectTimeout),
			wsstream.WithSendQueue(a.cfg.Backend.SendQueue),
		)
	}
}

// initArchive opens the configured archive and starts the background writer
// for finished sessions.
func (a *App) initArchive(ctx context.Context) error {
	if a.store == nil {
		store, closeStore, err := OpenArchive(ctx, a.cfg.Archive)
		if err != nil {
			return err
		}
		a.store = store
		a.closers = append(a.closers, func(context.Context) error {
			closeStore()
			return nil
		})
	}
	if a.store == nil {
		slog.Info("archive disabled, finished sessions are not persisted")
		return nil
	}

	a.writer = archive.NewWriter(a.store)
	return nil
}

// checkers returns the readiness checks served on /readyz and printed by
// "livescribe check".
func (a *App) checkers() []health.Checker {
	checks := []health.Checker{
		health.EnvironmentCheck("capture", a.source.Check),
		health.EnvironmentCheck("backend", a.dialer.Check),
		{Name: "session", Check: func(context.Context) error {
			if snap := a.controller.Snapshot(); snap.State == session.StateErrored {
				return errors.New(snap.Message())
			}
			return nil
		}},
	}
	if a.store != nil {
		checks = append(checks, health.Checker{Name: "archive", Check: a.store.Ping, Optional: true})
	}
	return checks
}

// sessionEnded queues the summary for archiving and runs the session end
// hook.
func (a *App) sessionEnded(s session.Summary) {
	slog.Info("session ended",
		"session_id", s.SessionID,
		"outcome", s.Outcome,
		"elapsed", session.FormatElapsed(s.Elapsed),
		"segments", len(s.Segments),
	)
	if a.writer != nil {
		a.writer.Enqueue(s)
	}
	if a.onSessionEnd != nil {
		a.onSessionEnd(s)
	}
}

func newMatcher(cfg *config.Config) *phonetic.Matcher {
	return phonetic.New(
		phonetic.WithPhoneticThreshold(cfg.Transcript.PhoneticThreshold),
		phonetic.WithFuzzyThreshold(cfg.Transcript.FuzzyThreshold),
	)
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Controller returns the session controller.
func (a *App) Controller() *session.Controller { return a.controller }

// Health returns the readiness checks.
func (a *App) Health() *health.Handler { return a.health }

// Archive returns the archive store, or nil when archiving is disabled.
func (a *App) Archive() archive.Store { return a.store }

// OutputDir returns the directory transcripts are saved to. It follows
// configuration reloads.
func (a *App) OutputDir() string { return *a.outputDir.Load() }

// StatusAddr returns the address the status server listens on, or "" when
// it is disabled.
func (a *App) StatusAddr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves the status endpoints, if configured, and blocks until ctx is
// cancelled. It returns ctx.Err(), or the server error if serving failed.
func (a *App) Run(ctx context.Context) error {
	if a.server == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("status server listening", "addr", a.StatusAddr())
		errCh <- a.server.Serve(a.listener)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return ctx.Err()
		}
		return fmt.Errorf("app: status server: %w", err)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems. The session controller stops first so
// the summary of a running session still reaches the archive writer, which
// drains before the store closes. Shutdown respects the context deadline: if
// ctx expires before all closers finish, remaining closers are skipped and the
// context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		var closers []func(context.Context) error
		if a.controller != nil {
			closers = append(closers, a.controller.Close)
		}
		if a.writer != nil {
			closers = append(closers, a.writer.Close)
		}
		if a.server != nil {
			closers = append(closers, a.shutdownServer)
		}
		for i := len(a.closers) - 1; i >= 0; i-- {
			closers = append(closers, a.closers[i])
		}
		slog.Info("shutting down", "closers", len(closers))

		for i, closer := range closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(ctx); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
