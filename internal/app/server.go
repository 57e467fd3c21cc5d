package app

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/MrWong99/livescribe/internal/observe"
)

// sessionResponse is the JSON body of GET /api/session.
type sessionResponse struct {
	State          string    `json:"state"`
	SessionID      string    `json:"session_id,omitempty"`
	StartedAt      time.Time `json:"started_at,omitzero"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
	Elapsed        string    `json:"elapsed"`
	Segments       []string  `json:"segments"`
	Partial        string    `json:"partial,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// initStatusServer binds server.status_addr. The listener is opened here so
// that a port conflict fails New instead of surfacing later in Run.
func (a *App) initStatusServer() error {
	addr := a.cfg.Server.StatusAddr
	if addr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	a.health.Register(mux)
	mux.Handle("GET /metrics", observe.MetricsHandler(a.registry))
	mux.HandleFunc("GET /api/session", a.handleSession)

	a.listener = ln
	a.server = &http.Server{
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return nil
}

// Handler returns the status server's HTTP handler, or nil when the status
// server is disabled.
func (a *App) Handler() http.Handler {
	if a.server == nil {
		return nil
	}
	return a.server.Handler
}

func (a *App) handleSession(w http.ResponseWriter, r *http.Request) {
	snap := a.controller.Snapshot()
	segments := snap.Transcript.Segments
	if segments == nil {
		segments = []string{}
	}
	resp := sessionResponse{
		State:          snap.State.String(),
		SessionID:      snap.SessionID,
		StartedAt:      snap.StartedAt,
		ElapsedSeconds: snap.Elapsed,
		Elapsed:        snap.ElapsedDisplay(),
		Segments:       segments,
		Partial:        snap.Transcript.Partial,
		Error:          snap.Message(),
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		observe.Logger(r.Context()).Warn("encode session snapshot", "err", err)
	}
}

// shutdownServer stops the status server and releases its listener, which
// is still open when Run was never called.
func (a *App) shutdownServer(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	if cerr := a.listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
		err = errors.Join(err, cerr)
	}
	return err
}
