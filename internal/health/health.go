// Package health evaluates the readiness of a livescribe process and serves
// the results over HTTP.
//
// Routes registered by [Handler.Register]:
//
//   - GET /healthz: liveness. Always 200 while the process can serve HTTP.
//   - GET /readyz: readiness. 503 when a required check fails. A failing
//     optional check (the archive) reports "degraded" with 200, because
//     recording keeps working without it.
//
// The same checks back the "livescribe check" command through [Handler.Run].
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout bounds every single check.
const checkTimeout = 5 * time.Second

// Status summarises a [Report].
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusFail     Status = "fail"
)

// Checker is one named probe. Check returns nil when the dependency is usable
// and must honour ctx.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error

	// Optional checks degrade the report instead of failing it.
	Optional bool
}

// EnvironmentCheck adapts a context-free preflight such as
// audio.Source.Check or stream.Dialer.Check.
func EnvironmentCheck(name string, check func() error) Checker {
	return Checker{Name: name, Check: func(context.Context) error { return check() }}
}

// Result is the outcome of one [Checker].
type Result struct {
	Name     string
	Err      error
	Optional bool
	Duration time.Duration
}

// Report holds the results of all checks in registration order.
type Report struct {
	Status  Status
	Results []Result
}

// OK reports whether no required check failed.
func (r Report) OK() bool { return r.Status != StatusFail }

// Handler runs a fixed set of checkers. It is safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New returns a [Handler] for checkers.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// Run evaluates all checkers concurrently, each under its own deadline.
func (h *Handler) Run(ctx context.Context) Report {
	results := make([]Result, len(h.checkers))
	var g errgroup.Group
	for i, c := range h.checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			start := time.Now()
			err := c.Check(cctx)
			results[i] = Result{Name: c.Name, Err: err, Optional: c.Optional, Duration: time.Since(start)}
			return nil
		})
	}
	_ = g.Wait()

	rep := Report{Status: StatusOK, Results: results}
	for _, r := range results {
		switch {
		case r.Err == nil:
		case r.Optional:
			if rep.Status == StatusOK {
				rep.Status = StatusDegraded
			}
		default:
			rep.Status = StatusFail
		}
	}
	return rep
}

type checkJSON struct {
	Status     Status `json:"status"`
	Error      string `json:"error,omitempty"`
	Optional   bool   `json:"optional,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

type reportJSON struct {
	Status Status               `json:"status"`
	Checks map[string]checkJSON `json:"checks,omitempty"`
}

// Healthz answers the liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, reportJSON{Status: StatusOK})
}

// Readyz answers the readiness probe with the full report.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	rep := h.Run(r.Context())

	body := reportJSON{Status: rep.Status, Checks: make(map[string]checkJSON, len(rep.Results))}
	for _, res := range rep.Results {
		c := checkJSON{Status: StatusOK, Optional: res.Optional, DurationMS: res.Duration.Milliseconds()}
		if res.Err != nil {
			c.Status, c.Error = StatusFail, res.Err.Error()
		}
		body.Checks[res.Name] = c
	}

	code := http.StatusOK
	if !rep.OK() {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, body)
}

// Register adds GET /healthz and GET /readyz to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
