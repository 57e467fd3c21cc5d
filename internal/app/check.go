package app

import (
	"context"

	"github.com/MrWong99/livescribe/internal/config"
	"github.com/MrWong99/livescribe/internal/health"
)

// Check runs the environment checks for cfg without starting anything: the
// capture preflight, the backend endpoint and, when configured, a round trip
// to the archive. Unlike [New], a failing check does not abort the others.
func Check(ctx context.Context, cfg *config.Config, opts ...Option) health.Report {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	a.initMedia()

	checks := []health.Checker{
		health.EnvironmentCheck("capture", a.source.Check),
		health.EnvironmentCheck("backend", a.dialer.Check),
	}
	switch {
	case a.store != nil:
		checks = append(checks, health.Checker{Name: "archive", Check: a.store.Ping, Optional: true})
	case cfg.Archive.Enabled():
		checks = append(checks, health.Checker{Name: "archive", Optional: true, Check: func(ctx context.Context) error {
			store, closeStore, err := OpenArchive(ctx, cfg.Archive)
			if err != nil {
				return err
			}
			defer closeStore()
			return store.Ping(ctx)
		}})
	}
	return health.New(checks...).Run(ctx)
}
