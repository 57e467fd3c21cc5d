package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/MrWong99/livescribe/internal/session"
)

// stopTimeout bounds the final Stop of a headless run after ctx is done.
const stopTimeout = 10 * time.Second

// RunHeadless starts a session immediately and writes every final segment to
// out as it arrives, one per line. It stops the session and returns nil when
// ctx is cancelled, or returns the session error if the session fails.
func (a *App) RunHeadless(ctx context.Context, out io.Writer) error {
	ctrl := a.controller
	if err := ctrl.Start(ctx); err != nil {
		if snap := ctrl.Snapshot(); snap.Err != nil {
			return fmt.Errorf("app: %s: %w", snap.Message(), err)
		}
		return fmt.Errorf("app: start: %w", err)
	}

	printed := 0
	flush := func(snap session.Snapshot) error {
		segs := snap.Transcript.Segments
		if len(segs) < printed {
			printed = 0
		}
		for _, seg := range segs[printed:] {
			if _, err := fmt.Fprintln(out, seg); err != nil {
				return fmt.Errorf("app: write transcript: %w", err)
			}
		}
		printed = len(segs)
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
			defer cancel()
			if err := ctrl.Stop(stopCtx); err != nil && !errors.Is(err, session.ErrNotRecording) {
				return fmt.Errorf("app: stop: %w", err)
			}
			return flush(ctrl.Snapshot())
		case <-ctrl.Changes():
			snap := ctrl.Snapshot()
			if err := flush(snap); err != nil {
				return err
			}
			if snap.State == session.StateErrored {
				return fmt.Errorf("app: %s: %w", snap.Message(), snap.Err)
			}
		}
	}
}
