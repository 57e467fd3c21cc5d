package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/MrWong99/livescribe/internal/app"
	"github.com/MrWong99/livescribe/internal/config"
	"github.com/MrWong99/livescribe/internal/transcript"
	"github.com/MrWong99/livescribe/internal/ui"
)

type recordOptions struct {
	*rootOptions
	endpoint string
	device   string
	save     bool
	noTUI    bool
}

func newRecordCmd(root *rootOptions) *cobra.Command {
	opts := &recordOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record and transcribe the microphone live",
		Long: `Opens the recording screen. Keys: space or r start and stop, c clears the
transcript, s saves it, q quits. With --no-tui recording starts immediately,
final segments are printed to stdout and Ctrl+C stops.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRecord(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.endpoint, "endpoint", "", "transcription backend WebSocket URL (overrides backend.endpoint)")
	cmd.Flags().StringVar(&opts.device, "device", "", "ffmpeg capture device (overrides audio.device)")
	cmd.Flags().BoolVar(&opts.save, "save", false, "save the transcript to transcript.output_dir on exit")
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "print final segments to stdout instead of opening the recording screen")
	return cmd
}

func runRecord(cmd *cobra.Command, opts *recordOptions) error {
	cfg, err := loadConfig(opts.rootOptions)
	if err != nil {
		return err
	}
	if opts.endpoint != "" {
		cfg.Backend.Endpoint = opts.endpoint
	}
	if opts.device != "" {
		cfg.Audio.Device = opts.device
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	// The recording screen owns the terminal, so logs go to the log file.
	logPath := cfg.Server.LogFile
	if opts.noTUI {
		logPath = ""
	}
	level, closeLog, err := setupLogging(cfg.Server.LogLevel, logPath)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, app.WithLevelVar(level), app.WithVersion(version))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return err
	}
	slog.Info("livescribe starting",
		"config", opts.configPath,
		"endpoint", cfg.Backend.Endpoint,
		"status_addr", application.StatusAddr(),
	)

	if watcher := watchConfig(opts.configPath, application); watcher != nil {
		defer watcher.Stop()
		go reloadOnHangup(ctx, watcher)
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	go func() {
		if err := application.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("status server error", "err", err)
		}
	}()

	if opts.noTUI {
		err = application.RunHeadless(ctx, cmd.OutOrStdout())
	} else {
		err = runTUI(ctx, application)
	}
	cancelRun()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if serr := application.Shutdown(shutdownCtx); serr != nil {
		slog.Error("shutdown error", "err", serr)
	}

	if opts.save {
		saveTranscript(cmd, application)
	}
	return err
}

func runTUI(ctx context.Context, application *app.App) error {
	model := ui.New(application.Controller(), ui.WithSaveDirFunc(application.OutputDir))
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("recording screen: %w", err)
	}
	return nil
}

// watchConfig starts hot reload when the config file exists.
func watchConfig(path string, application *app.App) *config.Watcher {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	w, err := config.NewWatcher(path, application.Reload, config.WithLookup(os.LookupEnv))
	if err != nil {
		slog.Warn("config hot reload disabled", "path", path, "err", err)
		return nil
	}
	return w
}

// reloadOnHangup re-reads the config file on SIGHUP without waiting for the
// next poll.
func reloadOnHangup(ctx context.Context, w *config.Watcher) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			changed, err := w.Reload()
			switch {
			case err != nil:
				slog.Warn("config reload on SIGHUP failed, keeping the running config", "err", err)
			case !changed:
				slog.Info("config unchanged on SIGHUP")
			}
		}
	}
}

func saveTranscript(cmd *cobra.Command, application *app.App) {
	text := application.Controller().Aggregator().Text()
	path, err := transcript.WriteFile(application.OutputDir(), time.Now(), text)
	switch {
	case errors.Is(err, transcript.ErrEmptyTranscript):
		fmt.Fprintln(cmd.ErrOrStderr(), "Nothing to save, the transcript is empty.")
	case err != nil:
		fmt.Fprintf(cmd.ErrOrStderr(), "livescribe: %v\n", err)
	default:
		fmt.Fprintf(cmd.ErrOrStderr(), "Transcript saved to %s\n", path)
	}
}
