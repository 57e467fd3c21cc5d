// Command livescribe records the microphone, streams it to a transcription
// backend and shows the live transcript in the terminal.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrWong99/livescribe/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "livescribe: %v\n", err)
		return 1
	}
	if err := newRootCmd().Execute(); err != nil {
		return 1
	}
	return 0
}

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "livescribe",
		Short:         "Live microphone transcription in the terminal",
		Long:          "livescribe captures the microphone, streams 16 kHz PCM to a WebSocket transcription backend and renders partial and final transcript text as it arrives.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "livescribe.yaml", "path to the YAML configuration file (optional)")

	root.Version = version
	root.SetVersionTemplate("livescribe {{.Version}}\n")

	root.AddCommand(newRecordCmd(opts))
	root.AddCommand(newCheckCmd(opts))
	root.AddCommand(newHistoryCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the livescribe version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "livescribe %s\n", version)
		},
	}
}

// loadConfig resolves the config file and the LIVESCRIBE_* environment.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Resolve(opts.configPath, os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(w io.Writer, level *slog.LevelVar) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// setupLogging installs the default logger. Logs go to stderr, or to path
// when it is not empty. The returned function closes the log file.
func setupLogging(level config.LogLevel, path string) (*slog.LevelVar, func(), error) {
	lv := new(slog.LevelVar)
	lv.Set(level.SlogLevel())

	if path == "" {
		slog.SetDefault(newLogger(os.Stderr, lv))
		return lv, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	slog.SetDefault(newLogger(f, lv))
	return lv, func() { f.Close() }, nil
}
