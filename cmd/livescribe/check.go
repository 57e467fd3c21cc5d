package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/MrWong99/livescribe/internal/app"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065")).Bold(true)
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("160")).Bold(true)
)

// errChecksFailed makes the command exit non-zero after printing the report.
var errChecksFailed = errors.New("some checks failed")

func newCheckCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that recording can work in this environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			report := app.Check(cmd.Context(), cfg)
			for _, r := range report.Results {
				switch {
				case r.Err == nil:
					fmt.Fprintf(out, "%s %-8s ok (%s)\n", okStyle.Render("✓"), r.Name, r.Duration.Round(time.Millisecond))
				case r.Optional:
					fmt.Fprintf(out, "%s %-8s %v (recording still works)\n", warnStyle.Render("!"), r.Name, r.Err)
				default:
					fmt.Fprintf(out, "%s %-8s %v\n", failStyle.Render("✗"), r.Name, r.Err)
				}
			}
			if !cfg.Archive.Enabled() {
				fmt.Fprintf(out, "- %-8s disabled (set archive.postgres_dsn or archive.file)\n", "archive")
			}
			fmt.Fprintf(out, "  endpoint %s\n", cfg.Backend.Endpoint)

			if !report.OK() {
				return errChecksFailed
			}
			fmt.Fprintln(out, okStyle.Render("Ready to record."))
			return nil
		},
	}
}
