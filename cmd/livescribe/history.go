package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/MrWong99/livescribe/internal/app"
	"github.com/MrWong99/livescribe/internal/archive"
	"github.com/MrWong99/livescribe/internal/session"
)

type historyOptions struct {
	*rootOptions
	limit  int
	search string
	show   string
}

func newHistoryCmd(root *rootOptions) *cobra.Command {
	opts := &historyOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived transcription sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, opts)
		},
	}
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "maximum number of sessions to list")
	cmd.Flags().StringVar(&opts.search, "search", "", "only list sessions with a segment containing all of these words")
	cmd.Flags().StringVar(&opts.show, "show", "", "print the transcript of the session with this id")
	return cmd
}

func runHistory(cmd *cobra.Command, opts *historyOptions) error {
	cfg, err := loadConfig(opts.rootOptions)
	if err != nil {
		return err
	}
	if !cfg.Archive.Enabled() {
		return errors.New("archive is not configured: set archive.postgres_dsn, archive.file or LIVESCRIBE_POSTGRES_DSN")
	}

	ctx := cmd.Context()
	store, closeStore, err := app.OpenArchive(ctx, cfg.Archive)
	if err != nil {
		return err
	}
	defer closeStore()

	out := cmd.OutOrStdout()
	if opts.show != "" {
		rec, err := store.Get(ctx, opts.show)
		if errors.Is(err, archive.ErrNotFound) {
			return fmt.Errorf("no archived session %q", opts.show)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(out, strings.Join(rec.Segments, "\n"))
		return nil
	}

	var records []archive.Record
	if opts.search != "" {
		records, err = store.Search(ctx, opts.search, opts.limit)
	} else {
		records, err = store.List(ctx, opts.limit)
	}
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "No sessions found.")
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Session", "Started", "Duration", "Outcome", "Segments", "Error"})
	table.SetBorder(false)
	table.SetCenterSeparator("|")
	table.SetColumnSeparator("|")
	table.SetRowSeparator("-")
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)

	for _, r := range records {
		table.Append([]string{
			r.SessionID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			session.FormatElapsed(r.ElapsedSeconds),
			r.Outcome,
			strconv.Itoa(r.SegmentCount),
			r.Error,
		})
	}
	table.Render()
	return nil
}
