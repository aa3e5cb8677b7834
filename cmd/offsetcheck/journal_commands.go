package main

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/heimdex/offsetcheck/internal/events"
	"github.com/heimdex/offsetcheck/internal/journal"
)

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var kind string
	var limit int
	var summary bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recent skip and failure events from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJournal(cmd, func(repo *journal.SQLiteRepository) error {
				out := cmd.OutOrStdout()

				if summary {
					counts, err := repo.CountEvents(cmd.Context())
					if err != nil {
						return err
					}
					if asJSON {
						return writeJSON(cmd, counts)
					}
					kinds := make([]string, 0, len(counts))
					for k := range counts {
						kinds = append(kinds, k)
					}
					sort.Strings(kinds)
					rows := make([][]string, 0, len(kinds))
					for _, k := range kinds {
						rows = append(rows, []string{k, strconv.Itoa(counts[k])})
					}
					if len(rows) == 0 {
						fmt.Fprintln(out, "No events recorded")
						return nil
					}
					fmt.Fprint(out, renderTable([]string{"Kind", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
					return nil
				}

				if kind != "" && !knownKind(kind) {
					return fmt.Errorf("unknown event kind %q", kind)
				}
				list, err := repo.ListEvents(cmd.Context(), kind, limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, list)
				}
				if len(list) == 0 {
					fmt.Fprintln(out, "No events recorded")
					return nil
				}
				rows := make([][]string, 0, len(list))
				for _, e := range list {
					detail := e.Detail
					if e.Error != "" {
						if detail != "" {
							detail += ": "
						}
						detail += e.Error
					}
					rows = append(rows, []string{humanize.Time(e.CreatedAt), e.Kind, e.File, e.Recording, detail})
				}
				fmt.Fprint(out, renderTable([]string{"When", "Kind", "File", "Recording", "Detail"}, rows, nil))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Only show one event kind")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of events")
	cmd.Flags().BoolVar(&summary, "summary", false, "Show counts per kind")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func knownKind(kind string) bool {
	switch events.Kind(kind) {
	case events.KindParseFailed, events.KindTierMissing, events.KindBelowThreshold,
		events.KindNoTargets, events.KindNoRecordings, events.KindExtractFailed, events.KindNotifyFailed:
		return true
	}
	return false
}

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	var file string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sessions [id]",
		Short: "List review sessions from the journal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJournal(cmd, func(repo *journal.SQLiteRepository) error {
				var list []*journal.Session
				var err error
				switch {
				case len(args) == 1:
					s, err := repo.GetSession(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					if s == nil {
						return fmt.Errorf("session %s not found", args[0])
					}
					list = []*journal.Session{s}
				case file != "":
					list, err = repo.ListSessionsByFile(cmd.Context(), file)
				default:
					list, err = repo.ListSessions(cmd.Context(), limit)
				}
				if err != nil {
					return err
				}

				if asJSON {
					return writeJSON(cmd, list)
				}
				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No sessions recorded")
					return nil
				}
				rows := make([][]string, 0, len(list))
				for _, s := range list {
					took := "-"
					if s.FinishedAt != nil {
						took = s.FinishedAt.Sub(s.StartedAt).Round(time.Second).String()
					}
					rows = append(rows, []string{
						shortID(s.ID),
						s.StartedAt.Local().Format("2006-01-02 15:04"),
						s.Filename,
						s.Status,
						s.Decision,
						fmt.Sprintf("%d/%d", s.Extracted, s.Attempted),
						took,
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Started", "File", "Status", "Decision", "Frames", "Took"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Only sessions for this transcript")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of sessions")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
