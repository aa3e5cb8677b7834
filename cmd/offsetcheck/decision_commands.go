package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/heimdex/offsetcheck/internal/ledger"
)

func newDecisionsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var filter string

	cmd := &cobra.Command{
		Use:   "decisions",
		Short: "List recorded decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := ctx.openLedger(cmd)
			if err != nil {
				return err
			}

			var want ledger.Decision
			if strings.TrimSpace(filter) != "" {
				if want, err = ledger.ParseDecision(filter); err != nil {
					return err
				}
			}

			records := make([]ledger.Record, 0, len(l.Records()))
			for _, r := range l.Records() {
				if want == "" || r.Decision == want {
					records = append(records, r)
				}
			}
			counts := l.Counts()

			if asJSON {
				return writeJSON(cmd, map[string]any{
					"ledger":    l.Path(),
					"accept":    counts.Accept,
					"reject":    counts.Reject,
					"decisions": records,
				})
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintf(out, "No decisions in %s\n", l.Path())
				return nil
			}
			rows := make([][]string, 0, len(records))
			for _, r := range records {
				rows = append(rows, []string{r.Filename, string(r.Decision), r.Timestamp, r.Notes})
			}
			fmt.Fprint(out, renderTable([]string{"File", "Decision", "Timestamp", "Notes"}, rows, nil))
			fmt.Fprintf(out, "accept: %d  reject: %d", counts.Accept, counts.Reject)
			if counts.Other > 0 {
				fmt.Fprintf(out, "  other: %d", counts.Other)
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&filter, "decision", "", "Only show accept or reject")
	return cmd
}

func newDecideCommand(ctx *commandContext) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "decide <filename> <accept|reject>",
		Short: "Record a decision for a transcript without a review session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := filepath.Base(strings.TrimSpace(args[0]))
			if filename == "" || filename == "." {
				return fmt.Errorf("filename is required")
			}
			decision, err := ledger.ParseDecision(args[1])
			if err != nil {
				return err
			}

			l, err := ctx.openLedger(cmd)
			if err != nil {
				return err
			}
			rec, updated, err := l.Upsert(filename, decision, time.Now(), notes)
			if err != nil {
				return err
			}

			if n := ctx.newNotifier(cmd); n != nil {
				if err := n.Notify(cmd.Context(), rec); err != nil {
					ctx.log(cmd).Warn("failed to forward decision", "file", filename, "error", err)
				}
			}

			verb := "Recorded"
			if updated {
				verb = "Updated"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s for %s in %s\n", verb, rec.Decision, rec.Filename, l.Path())
			return nil
		},
	}

	cmd.Flags().StringVarP(&notes, "notes", "n", "", "Free-text notes")
	return cmd
}

func newCollectCommand(ctx *commandContext) *cobra.Command {
	var remove bool

	cmd := &cobra.Command{
		Use:   "collect [dir]",
		Short: "Merge decision_*.csv files into the ledger",
		Long: "Reads every decision_*.csv file in dir (default: the data directory), each holding one\n" +
			"filename,decision,timestamp[,notes] row, and merges them into the ledger. Within one batch\n" +
			"the first file per transcript wins, in file name order.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ctx.config.Paths.DataDir
			if len(args) == 1 {
				dir = args[0]
			}

			l, err := ctx.openLedger(cmd)
			if err != nil {
				return err
			}
			res, err := l.Collect(dir, remove)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(res.Batch.Files) == 0 {
				fmt.Fprintf(out, "No %s files in %s\n", ledger.BatchPattern, dir)
				return nil
			}

			logger := ctx.log(cmd)
			for _, f := range res.Batch.Files {
				switch {
				case f.Err != nil:
					logger.Warn("skipping decision file", "path", f.Path, "error", f.Err)
					fmt.Fprintf(out, "skipped %s: %v\n", filepath.Base(f.Path), f.Err)
				case f.Duplicate:
					fmt.Fprintf(out, "ignored %s: %s already decided earlier in this batch\n", filepath.Base(f.Path), f.Record.Filename)
				}
			}

			counts := l.Counts()
			fmt.Fprintf(out, "Merged %d files: %d added, %d updated", len(res.Batch.Paths()), res.Added, res.Updated)
			if remove {
				fmt.Fprintf(out, ", %d removed", len(res.Removed))
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "accept: %d  reject: %d\n", counts.Accept, counts.Reject)
			return nil
		},
	}

	cmd.Flags().BoolVar(&remove, "remove", false, "Delete the merged decision files")
	return cmd
}
