package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/heimdex/offsetcheck/internal/events"
)

type scanRow struct {
	Filename   string `json:"filename"`
	Path       string `json:"path"`
	Size       int64  `json:"size"`
	Total      int    `json:"total"`
	Targets    int    `json:"targets"`
	Recordings int    `json:"recordings"`
	Decision   string `json:"decision,omitempty"`
}

type scanReport struct {
	Eligible  int       `json:"eligible"`
	Remaining int       `json:"remaining"`
	Skipped   int       `json:"skipped"`
	Files     []scanRow `json:"files"`
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var pending bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List eligible transcripts and whether they have a decision",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config
			skips := &events.Recorder{}
			sink := events.Multi(events.NewLogSink(ctx.log(cmd)), skips)

			candidates, err := ctx.newFilter(cmd, sink).Scan(cmd.Context(), cfg.Paths.EAFDir)
			if err != nil {
				return err
			}
			l, err := ctx.openLedger(cmd)
			if err != nil {
				return err
			}
			loc := ctx.newLocator(cmd)

			report := scanReport{Eligible: len(candidates), Skipped: len(skips.Events()), Files: []scanRow{}}
			for _, c := range candidates {
				row := scanRow{
					Filename:   c.Name.Filename,
					Path:       c.Path,
					Size:       c.Size,
					Total:      c.Counts.Total,
					Targets:    c.Counts.Targets,
					Recordings: len(loc.Locate(c.Name.Filename)),
				}
				if rec, ok := l.Lookup(c.Name.Filename); ok {
					row.Decision = string(rec.Decision)
				} else {
					report.Remaining++
				}
				if pending && row.Decision != "" {
					continue
				}
				report.Files = append(report.Files, row)
			}

			if asJSON {
				return writeJSON(cmd, report)
			}

			out := cmd.OutOrStdout()
			if len(report.Files) > 0 {
				rows := make([][]string, 0, len(report.Files))
				for _, f := range report.Files {
					decision := f.Decision
					if decision == "" {
						decision = "-"
					}
					rows = append(rows, []string{
						f.Filename,
						humanize.Bytes(uint64(f.Size)),
						strconv.Itoa(f.Total),
						strconv.Itoa(f.Targets),
						strconv.Itoa(f.Recordings),
						decision,
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"File", "Size", "Annotations", "Targets", "Recordings", "Decision"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
				))
			}
			fmt.Fprintf(out, "%d eligible, %d without a decision, %d skipped\n", report.Eligible, report.Remaining, report.Skipped)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&pending, "pending", false, "Only list transcripts without a decision")
	return cmd
}
