package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/heimdex/offsetcheck/internal/eaf"
	"github.com/heimdex/offsetcheck/internal/eligibility"
	"github.com/heimdex/offsetcheck/internal/naming"
)

type tierReport struct {
	Name     string `json:"name"`
	Total    int    `json:"total"`
	Targets  int    `json:"targets"`
	Dominant bool   `json:"dominant"`
}

type mediaReport struct {
	URL          string `json:"url"`
	RelativeURL  string `json:"relative_url,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
	TimeOriginMs *int64 `json:"time_origin_ms,omitempty"`
}

type inspectReport struct {
	Filename     string        `json:"filename"`
	DominantTier string        `json:"dominant_tier"`
	HasDominant  bool          `json:"has_dominant_tier"`
	Eligible     bool          `json:"eligible"`
	Tiers        []tierReport  `json:"tiers"`
	Media        []mediaReport `json:"media"`
	Recordings   []string      `json:"recordings"`
}

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect <file.eaf>",
		Short: "Show tiers, target counts and media links of a transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := eaf.Open(args[0])
			if err != nil {
				return err
			}
			name := naming.Parse(args[0])
			criteria := ctx.criteria()

			report := inspectReport{
				Filename:     name.Filename,
				DominantTier: name.DominantTier(),
				HasDominant:  doc.HasTier(name.DominantTier()),
				Recordings:   ctx.newLocator(cmd).Locate(name.Filename),
			}
			if report.Recordings == nil {
				report.Recordings = []string{}
			}
			for _, tier := range doc.TierNames() {
				counts, err := eligibility.Count(doc, tier, criteria.TargetLabel)
				if err != nil {
					return err
				}
				dominant := tier == report.DominantTier
				if dominant {
					report.Eligible = criteria.Meets(counts)
				}
				report.Tiers = append(report.Tiers, tierReport{Name: tier, Total: counts.Total, Targets: counts.Targets, Dominant: dominant})
			}
			for _, m := range doc.MediaDescriptors() {
				mr := mediaReport{URL: m.MediaURL, RelativeURL: m.RelativeMediaURL, MimeType: m.MimeType}
				if m.HasTimeOrigin {
					origin := m.TimeOriginMs
					mr.TimeOriginMs = &origin
				}
				report.Media = append(report.Media, mr)
			}

			if asJSON {
				return writeJSON(cmd, report)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (dominant tier %s, %q targets)\n", report.Filename, report.DominantTier, criteria.TargetLabel)
			if !report.HasDominant {
				fmt.Fprintf(out, "dominant tier %s is missing\n", report.DominantTier)
			}

			tierRows := make([][]string, 0, len(report.Tiers))
			for _, t := range report.Tiers {
				marker := ""
				if t.Dominant {
					marker = "*"
				}
				tierRows = append(tierRows, []string{t.Name, strconv.Itoa(t.Total), strconv.Itoa(t.Targets), marker})
			}
			fmt.Fprint(out, renderTable([]string{"Tier", "Annotations", "Targets", "Dominant"}, tierRows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft}))

			if len(report.Media) > 0 {
				mediaRows := make([][]string, 0, len(report.Media))
				for _, m := range report.Media {
					origin := "-"
					if m.TimeOriginMs != nil {
						origin = strconv.FormatInt(*m.TimeOriginMs, 10)
					}
					mediaRows = append(mediaRows, []string{m.URL, m.MimeType, origin})
				}
				fmt.Fprint(out, renderTable([]string{"Media", "Type", "Time origin (ms)"}, mediaRows,
					[]columnAlignment{alignLeft, alignLeft, alignRight}))
			}

			if len(report.Recordings) == 0 {
				fmt.Fprintln(out, "No recordings found")
			}
			for _, r := range report.Recordings {
				fmt.Fprintf(out, "recording: %s\n", r)
			}
			fmt.Fprintf(out, "eligible: %s\n", yesNo(report.Eligible))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
