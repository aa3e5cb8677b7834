package eligibility

import (
	"strings"

	"github.com/heimdex/offsetcheck/internal/eaf"
	"golang.org/x/text/cases"
)

// Normalize trims and case-folds annotation text for label comparison.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return cases.Fold().String(s)
}

// SelectTargets keeps the intervals whose normalized text equals the label,
// preserving input order.
func SelectTargets(intervals []eaf.Interval, label string) []eaf.Interval {
	want := Normalize(label)
	var out []eaf.Interval
	for _, iv := range intervals {
		if text := Normalize(iv.Text); text != "" && text == want {
			out = append(out, iv)
		}
	}
	return out
}
