package sampler

import (
	"fmt"
	"strings"
)

// Policy selects where inside an annotation span frames are taken.
type Policy string

const (
	// PolicyMidpoint takes one frame just before the span midpoint. Used for
	// quick dual-camera sync checks.
	PolicyMidpoint Policy = "midpoint"
	// PolicyFourPoint takes four frames across the span for detailed review.
	PolicyFourPoint Policy = "four_point"
)

// Fraction is a labelled position inside an annotation span, in (0, 1).
type Fraction struct {
	Label string
	Value float64
}

var (
	midpointFractions = []Fraction{{Label: "midpoint", Value: 0.475}}

	fourPointFractions = []Fraction{
		{Label: "early", Value: 0.30},
		{Label: "peak1", Value: 0.45},
		{Label: "peak2", Value: 0.65},
		{Label: "late", Value: 0.80},
	}
)

// ParsePolicy accepts the config spellings of a policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "midpoint", "single":
		return PolicyMidpoint, nil
	case "four_point", "four-point", "fourpoint", "multi":
		return PolicyFourPoint, nil
	default:
		return "", fmt.Errorf("unknown sampling policy %q (want midpoint or four_point)", s)
	}
}

// Fractions returns the sample positions for the policy, in order.
func (p Policy) Fractions() []Fraction {
	src := midpointFractions
	if p == PolicyFourPoint {
		src = fourPointFractions
	}
	out := make([]Fraction, len(src))
	copy(out, src)
	return out
}

func (p Policy) String() string { return string(p) }
