// Package naming decodes the corpus filename convention. Region, recording
// index and signer handedness are all carried in the transcript filename, so
// they are parsed once here and passed around as a typed record.
package naming

import (
	"path/filepath"
	"strings"
)

// Hand is the signer's dominant hand.
type Hand int

const (
	RightHand Hand = iota
	LeftHand
)

func (h Hand) String() string {
	if h == LeftHand {
		return "left"
	}
	return "right"
}

const (
	TierRightGloss = "RH-IDgloss"
	TierLeftGloss  = "LH-IDgloss"

	leftHandSuffix = "_LH.EAF"
)

// Transcript is the decoded form of a transcript filename such as
// "BF01F28WDC.eaf".
type Transcript struct {
	Filename string // base name including extension
	Stem     string // base name without extension
	Region   string // first two characters, e.g. "BF"
	Index    string // recording index with leading zeros removed, e.g. "1"
	Hand     Hand
}

// Parse decodes a transcript filename. Any directory part is ignored.
//
// The recording index is taken from characters 3-4 of the stem. A numeric
// slice has its leading zeros stripped, and an all-zero or empty slice
// becomes "0". A non-numeric slice also becomes "0". A stem shorter than four
// characters contributes whatever part of the slice it has.
func Parse(filename string) Transcript {
	base := filepath.Base(filename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	t := Transcript{
		Filename: base,
		Stem:     stem,
		Region:   prefix(stem, 2),
		Index:    recordingIndex(stem),
		Hand:     RightHand,
	}
	if strings.HasSuffix(strings.ToUpper(base), leftHandSuffix) {
		t.Hand = LeftHand
	}
	return t
}

// DominantTier returns the gloss tier that carries the dominant hand.
func (t Transcript) DominantTier() string {
	if t.Hand == LeftHand {
		return TierLeftGloss
	}
	return TierRightGloss
}

// PaddedIndex returns the recording index left-padded with zeros to two digits.
func (t Transcript) PaddedIndex() string {
	if len(t.Index) >= 2 {
		return t.Index
	}
	return strings.Repeat("0", 2-len(t.Index)) + t.Index
}

func recordingIndex(stem string) string {
	runes := []rune(stem)
	if len(runes) <= 2 {
		return "0"
	}
	slice := string(runes[2:min(4, len(runes))])
	for _, r := range slice {
		if r < '0' || r > '9' {
			return "0"
		}
	}
	if trimmed := strings.TrimLeft(slice, "0"); trimmed != "" {
		return trimmed
	}
	return "0"
}

func prefix(s string, n int) string {
	runes := []rune(s)
	if len(runes) < n {
		return string(runes)
	}
	return string(runes[:n])
}
