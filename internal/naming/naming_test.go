package naming

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		filename   string
		wantRegion string
		wantIndex  string
		wantHand   Hand
		wantTier   string
	}{
		{"leading zero stripped", "BF01F28WDC.eaf", "BF", "1", RightHand, TierRightGloss},
		{"all zeros", "BF00F28WDC.eaf", "BF", "0", RightHand, TierRightGloss},
		{"two digit index", "GW12F01.eaf", "GW", "12", RightHand, TierRightGloss},
		{"left handed", "LN03M14_LH.eaf", "LN", "3", LeftHand, TierLeftGloss},
		{"left handed upper ext", "LN03M14_lh.EAF", "LN", "3", LeftHand, TierLeftGloss},
		{"non numeric slice", "BFxxF28.eaf", "BF", "0", RightHand, TierRightGloss},
		{"region only", "BF.eaf", "BF", "0", RightHand, TierRightGloss},
		{"short zero", "BF0.eaf", "BF", "0", RightHand, TierRightGloss},
		{"short digit", "BF7.eaf", "BF", "7", RightHand, TierRightGloss},
		{"directory ignored", "/data/eafs/BL05F11.eaf", "BL", "5", RightHand, TierRightGloss},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.filename)
			if got.Region != tt.wantRegion {
				t.Errorf("Region = %q, want %q", got.Region, tt.wantRegion)
			}
			if got.Index != tt.wantIndex {
				t.Errorf("Index = %q, want %q", got.Index, tt.wantIndex)
			}
			if got.Hand != tt.wantHand {
				t.Errorf("Hand = %v, want %v", got.Hand, tt.wantHand)
			}
			if got.DominantTier() != tt.wantTier {
				t.Errorf("DominantTier() = %q, want %q", got.DominantTier(), tt.wantTier)
			}
		})
	}
}

func TestParse_FilenameAndStem(t *testing.T) {
	got := Parse("/x/BF01F28WDC.eaf")
	if got.Filename != "BF01F28WDC.eaf" {
		t.Errorf("Filename = %q", got.Filename)
	}
	if got.Stem != "BF01F28WDC" {
		t.Errorf("Stem = %q", got.Stem)
	}
}

func TestPaddedIndex(t *testing.T) {
	if got := Parse("BF01F28.eaf").PaddedIndex(); got != "01" {
		t.Errorf("PaddedIndex() = %q, want 01", got)
	}
	if got := Parse("BF12F28.eaf").PaddedIndex(); got != "12" {
		t.Errorf("PaddedIndex() = %q, want 12", got)
	}
}
