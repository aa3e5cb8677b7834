package eaf

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/heimdex/offsetcheck/internal/testsupport"
)

const refTierDoc = `<?xml version="1.0" encoding="UTF-8"?>
<ANNOTATION_DOCUMENT>
  <HEADER TIME_UNITS="milliseconds">
    <MEDIA_DESCRIPTOR MEDIA_URL="file:///media/BF1c.mp4" MIME_TYPE="video/mp4" TIME_ORIGIN="1500"/>
    <MEDIA_DESCRIPTOR MEDIA_URL="file:///media/BF1+2c.mp4" MIME_TYPE="video/mp4" TIME_ORIGIN="oops"/>
  </HEADER>
  <TIME_ORDER>
    <TIME_SLOT TIME_SLOT_ID="ts1" TIME_VALUE="4000"/>
    <TIME_SLOT TIME_SLOT_ID="ts2" TIME_VALUE="5000"/>
    <TIME_SLOT TIME_SLOT_ID="ts3" TIME_VALUE="1000"/>
    <TIME_SLOT TIME_SLOT_ID="ts4" TIME_VALUE="3000"/>
    <TIME_SLOT TIME_SLOT_ID="ts5"/>
  </TIME_ORDER>
  <TIER TIER_ID="RH-IDgloss">
    <ANNOTATION><ALIGNABLE_ANNOTATION ANNOTATION_ID="a1" TIME_SLOT_REF1="ts1" TIME_SLOT_REF2="ts2"><ANNOTATION_VALUE>GOOD</ANNOTATION_VALUE></ALIGNABLE_ANNOTATION></ANNOTATION>
    <ANNOTATION><ALIGNABLE_ANNOTATION ANNOTATION_ID="a2" TIME_SLOT_REF1="ts3" TIME_SLOT_REF2="ts4"><ANNOTATION_VALUE>HOUSE</ANNOTATION_VALUE></ALIGNABLE_ANNOTATION></ANNOTATION>
    <ANNOTATION><ALIGNABLE_ANNOTATION ANNOTATION_ID="a3" TIME_SLOT_REF1="ts3" TIME_SLOT_REF2="ts5"><ANNOTATION_VALUE>UNALIGNED</ANNOTATION_VALUE></ALIGNABLE_ANNOTATION></ANNOTATION>
  </TIER>
  <TIER TIER_ID="English" PARENT_REF="RH-IDgloss">
    <ANNOTATION><REF_ANNOTATION ANNOTATION_ID="a4" ANNOTATION_REF="a1"><ANNOTATION_VALUE>good</ANNOTATION_VALUE></REF_ANNOTATION></ANNOTATION>
  </TIER>
</ANNOTATION_DOCUMENT>`

func TestParse_AlignableAndReferenceTiers(t *testing.T) {
	doc, err := Parse(strings.NewReader(refTierDoc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	names := doc.TierNames()
	if len(names) != 2 || names[0] != "RH-IDgloss" || names[1] != "English" {
		t.Fatalf("TierNames() = %v", names)
	}

	gloss, err := doc.AnnotationData("RH-IDgloss")
	if err != nil {
		t.Fatalf("AnnotationData() error = %v", err)
	}
	if len(gloss) != 2 {
		t.Fatalf("got %d gloss intervals, want 2 (unaligned dropped)", len(gloss))
	}
	if gloss[0].StartMs != 1000 || gloss[0].EndMs != 3000 || gloss[0].Text != "HOUSE" {
		t.Errorf("gloss[0] = %+v, want HOUSE 1000-3000 first", gloss[0])
	}
	if gloss[1].Text != "GOOD" || gloss[1].EndMs-gloss[1].StartMs != 1000 {
		t.Errorf("gloss[1] = %+v", gloss[1])
	}

	english, err := doc.AnnotationData("English")
	if err != nil {
		t.Fatalf("AnnotationData(English) error = %v", err)
	}
	if len(english) != 1 || english[0].StartMs != 4000 || english[0].EndMs != 5000 {
		t.Errorf("english = %+v, want span of parent a1", english)
	}
}

func TestParse_MediaDescriptors(t *testing.T) {
	doc, err := Parse(strings.NewReader(refTierDoc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	media := doc.MediaDescriptors()
	if len(media) != 2 {
		t.Fatalf("got %d descriptors, want 2", len(media))
	}
	if !media[0].HasTimeOrigin || media[0].TimeOriginMs != 1500 {
		t.Errorf("media[0] = %+v, want origin 1500", media[0])
	}
	if media[1].HasTimeOrigin {
		t.Errorf("media[1] invalid TIME_ORIGIN should be treated as absent: %+v", media[1])
	}
}

func TestAnnotationData_MissingTier(t *testing.T) {
	doc, err := Parse(strings.NewReader(refTierDoc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	_, err = doc.AnnotationData("LH-IDgloss")
	if !errors.Is(err, ErrTierNotFound) {
		t.Errorf("error = %v, want ErrTierNotFound", err)
	}
	if doc.HasTier("LH-IDgloss") {
		t.Error("HasTier() = true for missing tier")
	}
}

func TestParse_Malformed(t *testing.T) {
	inputs := map[string]string{
		"not xml":      "this is not xml",
		"wrong root":   "<OTHER></OTHER>",
		"bad slot":     `<ANNOTATION_DOCUMENT><TIME_ORDER><TIME_SLOT TIME_SLOT_ID="ts1" TIME_VALUE="x"/></TIME_ORDER></ANNOTATION_DOCUMENT>`,
		"truncated":    `<ANNOTATION_DOCUMENT><HEADER>`,
		"empty":        "",
	}
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(input)); err == nil {
				t.Error("Parse() should fail")
			}
		})
	}
}

func TestOpen_Fixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "BF01F28WDC.eaf")
	tier := testsupport.GlossTier("RH-IDgloss", 25, 6, "GOOD")
	testsupport.WriteEAF(t, path, []testsupport.Tier{tier}, []testsupport.Media{{URL: "file:///v/BF1c.mp4", TimeOrigin: "200"}}, 0)

	doc, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	data, err := doc.AnnotationData("RH-IDgloss")
	if err != nil {
		t.Fatalf("AnnotationData() error = %v", err)
	}
	if len(data) != 25 {
		t.Errorf("got %d intervals, want 25", len(data))
	}

	var _ Reader = doc
}

func TestOpen_MissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.eaf")); err == nil {
		t.Error("Open() should fail for missing file")
	}
}
