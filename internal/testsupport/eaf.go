// Package testsupport builds transcript and recording fixtures for tests.
package testsupport

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Annotation is one aligned annotation in a fixture tier.
type Annotation struct {
	StartMs int64
	EndMs   int64
	Text    string
}

// Tier is a named fixture tier.
type Tier struct {
	ID          string
	Annotations []Annotation
}

// Media is a fixture media descriptor. An empty TimeOrigin omits the attribute.
type Media struct {
	URL        string
	TimeOrigin string
}

// GlossTier returns a tier with total annotations, the first targets of which
// carry the label. Annotations are two seconds long and one second apart.
func GlossTier(id string, total, targets int, label string) Tier {
	tier := Tier{ID: id}
	for i := 0; i < total; i++ {
		text := fmt.Sprintf("SIGN%d", i)
		if i < targets {
			text = label
		}
		start := int64(i) * 3000
		tier.Annotations = append(tier.Annotations, Annotation{
			StartMs: start + 1000,
			EndMs:   start + 3000,
			Text:    text,
		})
	}
	return tier
}

// BuildEAF renders an ELAN document holding the given tiers and media.
func BuildEAF(tiers []Tier, media []Media) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<ANNOTATION_DOCUMENT AUTHOR="" FORMAT="3.0" VERSION="3.0">` + "\n")
	b.WriteString(`  <HEADER MEDIA_FILE="" TIME_UNITS="milliseconds">` + "\n")
	for _, m := range media {
		fmt.Fprintf(&b, `    <MEDIA_DESCRIPTOR MEDIA_URL="%s" MIME_TYPE="video/mp4"`, html.EscapeString(m.URL))
		if m.TimeOrigin != "" {
			fmt.Fprintf(&b, ` TIME_ORIGIN="%s"`, html.EscapeString(m.TimeOrigin))
		}
		b.WriteString("/>\n")
	}
	b.WriteString("  </HEADER>\n  <TIME_ORDER>\n")

	slot := 0
	var body strings.Builder
	for _, tier := range tiers {
		fmt.Fprintf(&body, `  <TIER LINGUISTIC_TYPE_REF="default" TIER_ID="%s">`+"\n", html.EscapeString(tier.ID))
		for _, a := range tier.Annotations {
			slot++
			start := fmt.Sprintf("ts%d", slot)
			fmt.Fprintf(&b, `    <TIME_SLOT TIME_SLOT_ID="%s" TIME_VALUE="%d"/>`+"\n", start, a.StartMs)
			slot++
			end := fmt.Sprintf("ts%d", slot)
			fmt.Fprintf(&b, `    <TIME_SLOT TIME_SLOT_ID="%s" TIME_VALUE="%d"/>`+"\n", end, a.EndMs)
			fmt.Fprintf(&body, `    <ANNOTATION><ALIGNABLE_ANNOTATION ANNOTATION_ID="a%d" TIME_SLOT_REF1="%s" TIME_SLOT_REF2="%s"><ANNOTATION_VALUE>%s</ANNOTATION_VALUE></ALIGNABLE_ANNOTATION></ANNOTATION>`+"\n",
				slot/2, start, end, html.EscapeString(a.Text))
		}
		body.WriteString("  </TIER>\n")
	}
	b.WriteString("  </TIME_ORDER>\n")
	b.WriteString(body.String())
	b.WriteString("</ANNOTATION_DOCUMENT>\n")
	return b.String()
}

// WriteEAF writes a fixture document to path, padding it with an XML comment
// until it is at least minSize bytes.
func WriteEAF(t testing.TB, path string, tiers []Tier, media []Media, minSize int) {
	t.Helper()

	content := BuildEAF(tiers, media)
	if pad := minSize - len(content); pad > 0 {
		content += "<!--" + strings.Repeat("x", pad) + "-->\n"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteFile creates path (and its parent directories) with a few placeholder
// bytes, standing in for a recording.
func WriteFile(t testing.TB, path string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte("fake video content for testing"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
