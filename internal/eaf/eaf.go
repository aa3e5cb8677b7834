// Package eaf reads ELAN annotation documents (.eaf). Only the parts needed
// for offset review are decoded: tier names, time-aligned annotation values
// and the media descriptors in the header.
package eaf

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// ErrTierNotFound is returned when a requested tier is absent from the document.
var ErrTierNotFound = errors.New("tier not found")

// Reader is the read surface the rest of the tool depends on.
type Reader interface {
	TierNames() []string
	AnnotationData(tier string) ([]Interval, error)
	MediaDescriptors() []MediaDescriptor
}

// Interval is one time-aligned annotation on a tier.
type Interval struct {
	StartMs int64
	EndMs   int64
	Text    string
}

// MediaDescriptor links a media file to the transcript. TimeOriginMs is only
// meaningful when HasTimeOrigin is set.
type MediaDescriptor struct {
	MediaURL         string
	RelativeMediaURL string
	MimeType         string
	TimeOriginMs     int64
	HasTimeOrigin    bool
}

// Document is a parsed annotation document.
type Document struct {
	tierOrder []string
	tiers     map[string][]Interval
	media     []MediaDescriptor
}

// Open parses the document at path.
func Open(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	doc, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes a document from r.
func Parse(r io.Reader) (*Document, error) {
	var raw xmlDocument
	if err := xml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode xml: %w", err)
	}
	if raw.XMLName.Local != "ANNOTATION_DOCUMENT" {
		return nil, fmt.Errorf("unexpected root element %q", raw.XMLName.Local)
	}

	slots := make(map[string]int64, len(raw.TimeOrder.Slots))
	for _, s := range raw.TimeOrder.Slots {
		if s.Value == "" {
			continue
		}
		v, err := strconv.ParseInt(strings.TrimSpace(s.Value), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("time slot %s: %w", s.ID, err)
		}
		slots[s.ID] = v
	}

	spans := make(map[string][2]string)
	refs := make(map[string]string)
	for _, tier := range raw.Tiers {
		for _, a := range tier.Annotations {
			if al := a.Alignable; al != nil {
				spans[al.ID] = [2]string{al.Ref1, al.Ref2}
			}
			if rf := a.Reference; rf != nil {
				refs[rf.ID] = rf.Ref
			}
		}
	}

	doc := &Document{tiers: make(map[string][]Interval, len(raw.Tiers))}
	for _, tier := range raw.Tiers {
		var intervals []Interval
		for _, a := range tier.Annotations {
			var id, value string
			switch {
			case a.Alignable != nil:
				id, value = a.Alignable.ID, a.Alignable.Value
			case a.Reference != nil:
				id, value = a.Reference.ID, a.Reference.Value
			default:
				continue
			}
			span, ok := resolveSpan(id, spans, refs)
			if !ok {
				continue
			}
			start, okStart := slots[span[0]]
			end, okEnd := slots[span[1]]
			if !okStart || !okEnd {
				continue
			}
			intervals = append(intervals, Interval{StartMs: start, EndMs: end, Text: value})
		}
		sort.SliceStable(intervals, func(i, j int) bool {
			if intervals[i].StartMs != intervals[j].StartMs {
				return intervals[i].StartMs < intervals[j].StartMs
			}
			return intervals[i].EndMs < intervals[j].EndMs
		})
		if _, seen := doc.tiers[tier.ID]; !seen {
			doc.tierOrder = append(doc.tierOrder, tier.ID)
		}
		doc.tiers[tier.ID] = intervals
	}

	for _, m := range raw.Header.Media {
		md := MediaDescriptor{
			MediaURL:         m.URL,
			RelativeMediaURL: m.RelativeURL,
			MimeType:         m.MimeType,
		}
		if m.TimeOrigin != "" {
			if v, err := strconv.ParseInt(strings.TrimSpace(m.TimeOrigin), 10, 64); err == nil {
				md.TimeOriginMs = v
				md.HasTimeOrigin = true
			}
		}
		doc.media = append(doc.media, md)
	}

	return doc, nil
}

// TierNames returns tier ids in document order.
func (d *Document) TierNames() []string {
	out := make([]string, len(d.tierOrder))
	copy(out, d.tierOrder)
	return out
}

// HasTier reports whether the document contains the named tier.
func (d *Document) HasTier(name string) bool {
	_, ok := d.tiers[name]
	return ok
}

// AnnotationData returns the tier's intervals ordered by start then end time.
func (d *Document) AnnotationData(tier string) ([]Interval, error) {
	intervals, ok := d.tiers[tier]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTierNotFound, tier)
	}
	out := make([]Interval, len(intervals))
	copy(out, intervals)
	return out, nil
}

// MediaDescriptors returns the header media descriptors in document order.
func (d *Document) MediaDescriptors() []MediaDescriptor {
	out := make([]MediaDescriptor, len(d.media))
	copy(out, d.media)
	return out
}

// resolveSpan follows reference annotations down to the alignable annotation
// that owns the time slots.
func resolveSpan(id string, spans map[string][2]string, refs map[string]string) ([2]string, bool) {
	for depth := 0; depth <= len(refs); depth++ {
		if span, ok := spans[id]; ok {
			return span, true
		}
		next, ok := refs[id]
		if !ok {
			return [2]string{}, false
		}
		id = next
	}
	return [2]string{}, false
}

type xmlDocument struct {
	XMLName   xml.Name     `xml:"ANNOTATION_DOCUMENT"`
	Header    xmlHeader    `xml:"HEADER"`
	TimeOrder xmlTimeOrder `xml:"TIME_ORDER"`
	Tiers     []xmlTier    `xml:"TIER"`
}

type xmlHeader struct {
	Media []xmlMedia `xml:"MEDIA_DESCRIPTOR"`
}

type xmlMedia struct {
	URL         string `xml:"MEDIA_URL,attr"`
	RelativeURL string `xml:"RELATIVE_MEDIA_URL,attr"`
	MimeType    string `xml:"MIME_TYPE,attr"`
	TimeOrigin  string `xml:"TIME_ORIGIN,attr"`
}

type xmlTimeOrder struct {
	Slots []xmlSlot `xml:"TIME_SLOT"`
}

type xmlSlot struct {
	ID    string `xml:"TIME_SLOT_ID,attr"`
	Value string `xml:"TIME_VALUE,attr"`
}

type xmlTier struct {
	ID          string          `xml:"TIER_ID,attr"`
	Annotations []xmlAnnotation `xml:"ANNOTATION"`
}

type xmlAnnotation struct {
	Alignable *xmlAlignable `xml:"ALIGNABLE_ANNOTATION"`
	Reference *xmlReference `xml:"REF_ANNOTATION"`
}

type xmlAlignable struct {
	ID    string `xml:"ANNOTATION_ID,attr"`
	Ref1  string `xml:"TIME_SLOT_REF1,attr"`
	Ref2  string `xml:"TIME_SLOT_REF2,attr"`
	Value string `xml:"ANNOTATION_VALUE"`
}

type xmlReference struct {
	ID    string `xml:"ANNOTATION_ID,attr"`
	Ref   string `xml:"ANNOTATION_REF,attr"`
	Value string `xml:"ANNOTATION_VALUE"`
}
