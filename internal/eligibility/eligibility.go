// Package eligibility selects the transcripts worth reviewing.
package eligibility

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/heimdex/offsetcheck/internal/eaf"
	"github.com/heimdex/offsetcheck/internal/events"
	"github.com/heimdex/offsetcheck/internal/naming"
)

const (
	DefaultMinFileBytes = 100 * 1024
	DefaultMinTotal     = 20
	DefaultMinTarget    = 5
	DefaultTargetLabel  = "GOOD"

	transcriptExt = ".eaf"
)

// Criteria are the per-file thresholds.
type Criteria struct {
	MinFileBytes int64 // file size must be strictly greater
	MinTotal     int   // non-empty annotations on the dominant tier
	MinTarget    int   // target-label annotations on the dominant tier
	TargetLabel  string
}

// DefaultCriteria returns the thresholds used by the corpus review.
func DefaultCriteria() Criteria {
	return Criteria{
		MinFileBytes: DefaultMinFileBytes,
		MinTotal:     DefaultMinTotal,
		MinTarget:    DefaultMinTarget,
		TargetLabel:  DefaultTargetLabel,
	}
}

// Counts summarises the dominant tier of one transcript.
type Counts struct {
	Total   int
	Targets int
}

// Meets reports whether the counts satisfy both annotation thresholds.
func (c Criteria) Meets(counts Counts) bool {
	return counts.Total >= c.MinTotal && counts.Targets >= c.MinTarget
}

// Candidate is an eligible transcript.
type Candidate struct {
	Path   string
	Name   naming.Transcript
	Size   int64
	Counts Counts
}

// OpenFunc opens a transcript for reading.
type OpenFunc func(path string) (eaf.Reader, error)

// OpenEAF opens a transcript with the ELAN reader.
func OpenEAF(path string) (eaf.Reader, error) {
	return eaf.Open(path)
}

// Filter scans a transcript directory and applies Criteria to each file.
type Filter struct {
	criteria Criteria
	open     OpenFunc
	sink     events.Sink
	logger   *slog.Logger
}

func NewFilter(criteria Criteria, open OpenFunc, sink events.Sink, logger *slog.Logger) *Filter {
	if open == nil {
		open = OpenEAF
	}
	if sink == nil {
		sink = events.Discard
	}
	return &Filter{criteria: criteria, open: open, sink: sink, logger: logger}
}

// Criteria returns the thresholds the filter applies.
func (f *Filter) Criteria() Criteria {
	return f.criteria
}

// Scan walks root and returns the eligible transcripts in traversal order.
// Unreadable or malformed transcripts are reported as events and skipped.
func (f *Filter) Scan(ctx context.Context, root string) ([]Candidate, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("transcript directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("transcript directory %s is not a directory", root)
	}

	var out []Candidate
	scanned := 0
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if f.logger != nil {
				f.logger.Warn("skipping unreadable path", "path", p, "error", err)
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), transcriptExt) {
			return nil
		}

		scanned++
		fi, err := d.Info()
		if err != nil {
			f.sink.Emit(events.Event{Kind: events.KindParseFailed, File: d.Name(), Err: err})
			return nil
		}
		if fi.Size() <= f.criteria.MinFileBytes {
			return nil
		}

		cand, ok := f.evaluate(p, fi.Size())
		if ok {
			out = append(out, cand)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if f.logger != nil {
		f.logger.Info("transcript scan complete", "root", root, "scanned", scanned, "eligible", len(out))
	}
	return out, nil
}

func (f *Filter) evaluate(path string, size int64) (Candidate, bool) {
	name := naming.Parse(path)

	reader, err := f.open(path)
	if err != nil {
		f.sink.Emit(events.Event{Kind: events.KindParseFailed, File: name.Filename, Err: err})
		return Candidate{}, false
	}

	counts, err := Count(reader, name.DominantTier(), f.criteria.TargetLabel)
	if err != nil {
		kind := events.KindParseFailed
		if errors.Is(err, eaf.ErrTierNotFound) {
			kind = events.KindTierMissing
		}
		f.sink.Emit(events.Event{Kind: kind, File: name.Filename, Detail: name.DominantTier(), Err: err})
		return Candidate{}, false
	}

	if !f.criteria.Meets(counts) {
		f.sink.Emit(events.Event{
			Kind:   events.KindBelowThreshold,
			File:   name.Filename,
			Detail: fmt.Sprintf("total=%d targets=%d", counts.Total, counts.Targets),
		})
		return Candidate{}, false
	}

	return Candidate{Path: path, Name: name, Size: size, Counts: counts}, true
}

// Count tallies the non-empty and target-label annotations on a tier.
func Count(r eaf.Reader, tier, label string) (Counts, error) {
	data, err := r.AnnotationData(tier)
	if err != nil {
		return Counts{}, err
	}
	want := Normalize(label)
	var c Counts
	for _, iv := range data {
		text := Normalize(iv.Text)
		if text == "" {
			continue
		}
		c.Total++
		if text == want {
			c.Targets++
		}
	}
	return c, nil
}
