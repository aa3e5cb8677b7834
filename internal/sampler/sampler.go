// Package sampler turns target annotations into still frames taken from the
// matching recordings.
package sampler

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"github.com/heimdex/offsetcheck/internal/eaf"
	"github.com/heimdex/offsetcheck/internal/events"
)

// Extractor produces image bytes for one timestamp of a recording. A false
// result means no frame; it must not panic.
type Extractor interface {
	Extract(ctx context.Context, recordingPath string, seconds float64) ([]byte, bool)
}

// failureReporter is implemented by extractors that can describe their last failure.
type failureReporter interface {
	LastFailure() string
}

// Recording is a located video together with its time correction.
type Recording struct {
	Path     string
	Label    string
	OriginMs int64
}

// Point is one planned sample.
type Point struct {
	Annotation int // 1-based position among the target annotations
	Interval   eaf.Interval
	Recording  Recording
	Fraction   Fraction
	TimeMs     int64
}

// Seconds is the sample time handed to the extractor.
func (p Point) Seconds() float64 {
	return float64(p.TimeMs) / 1000.0
}

// Frame is an extracted image for exactly one Point.
type Frame struct {
	Point
	Data []byte
}

// SampleTime computes start + (end-start)*fraction + origin, rounded to the
// nearest millisecond.
func SampleTime(startMs, endMs int64, fraction float64, originMs int64) int64 {
	offset := math.Round(float64(endMs-startMs) * fraction)
	return startMs + int64(offset) + originMs
}

// TimeOrigin returns the TIME_ORIGIN of the first media descriptor whose URL
// contains the recording's file name, or 0 when none does.
func TimeOrigin(descs []eaf.MediaDescriptor, recordingPath string) int64 {
	name := filepath.Base(recordingPath)
	for _, d := range descs {
		if d.HasTimeOrigin && strings.Contains(d.MediaURL, name) {
			return d.TimeOriginMs
		}
	}
	return 0
}

// Recordings pairs located paths with their origins and "Video N" labels.
func Recordings(paths []string, descs []eaf.MediaDescriptor) []Recording {
	out := make([]Recording, 0, len(paths))
	for i, p := range paths {
		out = append(out, Recording{
			Path:     p,
			Label:    fmt.Sprintf("Video %d", i+1),
			OriginMs: TimeOrigin(descs, p),
		})
	}
	return out
}

// Plan lists every sample point in annotation, recording, fraction order.
func Plan(targets []eaf.Interval, recordings []Recording, policy Policy) []Point {
	fractions := policy.Fractions()
	points := make([]Point, 0, len(targets)*len(recordings)*len(fractions))
	for i, iv := range targets {
		for _, rec := range recordings {
			for _, f := range fractions {
				points = append(points, Point{
					Annotation: i + 1,
					Interval:   iv,
					Recording:  rec,
					Fraction:   f,
					TimeMs:     SampleTime(iv.StartMs, iv.EndMs, f.Value, rec.OriginMs),
				})
			}
		}
	}
	return points
}

// Result is what one sampling pass produced.
type Result struct {
	Attempted int
	Frames    []Frame
}

// Dropped is the number of points that yielded no frame.
func (r Result) Dropped() int {
	return r.Attempted - len(r.Frames)
}

// Sampler extracts frames for a plan one point at a time.
type Sampler struct {
	policy    Policy
	extractor Extractor
	sink      events.Sink
	logger    *slog.Logger
}

func New(policy Policy, extractor Extractor, sink events.Sink, logger *slog.Logger) *Sampler {
	if sink == nil {
		sink = events.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{policy: policy, extractor: extractor, sink: sink, logger: logger}
}

func (s *Sampler) Policy() Policy { return s.policy }

// Sample extracts a frame for every planned point of file. Failed points are
// dropped with an extract_failed event; a partial or empty result is normal.
// Once started, extraction runs over the whole plan.
func (s *Sampler) Sample(ctx context.Context, file string, targets []eaf.Interval, recordings []Recording) Result {
	points := Plan(targets, recordings, s.policy)
	res := Result{Attempted: len(points)}

	for _, p := range points {
		if p.TimeMs < 0 {
			s.sink.Emit(events.Event{
				Kind:      events.KindExtractFailed,
				File:      file,
				Recording: p.Recording.Path,
				Detail:    fmt.Sprintf("annotation %d %s: sample time %dms is before the recording start", p.Annotation, p.Fraction.Label, p.TimeMs),
			})
			continue
		}

		data, ok := s.extractor.Extract(context.WithoutCancel(ctx), p.Recording.Path, p.Seconds())
		if !ok {
			detail := fmt.Sprintf("annotation %d %s at %.3fs", p.Annotation, p.Fraction.Label, p.Seconds())
			if fr, isReporter := s.extractor.(failureReporter); isReporter && fr.LastFailure() != "" {
				detail += ": " + fr.LastFailure()
			}
			s.sink.Emit(events.Event{
				Kind:      events.KindExtractFailed,
				File:      file,
				Recording: p.Recording.Path,
				Detail:    detail,
			})
			continue
		}
		res.Frames = append(res.Frames, Frame{Point: p, Data: data})
	}

	s.logger.Debug("sampling finished",
		"file", file,
		"policy", string(s.policy),
		"attempted", res.Attempted,
		"extracted", len(res.Frames),
		"dropped", res.Dropped(),
	)
	return res
}
