// Package events carries the typed notices emitted on best-effort paths.
// Scan skips, dropped frames and failed notifications never abort a review;
// each one is reported here instead so it stays observable.
package events

import (
	"log/slog"
	"sync"
	"time"
)

// Kind identifies the best-effort path that produced an event.
type Kind string

const (
	KindParseFailed    Kind = "parse_failed"
	KindTierMissing    Kind = "tier_missing"
	KindBelowThreshold Kind = "below_threshold"
	KindNoTargets      Kind = "no_targets"
	KindNoRecordings   Kind = "no_recordings"
	KindExtractFailed  Kind = "extract_failed"
	KindNotifyFailed   Kind = "notify_failed"
)

// Event is a single best-effort notice.
type Event struct {
	Kind      Kind
	File      string
	Recording string
	Detail    string
	Err       error
	At        time.Time
}

// Sink receives events. Implementations must not block for long and must not panic.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Multi fans an event out to every non-nil sink.
func Multi(sinks ...Sink) Sink {
	var live []Sink
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	return SinkFunc(func(e Event) {
		for _, s := range live {
			s.Emit(e)
		}
	})
}

// Stamp fills in the event time when the emitter left it empty.
func Stamp(e Event) Event {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	return e
}

// LogSink writes events to a structured logger. Scan-time skips log at info,
// extraction and notification failures at warn.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(e Event) {
	if s.logger == nil {
		return
	}
	attrs := []any{"event", string(e.Kind), "file", e.File}
	if e.Recording != "" {
		attrs = append(attrs, "recording", e.Recording)
	}
	if e.Detail != "" {
		attrs = append(attrs, "detail", e.Detail)
	}
	if e.Err != nil {
		attrs = append(attrs, "error", e.Err)
	}

	switch e.Kind {
	case KindExtractFailed, KindNotifyFailed:
		s.logger.Warn("best-effort step failed", attrs...)
	case KindBelowThreshold:
		s.logger.Debug("transcript not eligible", attrs...)
	default:
		s.logger.Info("transcript skipped", attrs...)
	}
}

// Recorder keeps events in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, Stamp(e))
	r.mu.Unlock()
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many recorded events have the given kind.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
