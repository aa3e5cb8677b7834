package events

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestMulti_SkipsNilSinks(t *testing.T) {
	var a, b Recorder
	sink := Multi(&a, nil, &b)

	sink.Emit(Event{Kind: KindParseFailed, File: "x.eaf"})

	if a.Count(KindParseFailed) != 1 || b.Count(KindParseFailed) != 1 {
		t.Errorf("counts = %d, %d, want 1, 1", a.Count(KindParseFailed), b.Count(KindParseFailed))
	}
}

func TestRecorder_StampsTime(t *testing.T) {
	var r Recorder
	r.Emit(Event{Kind: KindNoTargets})

	got := r.Events()
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if got[0].At.IsZero() {
		t.Error("event time was not stamped")
	}
}

func TestLogSink_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	sink := NewLogSink(logger)

	sink.Emit(Event{Kind: KindBelowThreshold, File: "quiet.eaf"})
	sink.Emit(Event{Kind: KindExtractFailed, File: "a.eaf", Recording: "BF1c.mp4", Err: errors.New("exit 1")})

	out := buf.String()
	if strings.Contains(out, "quiet.eaf") {
		t.Error("below_threshold should log at debug")
	}
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "recording=BF1c.mp4") {
		t.Errorf("extract failure not logged at warn: %s", out)
	}
}

func TestDiscard(t *testing.T) {
	Discard.Emit(Event{Kind: KindNotifyFailed})
}
